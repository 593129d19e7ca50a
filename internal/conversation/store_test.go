package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arin/scribe-cli/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	conversations []ai.ConversationSummary
	messages      map[string][]ai.MessageRecord
	err           error
}

func (f *fakeSource) ListConversations(context.Context) ([]ai.ConversationSummary, error) {
	return f.conversations, f.err
}

func (f *fakeSource) ConversationMessages(_ context.Context, id string) ([]ai.MessageRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	msgs, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, &ai.ServerError{Status: 404, Message: "Conversation not found"})
	}
	return msgs, nil
}

func ts(s string) ai.Timestamp {
	t, _ := time.Parse(time.RFC3339, s)
	return ai.Timestamp{Time: t}
}

func TestAppendUserMessage_IsComplete(t *testing.T) {
	s := NewStore(&fakeSource{})

	m := s.AppendUserMessage("c1", "hello")
	assert.Equal(t, RoleUser, m.Role)
	assert.Equal(t, StateComplete, m.State)
	assert.Equal(t, "hello", m.Content)
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())

	assert.Error(t, s.AppendDelta(m.ID, "more"))
}

func TestStreamingLifecycle(t *testing.T) {
	s := NewStore(&fakeSource{})

	m, err := s.BeginAssistantMessage("c1")
	require.NoError(t, err)
	assert.True(t, m.Streaming())
	assert.Empty(t, m.Content)

	require.NoError(t, s.AppendDelta(m.ID, "He"))
	require.NoError(t, s.AppendDelta(m.ID, "llo"))
	assert.True(t, s.Finalize(m.ID, Completed()))

	got, ok := s.Message(m.ID)
	require.True(t, ok)
	assert.Equal(t, "Hello", got.Content)
	assert.Equal(t, StateComplete, got.State)
	assert.True(t, got.Terminal())

	_, inFlight := s.InFlight("c1")
	assert.False(t, inFlight)
}

func TestLateDeltaAfterFinalize(t *testing.T) {
	s := NewStore(&fakeSource{})
	m, _ := s.BeginAssistantMessage("c1")
	require.NoError(t, s.AppendDelta(m.ID, "done text"))
	require.True(t, s.Finalize(m.ID, Completed()))

	err := s.AppendDelta(m.ID, " late")
	assert.ErrorIs(t, err, ErrNotStreaming)

	got, _ := s.Message(m.ID)
	assert.Equal(t, "done text", got.Content)
}

func TestFinalize_OnlyOnce(t *testing.T) {
	s := NewStore(&fakeSource{})
	m, _ := s.BeginAssistantMessage("c1")

	var finalized int
	s.Subscribe(func(c Change) {
		if c.Kind == ChangeFinalized {
			finalized++
		}
	})

	assert.True(t, s.Finalize(m.ID, Completed()))
	assert.False(t, s.Finalize(m.ID, Failed("too late")))
	assert.Equal(t, 1, finalized)

	got, _ := s.Message(m.ID)
	assert.Equal(t, StateComplete, got.State)
	assert.Empty(t, got.ErrorText)
}

func TestFinalize_ErrorNotice(t *testing.T) {
	s := NewStore(&fakeSource{})

	empty, _ := s.BeginAssistantMessage("c1")
	s.Finalize(empty.ID, Failed("rate limited"))
	got, _ := s.Message(empty.ID)
	assert.Equal(t, "rate limited", got.Content)
	assert.Equal(t, "rate limited", got.ErrorText)
	assert.True(t, got.Errored())

	partial, _ := s.BeginAssistantMessage("c1")
	_ = s.AppendDelta(partial.ID, "Once upon")
	s.Finalize(partial.ID, Cancelled("Generation cancelled."))
	got, _ = s.Message(partial.ID)
	assert.Equal(t, "Once upon\n\nGeneration cancelled.", got.Content)
	assert.Equal(t, StateCancelled, got.State)
}

func TestFinalize_RejectsStreamingOutcomeAndUnknownIDs(t *testing.T) {
	s := NewStore(&fakeSource{})
	m, _ := s.BeginAssistantMessage("c1")
	assert.False(t, s.Finalize(m.ID, Outcome{State: StateStreaming}))
	assert.False(t, s.Finalize("nope", Completed()))

	assert.ErrorIs(t, s.AppendDelta("nope", "x"), ErrUnknownMessage)
}

func TestBeginAssistantMessage_OnePerConversation(t *testing.T) {
	s := NewStore(&fakeSource{})

	first, err := s.BeginAssistantMessage("c1")
	require.NoError(t, err)

	_, err = s.BeginAssistantMessage("c1")
	assert.ErrorIs(t, err, ErrStreamInFlight)

	_, err = s.BeginAssistantMessage("c2")
	assert.NoError(t, err)

	s.Finalize(first.ID, Completed())
	_, err = s.BeginAssistantMessage("c1")
	assert.NoError(t, err)
}

func TestNoConversationUsesDefaultKey(t *testing.T) {
	s := NewStore(&fakeSource{})
	m := s.AppendUserMessage("", "hi")
	assert.Equal(t, ai.DefaultConversation, m.ConversationID)
	assert.Len(t, s.Messages(""), 1)
	assert.Len(t, s.Messages(ai.DefaultConversation), 1)
}

func TestMessages_InsertionOrder(t *testing.T) {
	s := NewStore(&fakeSource{})
	u := s.AppendUserMessage("c1", "q1")
	a, _ := s.BeginAssistantMessage("c1")
	s.Finalize(a.ID, Completed())
	u2 := s.AppendUserMessage("c1", "q2")

	msgs := s.Messages("c1")
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{u.ID, a.ID, u2.ID}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestMessageIDsAreMonotonic(t *testing.T) {
	s := NewStore(&fakeSource{})
	var ids []string
	for i := 0; i < 50; i++ {
		ids = append(ids, s.AppendUserMessage("c1", "x").ID)
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestObservers_OrderAndSynchronous(t *testing.T) {
	s := NewStore(&fakeSource{})

	var kinds []ChangeKind
	var deltas []string
	s.Subscribe(func(c Change) {
		kinds = append(kinds, c.Kind)
		if c.Kind == ChangeDelta {
			deltas = append(deltas, c.Message.Content)
		}
	})

	s.AppendUserMessage("c1", "q")
	m, _ := s.BeginAssistantMessage("c1")
	_ = s.AppendDelta(m.ID, "a")
	_ = s.AppendDelta(m.ID, "b")
	_ = s.AppendDelta(m.ID, "c")
	s.Finalize(m.ID, Completed())

	assert.Equal(t, []ChangeKind{
		ChangeMessageAdded, ChangeMessageAdded,
		ChangeDelta, ChangeDelta, ChangeDelta,
		ChangeFinalized,
	}, kinds)
	assert.Equal(t, []string{"a", "ab", "abc"}, deltas)
}

func TestObservers_CanReadDuringNotify(t *testing.T) {
	s := NewStore(&fakeSource{})
	var seen []int
	s.Subscribe(func(c Change) {
		seen = append(seen, len(s.Messages(c.ConversationID)))
	})

	s.AppendUserMessage("c1", "a")
	s.AppendUserMessage("c1", "b")
	assert.Equal(t, []int{1, 2}, seen)
}

func TestObservers_Unsubscribe(t *testing.T) {
	s := NewStore(&fakeSource{})
	n := 0
	cancel := s.Subscribe(func(Change) { n++ })

	s.AppendUserMessage("c1", "a")
	cancel()
	s.AppendUserMessage("c1", "b")
	assert.Equal(t, 1, n)
}

func TestObservers_ConcurrentWritersSeeMonotonicContent(t *testing.T) {
	s := NewStore(&fakeSource{})

	var mu sync.Mutex
	last := map[string]string{}
	violations := 0
	s.Subscribe(func(c Change) {
		if c.Kind != ChangeDelta {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		prev := last[c.Message.ID]
		if !strings.HasPrefix(c.Message.Content, prev) || c.Message.Content != prev+c.Delta {
			violations++
		}
		last[c.Message.ID] = c.Message.Content
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		m, err := s.BeginAssistantMessage(fmt.Sprintf("c%d", i))
		require.NoError(t, err)
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.AppendDelta(id, "x")
			}
		}(m.ID)
	}
	wg.Wait()

	assert.Zero(t, violations)
	for _, content := range last {
		assert.Len(t, content, 100)
	}
}

func TestListConversations_MostRecentFirst(t *testing.T) {
	src := &fakeSource{
		conversations: []ai.ConversationSummary{
			{ID: "old", Title: "Old", CreatedAt: ts("2024-01-01T00:00:00Z")},
			{ID: "new", Title: "New", CreatedAt: ts("2024-03-01T00:00:00Z")},
			{ID: "mid", Title: "Mid", CreatedAt: ts("2024-02-01T00:00:00Z")},
		},
		messages: map[string][]ai.MessageRecord{"mid": nil},
	}
	s := NewStore(src)

	_, err := s.LoadMessages(context.Background(), "mid")
	require.NoError(t, err)

	var notified bool
	s.Subscribe(func(c Change) { notified = notified || c.Kind == ChangeConversations })

	convs, err := s.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{convs[0].ID, convs[1].ID, convs[2].ID})
	assert.True(t, convs[1].Loaded)
	assert.False(t, convs[0].Loaded)
	assert.True(t, notified)
	assert.Equal(t, convs, s.Conversations())
}

func TestListConversations_Error(t *testing.T) {
	s := NewStore(&fakeSource{err: fmt.Errorf("boom")})
	_, err := s.ListConversations(context.Background())
	assert.Error(t, err)
	assert.Empty(t, s.Conversations())
}

func TestFilter(t *testing.T) {
	src := &fakeSource{conversations: []ai.ConversationSummary{
		{ID: "1", Title: "Blog about Go"},
		{ID: "2", Title: "Instagram post"},
	}}
	s := NewStore(src)
	_, err := s.ListConversations(context.Background())
	require.NoError(t, err)

	assert.Len(t, s.Filter(""), 2)
	got := s.Filter("GO")
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
	assert.Empty(t, s.Filter("tiktok"))
}

func TestLoadMessages_ReplacesCache(t *testing.T) {
	src := &fakeSource{messages: map[string][]ai.MessageRecord{
		"c1": {
			{ID: "m1", Role: "user", Content: "hi", CreatedAt: ts("2024-01-01T00:00:00Z")},
			{ID: "m2", Role: "assistant", Content: "hello", CreatedAt: ts("2024-01-01T00:00:01Z")},
		},
	}}
	s := NewStore(src)
	stale := s.AppendUserMessage("c1", "local only")

	msgs, err := s.LoadMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, StateComplete, msgs[1].State)

	_, ok := s.Message(stale.ID)
	assert.False(t, ok)
	assert.Equal(t, msgs, s.Messages("c1"))
}

func TestLoadMessages_KeepsInFlightMessage(t *testing.T) {
	src := &fakeSource{messages: map[string][]ai.MessageRecord{
		"c1": {{ID: "m1", Role: "user", Content: "hi"}},
	}}
	s := NewStore(src)
	m, _ := s.BeginAssistantMessage("c1")
	_ = s.AppendDelta(m.ID, "par")

	msgs, err := s.LoadMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, m.ID, msgs[1].ID)
	assert.True(t, msgs[1].Streaming())

	require.NoError(t, s.AppendDelta(m.ID, "tial"))
	s.Finalize(m.ID, Completed())
	got, _ := s.Message(m.ID)
	assert.Equal(t, "partial", got.Content)
}

func TestLoadMessages_NotFound(t *testing.T) {
	s := NewStore(&fakeSource{messages: map[string][]ai.MessageRecord{}})
	_, err := s.LoadMessages(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadMessages_EmptyIDFetchesDefault(t *testing.T) {
	src := &fakeSource{messages: map[string][]ai.MessageRecord{
		ai.DefaultConversation: {{ID: "m1", Role: "user", Content: "hi"}},
	}}
	s := NewStore(src)

	msgs, err := s.LoadMessages(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, msgs, s.Messages(ai.DefaultConversation))
}

func TestOpenSelectsConversation(t *testing.T) {
	s := NewStore(&fakeSource{messages: map[string][]ai.MessageRecord{"c1": nil}})
	assert.Empty(t, s.Active())

	_, err := s.Open(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", s.Active())

	s.StartNew()
	assert.Empty(t, s.Active())

	_, err = s.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, s.Active())
}
