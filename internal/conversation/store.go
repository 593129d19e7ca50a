package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arin/scribe-cli/internal/ai"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Source is the remote side of the store. *ai.Client implements it.
type Source interface {
	ListConversations(ctx context.Context) ([]ai.ConversationSummary, error)
	ConversationMessages(ctx context.Context, id string) ([]ai.MessageRecord, error)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// entry is the store's live copy of a message.
type entry struct {
	msg     Message
	content strings.Builder
}

func (e *entry) snapshot() Message {
	m := e.msg
	m.Content = e.content.String()
	return m
}

type subscription struct {
	id int
	fn Observer
}

// Store holds the conversation list and per-conversation message lists.
//
// Every mutation runs under writeMu, which is held until all observers
// have been notified, so notification order always equals mutation order.
// mu guards the data itself and is released before observers run, which
// lets them read the store.
type Store struct {
	src    Source
	logger zerolog.Logger

	writeMu sync.Mutex

	mu            sync.Mutex
	conversations []Conversation
	messages      map[string][]*entry
	byID          map[string]*entry
	loaded        map[string]bool
	inFlight      map[string]string // conversation key -> streaming message id
	active        string
	observers     []subscription
	nextObserver  int
}

// NewStore creates an empty store backed by src.
func NewStore(src Source, opts ...Option) *Store {
	s := &Store{
		src:      src,
		logger:   zerolog.Nop(),
		messages: make(map[string][]*entry),
		byID:     make(map[string]*entry),
		loaded:   make(map[string]bool),
		inFlight: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// key maps "no conversation" to the id the service uses for it.
func key(conversationID string) string {
	if conversationID == "" {
		return ai.DefaultConversation
	}
	return conversationID
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextObserver
	s.nextObserver++
	s.observers = append(s.observers, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.observers {
			if sub.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// notify must be called with writeMu held and mu released.
func (s *Store) notify(c Change) {
	s.mu.Lock()
	subs := make([]subscription, len(s.observers))
	copy(subs, s.observers)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(c)
	}
}

// ListConversations fetches the conversation list and caches it
// most-recent-first. Cached message lists are kept.
func (s *Store) ListConversations(ctx context.Context) ([]Conversation, error) {
	summaries, err := s.src.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	convs := make([]Conversation, len(summaries))
	for i, sum := range summaries {
		convs[i] = Conversation{ID: sum.ID, Title: sum.Title, CreatedAt: sum.CreatedAt.Time}
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	for i := range convs {
		convs[i].Loaded = s.loaded[convs[i].ID]
	}
	s.conversations = convs
	out := append([]Conversation(nil), convs...)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeConversations})
	return out, nil
}

// Conversations returns the cached conversation list.
func (s *Store) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Conversation(nil), s.conversations...)
}

// Filter returns cached conversations whose title contains query,
// ignoring case.
func (s *Store) Filter(query string) []Conversation {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Conversation
	for _, c := range s.Conversations() {
		if q == "" || strings.Contains(strings.ToLower(c.Title), q) {
			out = append(out, c)
		}
	}
	return out
}

// LoadMessages replaces the cached message list of conversation id with the
// service's copy. A message of that conversation still streaming locally is
// kept at the end of the list so its session can finish writing to it.
func (s *Store) LoadMessages(ctx context.Context, id string) ([]Message, error) {
	k := key(id)
	records, err := s.src.ConversationMessages(ctx, k)
	if err != nil {
		if errors.Is(err, ai.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
		}
		return nil, err
	}

	fresh := make([]*entry, 0, len(records)+1)
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		e := &entry{msg: Message{
			ID:             r.ID,
			ConversationID: k,
			Role:           Role(r.Role),
			CreatedAt:      r.CreatedAt.Time,
			State:          StateComplete,
		}}
		e.content.WriteString(r.Content)
		fresh = append(fresh, e)
		seen[r.ID] = true
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if streamingID, ok := s.inFlight[k]; ok && !seen[streamingID] {
		fresh = append(fresh, s.byID[streamingID])
	}
	for _, old := range s.messages[k] {
		delete(s.byID, old.msg.ID)
	}
	for _, e := range fresh {
		s.byID[e.msg.ID] = e
	}
	s.messages[k] = fresh
	s.loaded[k] = true
	for i := range s.conversations {
		if s.conversations[i].ID == k {
			s.conversations[i].Loaded = true
		}
	}
	out := snapshots(fresh)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMessagesLoaded, ConversationID: k})
	return out, nil
}

// Open loads a conversation's messages and makes it the active one.
func (s *Store) Open(ctx context.Context, id string) ([]Message, error) {
	msgs, err := s.LoadMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Select(id)
	return msgs, nil
}

// Select makes id the active conversation. The empty id means a new chat.
func (s *Store) Select(id string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.active = id
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeActive, ConversationID: id})
}

// StartNew deselects the active conversation.
func (s *Store) StartNew() {
	s.Select("")
}

// Active returns the active conversation id, empty for a new chat.
func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Messages returns the cached messages of a conversation in insertion order.
func (s *Store) Messages(conversationID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshots(s.messages[key(conversationID)])
}

// Message returns one message by id.
func (s *Store) Message(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return Message{}, false
	}
	return e.snapshot(), true
}

// InFlight returns the id of the conversation's streaming message, if any.
func (s *Store) InFlight(conversationID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.inFlight[key(conversationID)]
	return id, ok
}

// AppendUserMessage appends a complete user message. User input is never
// streamed.
func (s *Store) AppendUserMessage(conversationID, text string) Message {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	k := key(conversationID)
	e := &entry{msg: Message{
		ID:             newID(),
		ConversationID: k,
		Role:           RoleUser,
		CreatedAt:      time.Now(),
		State:          StateComplete,
	}}
	e.content.WriteString(text)
	s.add(k, e)
	snap := e.snapshot()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMessageAdded, ConversationID: k, Message: snap})
	return snap
}

// BeginAssistantMessage appends an empty streaming placeholder. It fails
// with ErrStreamInFlight if the conversation already has one.
func (s *Store) BeginAssistantMessage(conversationID string) (Message, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	k := key(conversationID)
	if existing, ok := s.inFlight[k]; ok {
		s.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %s (message %s)", ErrStreamInFlight, k, existing)
	}
	e := &entry{msg: Message{
		ID:             newID(),
		ConversationID: k,
		Role:           RoleAssistant,
		CreatedAt:      time.Now(),
		State:          StateStreaming,
	}}
	s.add(k, e)
	s.inFlight[k] = e.msg.ID
	snap := e.snapshot()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMessageAdded, ConversationID: k, Message: snap})
	return snap, nil
}

// add must be called with mu held.
func (s *Store) add(k string, e *entry) {
	s.messages[k] = append(s.messages[k], e)
	s.byID[e.msg.ID] = e
}

// AppendDelta appends text to a streaming message. Deltas for finalized or
// unknown messages are dropped and logged; finalized content never changes.
func (s *Store) AppendDelta(messageID, text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	e, ok := s.byID[messageID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn().Str("message", messageID).Msg("delta for unknown message dropped")
		return fmt.Errorf("%w: %s", ErrUnknownMessage, messageID)
	}
	if e.msg.State != StateStreaming {
		state := e.msg.State
		s.mu.Unlock()
		s.logger.Debug().Str("message", messageID).Stringer("state", state).Msg("late delta dropped")
		return fmt.Errorf("%w: %s is %s", ErrNotStreaming, messageID, state)
	}
	e.content.WriteString(text)
	snap := e.snapshot()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeDelta, ConversationID: snap.ConversationID, Message: snap, Delta: text})
	return nil
}

// Finalize moves a streaming message to a terminal state. Only the first
// call has an effect; it reports whether this call made the transition.
// Errored and cancelled outcomes append their notice to the content.
func (s *Store) Finalize(messageID string, outcome Outcome) bool {
	if outcome.State == StateStreaming {
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	e, ok := s.byID[messageID]
	if !ok || e.msg.State != StateStreaming {
		s.mu.Unlock()
		return false
	}
	e.msg.State = outcome.State
	e.msg.ErrorText = outcome.ErrorText
	if outcome.State != StateComplete && outcome.ErrorText != "" {
		if e.content.Len() > 0 {
			e.content.WriteString("\n\n")
		}
		e.content.WriteString(outcome.ErrorText)
	}
	if s.inFlight[e.msg.ConversationID] == messageID {
		delete(s.inFlight, e.msg.ConversationID)
	}
	snap := e.snapshot()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeFinalized, ConversationID: snap.ConversationID, Message: snap})
	return true
}

func snapshots(entries []*entry) []Message {
	out := make([]Message, len(entries))
	for i, e := range entries {
		out[i] = e.snapshot()
	}
	return out
}
