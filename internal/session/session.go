// Package session runs one generation request end to end: it writes the
// user's prompt and an assistant placeholder into the conversation store,
// applies the answer's events to the placeholder in order and finalizes it
// exactly once.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/arin/scribe-cli/internal/ai"
	"github.com/arin/scribe-cli/internal/conversation"
	"github.com/arin/scribe-cli/internal/progress"
	"github.com/rs/zerolog"
)

// State is a session's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAwaitingFirstByte
	StateStreaming
	StateFinalized
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFirstByte:
		return "awaiting first byte"
	case StateStreaming:
		return "streaming"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateFailed || s == StateCancelled
}

// Mode names how the answer was delivered.
const (
	ModeStream = "stream"
	ModeSingle = "single"
)

// Report holds the timings of one session.
type Report struct {
	Mode           string
	ConversationID string
	Started        time.Time
	FirstByte      time.Duration // Zero if no chunk arrived.
	Total          time.Duration // Zero while running.
	Chunks         int
	Chars          int
	State          State
	Err            error
}

// Session is one submitted request. All methods are safe for concurrent use.
type Session struct {
	req     ai.GenerationRequest
	key     string
	store   *conversation.Store
	client  Streamer
	logger  zerolog.Logger
	mgr     *Manager

	userMsgID string
	msgID     string
	progress  *progress.Simulator

	ctx    context.Context
	cancel context.CancelFunc

	// applyMu is held while a delta or the terminal outcome is written to
	// the store, so nothing is applied after the session turns terminal.
	applyMu sync.Mutex

	mu        sync.Mutex
	state     State
	err       error
	started   time.Time
	firstByte time.Duration
	total     time.Duration
	chunks    int
	chars     int

	done chan struct{}
}

// Request returns the submitted request.
func (s *Session) Request() ai.GenerationRequest { return s.req }

// ConversationID returns the store key of the session's conversation.
func (s *Session) ConversationID() string { return s.key }

// MessageID returns the id of the assistant message being written.
func (s *Session) MessageID() string { return s.msgID }

// UserMessageID returns the id of the user's prompt message.
func (s *Session) UserMessageID() string { return s.userMsgID }

// Progress returns the simulated progress for single-shot requests, or nil
// for streaming ones.
func (s *Session) Progress() *progress.Simulator { return s.progress }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns why the session failed or was cancelled, nil otherwise.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session's goroutine has exited and its resources
// are released.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session is done or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Report returns the session's timings so far.
func (s *Session) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	mode := ModeSingle
	if s.req.Streaming {
		mode = ModeStream
	}
	return Report{
		Mode:           mode,
		ConversationID: s.key,
		Started:        s.started,
		FirstByte:      s.firstByte,
		Total:          s.total,
		Chunks:         s.chunks,
		Chars:          s.chars,
		State:          s.state,
		Err:            s.err,
	}
}

// Cancel stops the session. The assistant message is finalized as
// cancelled before Cancel returns, and no later event reaches it. Cancelling
// a terminal session does nothing. Cancel must not be called from a store
// observer.
func (s *Session) Cancel() {
	s.abort(context.Canceled)
}

func (s *Session) abort(cause error) {
	state, outcome := StateCancelled, conversation.Cancelled(ai.FailureReason(context.Canceled))
	if !errors.Is(cause, context.Canceled) {
		state, outcome = StateFailed, conversation.Failed(ai.FailureReason(cause))
	}
	if s.finish(state, outcome, cause) {
		s.cancel()
		s.logger.Info().Str("message", s.msgID).Stringer("state", state).Msg("generation stopped")
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Terminal() {
		s.state = state
	}
}

// run drives the stream. It is the only goroutine that appends deltas.
func (s *Session) run() {
	defer close(s.done)
	defer s.mgr.release(s)
	defer s.cancel()
	if s.progress != nil {
		defer s.progress.Stop()
		s.progress.Start()
	}

	s.setState(StateAwaitingFirstByte)

	events, err := s.client.Stream(s.ctx, s.req)
	if err != nil {
		s.fail(err)
		return
	}

	for ev := range events {
		switch ev.Kind {
		case ai.EventChunk:
			if !s.apply(ev.Content) {
				return
			}
		case ai.EventDone:
			if s.finish(StateFinalized, conversation.Completed(), nil) {
				s.logger.Debug().Str("message", s.msgID).Msg("generation complete")
			}
			return
		case ai.EventError:
			err := ev.Err
			if err == nil {
				err = errors.New(ev.Reason)
			}
			s.finish(StateFailed, conversation.Failed(ev.Reason), err)
			return
		}
	}

	// The client closes the channel without a terminal event only when the
	// context ended.
	if err := s.ctx.Err(); err != nil {
		s.abort(err)
		return
	}
	s.fail(&ai.StreamInterruptedError{Received: s.Report().Chunks, Err: io.ErrUnexpectedEOF})
}

// apply appends one chunk. It reports false once the session is terminal.
func (s *Session) apply(text string) bool {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	if s.chunks == 0 {
		s.firstByte = time.Since(s.started)
		s.state = StateStreaming
	}
	s.chunks++
	s.chars += utf8.RuneCountInString(text)
	s.mu.Unlock()

	if err := s.store.AppendDelta(s.msgID, text); err != nil {
		s.logger.Debug().Err(err).Msg("delta not applied")
	}
	return true
}

func (s *Session) fail(err error) {
	if errors.Is(err, context.Canceled) && s.ctx.Err() != nil {
		s.abort(context.Canceled)
		return
	}
	s.logger.Warn().Err(err).Str("message", s.msgID).Msg("generation failed")
	s.finish(StateFailed, conversation.Failed(ai.FailureReason(err)), err)
}

// finish moves the session to a terminal state and finalizes the message.
// Only the first call has an effect.
func (s *Session) finish(state State, outcome conversation.Outcome, err error) bool {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.state = state
	s.err = err
	s.total = time.Since(s.started)
	s.mu.Unlock()

	s.store.Finalize(s.msgID, outcome)
	// A response, successful or not, completes the progress bar. A
	// cancelled request never got one.
	if s.progress != nil {
		if state == StateCancelled {
			s.progress.Stop()
		} else {
			s.progress.Complete()
		}
	}
	s.mgr.finished(s, state)
	return true
}
