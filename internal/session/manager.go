package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arin/scribe-cli/internal/ai"
	"github.com/arin/scribe-cli/internal/conversation"
	"github.com/arin/scribe-cli/internal/progress"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"
)

// ErrBusy is returned by Submit while the conversation already has a
// session that has not finished.
var ErrBusy = errors.New("a generation is already running for this conversation")

var errManagerClosed = errors.New("session manager is closed")

const (
	DefaultRefreshInterval = time.Second
	DefaultRefreshTimeout  = 10 * time.Second
)

// Streamer opens a generation stream. *ai.Client implements it.
type Streamer interface {
	Stream(ctx context.Context, req ai.GenerationRequest) (<-chan ai.StreamEvent, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithRefreshInterval sets the minimum spacing between conversation list
// refreshes triggered by completed sessions.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithRefreshTimeout bounds a single conversation list refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshTimeout = d
		}
	}
}

// WithProgress configures the progress simulator of single-shot sessions.
func WithProgress(opts ...progress.Option) Option {
	return func(m *Manager) { m.progressOpts = append(m.progressOpts, opts...) }
}

// Manager submits requests and keeps at most one running session per
// conversation.
type Manager struct {
	store          *conversation.Store
	client         Streamer
	logger         zerolog.Logger
	limiter        *rate.Limiter
	refreshTimeout time.Duration
	progressOpts   []progress.Option

	wg conc.WaitGroup

	mu       sync.Mutex
	active   map[string]*Session
	reserved map[string]bool // Submits between their busy check and store writes.
	closed   bool
}

// NewManager creates a manager writing into store.
func NewManager(store *conversation.Store, client Streamer, opts ...Option) *Manager {
	m := &Manager{
		store:          store,
		client:         client,
		logger:         zerolog.Nop(),
		limiter:        rate.NewLimiter(rate.Every(DefaultRefreshInterval), 1),
		refreshTimeout: DefaultRefreshTimeout,
		active:         make(map[string]*Session),
		reserved:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit starts a session for req. It appends the prompt as a complete user
// message and an empty streaming assistant message before returning, then
// applies the answer in the background. Cancelling ctx cancels the session.
// Store observers notified during Submit may call back into the manager.
func (m *Manager) Submit(ctx context.Context, req ai.GenerationRequest) (*Session, error) {
	k := req.ConversationID
	if k == "" {
		k = ai.DefaultConversation
	}

	if err := m.reserve(k); err != nil {
		return nil, err
	}

	user := m.store.AppendUserMessage(k, req.Prompt)
	placeholder, err := m.store.BeginAssistantMessage(k)
	if err != nil {
		m.unreserve(k)
		if errors.Is(err, conversation.ErrStreamInFlight) {
			return nil, fmt.Errorf("%w: %s", ErrBusy, k)
		}
		return nil, err
	}

	s := &Session{
		req:       req,
		key:       k,
		store:     m.store,
		client:    m.client,
		logger:    m.logger.With().Str("conversation", k).Logger(),
		mgr:       m,
		userMsgID: user.ID,
		msgID:     placeholder.ID,
		started:   time.Now(),
		done:      make(chan struct{}),
	}
	if !req.Streaming {
		s.progress = progress.New(m.progressOpts...)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	m.mu.Lock()
	delete(m.reserved, k)
	if m.closed {
		m.mu.Unlock()
		s.cancel()
		m.store.Finalize(s.msgID, conversation.Cancelled(ai.FailureReason(context.Canceled)))
		return nil, errManagerClosed
	}
	m.active[k] = s
	m.wg.Go(s.run)
	m.mu.Unlock()
	return s, nil
}

// reserve claims conversation k for a Submit that has not yet written to
// the store.
func (m *Manager) reserve(k string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errManagerClosed
	}
	if _, ok := m.active[k]; ok {
		return fmt.Errorf("%w: %s", ErrBusy, k)
	}
	if m.reserved[k] {
		return fmt.Errorf("%w: %s", ErrBusy, k)
	}
	if _, ok := m.store.InFlight(k); ok {
		return fmt.Errorf("%w: %s", ErrBusy, k)
	}
	m.reserved[k] = true
	return nil
}

func (m *Manager) unreserve(k string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reserved, k)
}

// Active returns the running session of a conversation, if any.
func (m *Manager) Active(conversationID string) (*Session, bool) {
	if conversationID == "" {
		conversationID = ai.DefaultConversation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.active[conversationID]
	return s, ok
}

// CancelAll cancels every running session.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.active))
	for _, s := range m.active {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Cancel()
	}
}

// Wait blocks until every session and background refresh has returned.
// Submit fails afterwards.
func (m *Manager) Wait() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[s.key] == s {
		delete(m.active, s.key)
	}
}

// finished is called once per session, when it turns terminal.
func (m *Manager) finished(s *Session, state State) {
	m.release(s)
	if state != StateFinalized {
		return
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}
	m.wg.Go(m.refresh)
}

// refresh re-reads the conversation list so a conversation created by the
// service shows up. Failures are logged only.
func (m *Manager) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
	defer cancel()

	if err := m.limiter.Wait(ctx); err != nil {
		m.logger.Debug().Err(err).Msg("conversation refresh skipped")
		return
	}
	if _, err := m.store.ListConversations(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("failed to refresh conversations")
		return
	}
	m.logger.Debug().Msg("conversations refreshed")
}
