// Package conversation mirrors the service's conversations and holds the
// message list the user is looking at, including the one assistant message
// that may still be streaming.
package conversation

import (
	"errors"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// State is a message's lifecycle state. Streaming is the only mutable state;
// the others are terminal.
type State int

const (
	StateStreaming State = iota
	StateComplete
	StateErrored
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateErrored:
		return "errored"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound is returned for conversation ids the service does not know.
	ErrNotFound = errors.New("conversation not found")
	// ErrStreamInFlight is returned when a conversation already has a
	// streaming message.
	ErrStreamInFlight = errors.New("conversation already has a streaming message")
	// ErrNotStreaming is returned for deltas aimed at a finalized message.
	ErrNotStreaming = errors.New("message is not streaming")
	// ErrUnknownMessage is returned for message ids the store never issued.
	ErrUnknownMessage = errors.New("unknown message")
)

// Message is a snapshot of one message. The store owns the live copy.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	CreatedAt      time.Time
	State          State
	ErrorText      string
}

func (m Message) Streaming() bool { return m.State == StateStreaming }
func (m Message) Errored() bool   { return m.State == StateErrored || m.State == StateCancelled }
func (m Message) Terminal() bool  { return m.State != StateStreaming }

// Conversation is a summary as listed by the service. Loaded reports
// whether its messages have been fetched.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	Loaded    bool
}

// Outcome is the terminal result passed to Store.Finalize.
type Outcome struct {
	State     State
	ErrorText string
}

// Completed is the outcome of a stream that reached done.
func Completed() Outcome { return Outcome{State: StateComplete} }

// Failed is the outcome of a stream that ended in an error.
func Failed(reason string) Outcome { return Outcome{State: StateErrored, ErrorText: reason} }

// Cancelled is the outcome of a stream stopped by the user.
func Cancelled(reason string) Outcome { return Outcome{State: StateCancelled, ErrorText: reason} }

// ChangeKind describes what a store mutation did.
type ChangeKind int

const (
	ChangeConversations ChangeKind = iota // Conversation list replaced.
	ChangeMessagesLoaded                  // A conversation's messages replaced.
	ChangeMessageAdded                    // A user or placeholder message appended.
	ChangeDelta                           // Text appended to a streaming message.
	ChangeFinalized                       // A message reached a terminal state.
	ChangeActive                          // The active conversation changed.
)

// Change is delivered to observers after every mutation.
type Change struct {
	Kind           ChangeKind
	ConversationID string
	Message        Message // Snapshot after the mutation, for message changes.
	Delta          string  // Appended text, for ChangeDelta.
}

// Observer receives changes synchronously, in mutation order. Observers may
// read from the store but must not mutate it.
type Observer func(Change)
