package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/arin/scribe-cli/internal/ai"
	"github.com/arin/scribe-cli/internal/conversation"
	"github.com/fatih/color"
)

// MessageWriter renders an assistant message to the terminal as the
// conversation store reports it. Register Observe with Store.Subscribe
// before submitting: the writer follows the next assistant placeholder
// added to its conversation and prints every delta of that message, with
// prefix before the first one.
type MessageWriter struct {
	w            io.Writer
	prefix       string
	conversation string

	mu       sync.Mutex
	id       string
	printed  bool
	full     strings.Builder
	final    conversation.Message
	finished chan struct{}
}

// NewMessageWriter creates a writer for the next answer in conversationID.
func NewMessageWriter(w io.Writer, prefix, conversationID string) *MessageWriter {
	if conversationID == "" {
		conversationID = ai.DefaultConversation
	}
	return &MessageWriter{
		w:            w,
		prefix:       prefix,
		conversation: conversationID,
		finished:     make(chan struct{}),
	}
}

// Observe is a conversation.Observer.
func (mw *MessageWriter) Observe(c conversation.Change) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	switch c.Kind {
	case conversation.ChangeMessageAdded:
		if mw.id == "" && c.ConversationID == mw.conversation &&
			c.Message.Role == conversation.RoleAssistant && c.Message.Streaming() {
			mw.id = c.Message.ID
		}
	case conversation.ChangeDelta:
		if c.Message.ID != mw.id || c.Delta == "" {
			return
		}
		if !mw.printed {
			fmt.Fprint(mw.w, mw.prefix)
			mw.printed = true
		}
		fmt.Fprint(mw.w, c.Delta)
		mw.full.WriteString(c.Delta)
	case conversation.ChangeFinalized:
		if c.Message.ID != mw.id {
			return
		}
		mw.final = c.Message
		mw.finish()
	}
}

// finish must be called with mu held.
func (mw *MessageWriter) finish() {
	// Ensure we end with a newline.
	if mw.full.Len() > 0 && !strings.HasSuffix(mw.full.String(), "\n") {
		fmt.Fprintln(mw.w)
	}
	switch mw.final.State {
	case conversation.StateErrored:
		color.New(color.FgRed).Fprintf(mw.w, "%s✗ %s\n", mw.prefix, mw.final.ErrorText)
	case conversation.StateCancelled:
		color.New(color.FgYellow).Fprintf(mw.w, "%s■ %s\n", mw.prefix, mw.final.ErrorText)
	}
	fmt.Fprintln(mw.w)
	close(mw.finished)
}

// MessageID returns the id of the followed message, empty until the
// placeholder has been added.
func (mw *MessageWriter) MessageID() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.id
}

// Finished is closed once the followed message reaches a terminal state.
func (mw *MessageWriter) Finished() <-chan struct{} {
	return mw.finished
}

// Text returns the answer text printed so far, without error notices.
func (mw *MessageWriter) Text() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return strings.TrimSpace(mw.full.String())
}

// Final returns the followed message as finalized.
func (mw *MessageWriter) Final() conversation.Message {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.final
}
