// Package ai provides types for the generation service client.
package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arin/scribe-cli/internal/sse"
)

// DefaultConversation is the wire id used when a request has no conversation.
const DefaultConversation = "default"

// Event kinds, re-exported so callers need not import sse.
const (
	EventChunk = sse.KindChunk
	EventDone  = sse.KindDone
	EventError = sse.KindError
)

// GenerationRequest is one submitted prompt. It is passed by value and
// never modified after submission.
type GenerationRequest struct {
	Prompt         string
	ConversationID string // Empty means no conversation.
	Streaming      bool
}

func (r GenerationRequest) wire() chatRequest {
	id := r.ConversationID
	if id == "" {
		id = DefaultConversation
	}
	return chatRequest{Message: r.Prompt, Stream: r.Streaming, ConversationID: id}
}

// StreamEvent is a decoded event plus, for terminal failures raised on the
// client side, the typed cause.
type StreamEvent struct {
	sse.Event
	Err error
}

// ConversationSummary is one entry of the conversation listing.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt Timestamp `json:"created_at"`
}

// MessageRecord is one stored message of a conversation.
type MessageRecord struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
}

// HealthStatus is the body of the service health endpoint.
type HealthStatus struct {
	Status      string `json:"status"`
	Service     string `json:"service,omitempty"`
	Environment string `json:"environment,omitempty"`
	APIVersion  string `json:"api_version,omitempty"`
}

// Healthy reports whether the service considers itself healthy.
func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// Describe returns a short description of the service for display.
func (h HealthStatus) Describe() string {
	switch {
	case h.Service != "":
		return h.Service
	case h.Environment != "" && h.APIVersion != "":
		return h.Environment + ", api " + h.APIVersion
	default:
		return h.Environment
	}
}

// Timestamp accepts RFC 3339 times as well as the zone-less ISO 8601 times
// the service emits, which are UTC.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// chatRequest is the request body sent to the chat endpoint.
type chatRequest struct {
	Message        string `json:"message"`
	Stream         bool   `json:"stream"`
	ConversationID string `json:"conversation_id"`
}

// chatResponse is the non-streaming response body.
type chatResponse struct {
	Content string `json:"content"`
}

type conversationList struct {
	Conversations []ConversationSummary `json:"conversations"`
}

type messageList struct {
	Messages []MessageRecord `json:"messages"`
}

// errorEnvelope is the body the service returns on non-2xx responses.
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
