package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches server errors with status 404, e.g. an unknown
// conversation id.
var ErrNotFound = errors.New("not found")

// NetworkError means the transport to the service could not be established.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("could not reach generation service at %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is a non-2xx response received before any event was emitted.
// Message is the service's error.message when present.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("generation service error (status %d): %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *ServerError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// StreamInterruptedError means the connection dropped after the stream had
// started. Received counts the chunks delivered before the drop.
type StreamInterruptedError struct {
	Received int
	Err      error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream interrupted after %d chunks: %v", e.Received, e.Err)
}

func (e *StreamInterruptedError) Unwrap() error {
	return e.Err
}

func newServerError(status int, body []byte) *ServerError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		return &ServerError{Status: status, Message: env.Error.Message}
	}
	return &ServerError{Status: status, Message: fmt.Sprintf("HTTP %d", status)}
}

// FailureReason turns an error from this package into the text shown to
// the user in place of a failed answer.
func FailureReason(err error) string {
	var (
		serverErr *ServerError
		netErr    *NetworkError
		streamErr *StreamInterruptedError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Generation cancelled."
	case errors.As(err, &serverErr):
		return serverErr.Message
	case errors.As(err, &netErr):
		return "Could not reach the generation service. Please try again."
	case errors.As(err, &streamErr):
		return "The connection was lost before the answer finished."
	default:
		return err.Error()
	}
}
