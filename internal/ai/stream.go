package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/arin/scribe-cli/internal/sse"
)

// Stream submits req and returns its events in receipt order. The channel
// always ends with exactly one terminal event (done or error) and is then
// closed.
//
// Failures before the first event are returned as errors: *NetworkError
// when the service cannot be reached and *ServerError for non-2xx replies.
// Once a stream is open, transport failures arrive as a terminal error
// event whose Err is a *StreamInterruptedError (or the context's error when
// ctx ends), never as a panic or a blocked goroutine.
//
// Non-streaming requests yield one chunk carrying the full answer, then done.
func (c *Client) Stream(ctx context.Context, req GenerationRequest) (<-chan StreamEvent, error) {
	if !req.Streaming {
		return c.single(ctx, req)
	}

	resp, err := c.do(ctx, c.streamClient, http.MethodPost, chatPath, req.wire(), "text/event-stream")
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent)
	go c.pump(ctx, resp.Body, ch)
	return ch, nil
}

func (c *Client) single(ctx context.Context, req GenerationRequest) (<-chan StreamEvent, error) {
	resp, err := c.do(ctx, c.httpClient, http.MethodPost, chatPath, req.wire(), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	ch := make(chan StreamEvent, 2)
	ch <- StreamEvent{Event: sse.Event{Kind: sse.KindChunk, Content: out.Content}}
	ch <- StreamEvent{Event: sse.Event{Kind: sse.KindDone}}
	close(ch)
	return ch, nil
}

// pump forwards decoded events until the first terminal one.
func (c *Client) pump(ctx context.Context, body io.ReadCloser, ch chan<- StreamEvent) {
	defer close(ch)
	defer body.Close()

	send := func(ev StreamEvent) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	received := 0
	for ev, err := range sse.Events(body, sse.WithLogger(c.logger)) {
		if err != nil {
			send(interrupted(ctx, received, err))
			return
		}
		if !send(StreamEvent{Event: ev}) {
			return
		}
		if ev.Kind != sse.KindChunk {
			return
		}
		received++
	}
	send(interrupted(ctx, received, io.ErrUnexpectedEOF))
}

func interrupted(ctx context.Context, received int, cause error) StreamEvent {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return StreamEvent{
			Event: sse.Event{Kind: sse.KindError, Reason: FailureReason(ctxErr)},
			Err:   ctxErr,
		}
	}
	err := &StreamInterruptedError{Received: received, Err: cause}
	return StreamEvent{
		Event: sse.Event{Kind: sse.KindError, Reason: FailureReason(err)},
		Err:   err,
	}
}

// Collect reads all events from a stream channel and returns the
// concatenated content. A terminal error event is returned as an error
// together with the partial content.
func Collect(ch <-chan StreamEvent) (string, error) {
	var result string
	chunks := 0
	for ev := range ch {
		switch ev.Kind {
		case sse.KindChunk:
			result += ev.Content
			chunks++
		case sse.KindDone:
			return result, nil
		case sse.KindError:
			if ev.Err != nil {
				return result, ev.Err
			}
			return result, errors.New(ev.Reason)
		}
	}
	return result, &StreamInterruptedError{Received: chunks, Err: io.ErrUnexpectedEOF}
}
