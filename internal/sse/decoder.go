// Package sse decodes the generation service's server-sent event stream.
// Frames are single lines of the form `data: {json}`; everything else on
// the wire (blank separators, comments, other fields) is ignored.
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"

	"github.com/rs/zerolog"
)

// Kind tags a decoded stream event.
type Kind string

const (
	KindChunk Kind = "chunk" // A delta of generated text.
	KindDone  Kind = "done"  // Terminal success.
	KindError Kind = "error" // Terminal failure reported by the service.
)

const (
	// MaxLineSize bounds a single frame line, excluding its newline. Longer
	// lines are discarded.
	MaxLineSize = 1 << 20

	readSize = 4 * 1024
)

var dataPrefix = []byte("data:")

// Event is one decoded frame.
type Event struct {
	Kind    Kind
	Content string // Delta text for KindChunk.
	Reason  string // Failure reason for KindError.
}

// frame is the JSON payload carried after the data prefix.
type frame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Message string `json:"message"`
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used for dropped frames.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Decoder) { d.logger = l }
}

// Decoder turns raw byte chunks into events. It buffers an incomplete
// trailing line across Feed calls, so chunk boundaries may fall anywhere.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf      []byte
	skipping bool // Inside an oversized line, dropping bytes until '\n'.
	logger   zerolog.Logger
}

// NewDecoder creates an empty decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed consumes the next chunk and returns the events it completes, in
// stream order. A line longer than MaxLineSize is dropped whole, however
// the chunks split it.
func (d *Decoder) Feed(chunk []byte) []Event {
	var events []Event
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			d.hold(chunk)
			break
		}
		part := chunk[:i]
		chunk = chunk[i+1:]

		if d.skipping {
			d.skipping = false
			continue
		}
		if len(d.buf)+len(part) > MaxLineSize {
			d.logger.Debug().Int("bytes", len(d.buf)+len(part)).Msg("oversized frame discarded")
			d.buf = d.buf[:0]
			continue
		}
		line := part
		if len(d.buf) > 0 {
			d.buf = append(d.buf, part...)
			line = d.buf
		}
		if ev, ok := d.decodeLine(bytes.TrimSuffix(line, []byte("\r"))); ok {
			events = append(events, ev)
		}
		d.buf = d.buf[:0]
	}
	return events
}

// hold buffers the start of an incomplete line. Once it outgrows
// MaxLineSize the line is skipped up to its newline.
func (d *Decoder) hold(part []byte) {
	if d.skipping {
		return
	}
	if len(d.buf)+len(part) > MaxLineSize {
		d.logger.Debug().Int("bytes", len(d.buf)+len(part)).Msg("oversized frame discarded")
		d.buf = d.buf[:0]
		d.skipping = true
		return
	}
	d.buf = append(d.buf, part...)
}

// Pending reports how many bytes of an incomplete line are buffered.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Close ends the stream. A buffered partial line is incomplete by
// definition and is discarded; the number of discarded bytes is returned.
func (d *Decoder) Close() int {
	n := len(d.buf)
	d.buf = nil
	d.skipping = false
	return n
}

func (d *Decoder) decodeLine(line []byte) (Event, bool) {
	if !bytes.HasPrefix(line, dataPrefix) {
		return Event{}, false
	}
	payload := bytes.TrimPrefix(line[len(dataPrefix):], []byte(" "))

	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		// Partial and malformed frames are expected; they are not errors.
		d.logger.Debug().Err(err).Bytes("line", line).Msg("dropping malformed frame")
		return Event{}, false
	}

	switch f.Type {
	case "chunk":
		return Event{Kind: KindChunk, Content: f.Content}, true
	case "done", "end":
		return Event{Kind: KindDone}, true
	case "error":
		reason := f.Message
		if reason == "" {
			reason = f.Content
		}
		if reason == "" {
			reason = "generation failed"
		}
		return Event{Kind: KindError, Reason: reason}, true
	default:
		// "start" and anything newer than this client carry no content.
		return Event{}, false
	}
}

// Events reads r to the end and yields decoded events lazily. The sequence
// is finite and can be ranged over once. A read error other than io.EOF is
// yielded as the final element.
func Events(r io.Reader, opts ...Option) iter.Seq2[Event, error] {
	d := NewDecoder(opts...)
	return func(yield func(Event, error) bool) {
		buf := make([]byte, readSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				for _, ev := range d.Feed(buf[:n]) {
					if !yield(ev, nil) {
						return
					}
				}
			}
			if err != nil {
				if dropped := d.Close(); dropped > 0 {
					d.logger.Debug().Int("bytes", dropped).Msg("discarding partial frame at end of stream")
				}
				if !errors.Is(err, io.EOF) {
					yield(Event{}, err)
				}
				return
			}
		}
	}
}
