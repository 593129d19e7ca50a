// Package progress simulates a progress indicator for single-shot
// generation requests, where the service reports nothing until the answer
// is ready. The value is a UX heuristic, not server progress.
package progress

import (
	"sync"
	"time"
)

const (
	DefaultStep     = 10
	DefaultInterval = 200 * time.Millisecond
	DefaultCeiling  = 90

	// Full is the value reported once the response has arrived.
	Full = 100
)

// Option configures a Simulator.
type Option func(*Simulator)

// WithStep sets the increment applied on every tick.
func WithStep(step int) Option {
	return func(s *Simulator) {
		if step > 0 {
			s.step = step
		}
	}
}

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithCeiling sets the value the simulator never passes while running.
func WithCeiling(ceiling int) Option {
	return func(s *Simulator) {
		if ceiling > 0 && ceiling < Full {
			s.ceiling = ceiling
		}
	}
}

// WithObserver registers fn to receive every new value, including the
// final Full. Observers may call Value but not Complete.
func WithObserver(fn func(int)) Option {
	return func(s *Simulator) { s.observers = append(s.observers, fn) }
}

// Simulator starts at 0, grows by a fixed step on a fixed interval, stays
// below its ceiling while running and jumps to Full exactly once on
// Complete. Its ticker is released on Complete and Stop.
type Simulator struct {
	step      int
	interval  time.Duration
	ceiling   int
	observers []func(int)

	// emitMu orders observer calls so Full is always the last value seen.
	emitMu sync.Mutex

	mu      sync.Mutex
	value   int
	started bool
	ended   bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a stopped simulator at 0.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		step:     DefaultStep,
		interval: DefaultInterval,
		ceiling:  DefaultCeiling,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins ticking. Calling Start twice, or after the simulator has
// ended, does nothing.
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.ended {
		return
	}
	s.started = true
	go s.run()
}

func (s *Simulator) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Simulator) tick() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.ended || s.value >= s.ceiling {
		s.mu.Unlock()
		return
	}
	s.value = min(s.value+s.step, s.ceiling)
	v := s.value
	s.mu.Unlock()

	s.emit(v)
}

func (s *Simulator) emit(v int) {
	for _, fn := range s.observers {
		fn(v)
	}
}

// Value returns the current value.
func (s *Simulator) Value() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Running reports whether the ticker is live.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.ended
}

// Complete forces the value to Full and stops the ticker. Only the first
// call has an effect; it reports whether this call completed the simulator.
func (s *Simulator) Complete() bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if !s.end(Full) {
		return false
	}
	s.emit(Full)
	return true
}

// Stop releases the ticker without reporting completion, for teardown.
func (s *Simulator) Stop() {
	s.end(-1)
}

// end marks the simulator finished and, if value >= 0, sets it.
func (s *Simulator) end(value int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	if value >= 0 {
		s.value = value
	}
	close(s.stop)
	if !s.started {
		close(s.done)
	}
	return true
}

// Done is closed once the ticker has been released.
func (s *Simulator) Done() <-chan struct{} {
	return s.done
}
