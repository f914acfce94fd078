// Package readiness provides a one-shot signal that dependents can poll, wait on
// or subscribe to. Once ready, a Signal never goes back.
package readiness

import (
	"context"
	"sync"
)

// Default is the process-wide signal flipped by the provider initializer.
var Default = NewSignal()

// Signal is a monotonic ready flag.
type Signal struct {
	once        sync.Once
	done        chan struct{}
	mu          sync.Mutex
	ready       bool
	subscribers []func()
}

func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// MarkReady flips the signal and runs every pending subscriber. Calls after the first are no-ops.
func (s *Signal) MarkReady() {
	s.once.Do(func() {
		s.mu.Lock()
		s.ready = true
		subscribers := s.subscribers
		s.subscribers = nil
		close(s.done)
		s.mu.Unlock()

		for _, fn := range subscribers {
			fn()
		}
	})
}

// Ready reports whether MarkReady has been called.
func (s *Signal) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Done exports a channel which is closed once the signal is ready.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the signal is ready or ctx ends, whichever comes first.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe runs fn exactly once when the signal becomes ready. If it already is,
// fn runs before Subscribe returns, on the caller's goroutine.
func (s *Signal) Subscribe(fn func()) {
	s.mu.Lock()
	if !s.ready {
		s.subscribers = append(s.subscribers, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}
