// Package host runs ad slot components on a single logical thread.
//
// A Loop advances in frames. Each frame drains callbacks posted from other
// goroutines, fires the waits that came due, and then updates every registered
// component. Because all component state is touched only from inside Frame,
// components need no locking of their own.
package host

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
)

// Updater is implemented by components that want a callback on every frame.
type Updater interface {
	Update()
}

type Loop struct {
	clock clock.Clock

	postMu sync.Mutex
	posted []func()

	// Only touched from inside Frame.
	waits    []*Timer
	updaters []Updater
	frame    uint64
}

func NewLoop(clk clock.Clock) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	return &Loop{clock: clk}
}

// Clock exposes the loop's time source.
func (l *Loop) Clock() clock.Clock {
	return l.clock
}

// Now returns the loop's current time.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// FrameCount returns the number of frames run so far.
func (l *Loop) FrameCount() uint64 {
	return l.frame
}

// Post queues fn to run on the loop's next frame. Safe for concurrent use.
func (l *Loop) Post(fn func()) {
	l.postMu.Lock()
	l.posted = append(l.posted, fn)
	l.postMu.Unlock()
}

// Do posts fn and blocks until it has run on the loop or ctx ends.
// It must not be called from inside a frame.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register adds a per-frame updater. Must be called from the loop.
func (l *Loop) Register(u Updater) {
	l.updaters = append(l.updaters, u)
}

// After schedules fn to run on the first frame at or after now+d.
// Must be called from the loop.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	t := &Timer{
		deadline: l.clock.Now().Add(d),
		onDone:   func(bool) { fn() },
	}
	l.waits = append(l.waits, t)
	return t
}

// WaitUntil evaluates pred on every frame and calls fn(true) on the first frame it holds.
// A positive timeout bounds the wait; fn(false) runs when it expires first.
// Must be called from the loop.
func (l *Loop) WaitUntil(pred func() bool, timeout time.Duration, fn func(ok bool)) *Timer {
	t := &Timer{
		pred:   pred,
		onDone: fn,
	}
	if timeout > 0 {
		t.deadline = l.clock.Now().Add(timeout)
	}
	l.waits = append(l.waits, t)
	return t
}

// Frame runs a single frame.
func (l *Loop) Frame() {
	l.frame++

	l.postMu.Lock()
	posted := l.posted
	l.posted = nil
	l.postMu.Unlock()

	for _, fn := range posted {
		l.safely("posted callback", fn)
	}

	now := l.clock.Now()
	waits := l.waits
	l.waits = nil
	pending := waits[:0:0]
	for _, t := range waits {
		if t.stopped {
			continue
		}
		ok, fire := t.due(now)
		if !fire {
			pending = append(pending, t)
			continue
		}
		t.stopped = true
		l.safely("wait callback", func() { t.onDone(ok) })
	}
	// Waits scheduled by callbacks above were appended to l.waits.
	l.waits = append(pending, l.waits...)

	for _, u := range l.updaters {
		l.safely("update", u.Update)
	}
}

// Run drives Frame at the given interval until ctx is done.
func (l *Loop) Run(ctx context.Context, frameInterval time.Duration) error {
	ticker := l.clock.Ticker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			glog.Infof("Host loop stopped after %d frames", l.frame)
			return ctx.Err()
		case <-ticker.C:
			l.Frame()
		}
	}
}

func (l *Loop) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("Host loop recovered from panic in %s on frame %d: %v", what, l.frame, r)
		}
	}()
	fn()
}
