package host

import "time"

// Timer is a handle to a pending wait scheduled on a Loop.
type Timer struct {
	deadline time.Time
	pred     func() bool
	onDone   func(ok bool)
	stopped  bool
}

// Stop cancels the wait. Its callback will not run. Stop is idempotent and
// must be called from the loop.
func (t *Timer) Stop() {
	if t != nil {
		t.stopped = true
	}
}

// Active reports whether the wait is still pending.
func (t *Timer) Active() bool {
	return t != nil && !t.stopped
}

// due reports whether the wait should complete at now and, if so, whether it succeeded.
func (t *Timer) due(now time.Time) (ok bool, fire bool) {
	if t.pred != nil {
		if t.pred() {
			return true, true
		}
		if !t.deadline.IsZero() && !now.Before(t.deadline) {
			return false, true
		}
		return false, false
	}
	return true, !now.Before(t.deadline)
}
