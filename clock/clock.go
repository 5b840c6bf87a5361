// Package clock provides the time source used by the session monitor and
// the query cache. Production code uses Real(); tests use Fake() and move
// time forward explicitly with Advance.
package clock

import "time"

// Clock is the subset of the time package the client needs: reading the
// current time and scheduling cancellable delayed tasks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f in its own goroutine (real) or synchronously
	// during Advance (fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a scheduled task returned by AfterFunc.
type Timer struct {
	stopFunc func() bool
}

// Stop cancels the task. It returns false if the task already ran or was
// already stopped. A nil Timer is safe to stop.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}
