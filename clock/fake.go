package clock

import (
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Time only moves when Advance is
// called. It is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
	nextSeq uint64
}

type fakeWaiter struct {
	deadline time.Time
	seq      uint64 // tie-break so equal deadlines fire in registration order
	callback func()
	stopped  bool
	fired    bool
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to run when the clock is advanced past now+d.
// A non-positive d makes f due immediately; it runs on the next Advance,
// including Advance(0), never inside AfterFunc.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d < 0 {
		d = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSeq++
	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		seq:      c.nextSeq,
		callback: f,
	}
	c.waiters = append(c.waiters, waiter)

	return &Timer{
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if waiter.stopped || waiter.fired {
				return false
			}
			waiter.stopped = true
			return true
		},
	}
}

// Advance moves the clock forward by d. Pending callbacks fire one at a
// time in deadline order, with Now() set to each callback's deadline while
// it runs. Callbacks may schedule new timers; those fire in the same
// Advance if they fall due before the target time. Callbacks must not call
// Advance.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		waiter := c.popNext(target)
		if waiter == nil {
			break
		}
		waiter.callback()
	}

	c.mu.Lock()
	if c.current.Before(target) {
		c.current = target
	}
	c.mu.Unlock()
}

// popNext removes and returns the earliest due waiter, moving the clock to
// its deadline. Returns nil when nothing is due by target.
func (c *FakeClock) popNext(target time.Time) *fakeWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := -1
	remaining := c.waiters[:0]
	for _, waiter := range c.waiters {
		if !waiter.stopped {
			remaining = append(remaining, waiter)
		}
	}
	c.waiters = remaining

	for i, waiter := range c.waiters {
		if waiter.deadline.After(target) {
			continue
		}
		if index == -1 || earlier(waiter, c.waiters[index]) {
			index = i
		}
	}
	if index == -1 {
		return nil
	}

	waiter := c.waiters[index]
	c.waiters = append(c.waiters[:index], c.waiters[index+1:]...)
	waiter.fired = true
	if waiter.deadline.After(c.current) {
		c.current = waiter.deadline
	}
	return waiter
}

func earlier(a, b *fakeWaiter) bool {
	if a.deadline.Equal(b.deadline) {
		return a.seq < b.seq
	}
	return a.deadline.Before(b.deadline)
}

// PendingCount returns the number of scheduled, not yet fired or stopped,
// callbacks.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, waiter := range c.waiters {
		if !waiter.stopped {
			count++
		}
	}
	return count
}
