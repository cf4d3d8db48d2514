package executor_test

import (
	"sync"
	"time"
)

// fakeClock implements clock.Clock. In auto mode every TickAfter fires at once
// and advances simulated time, so backoff costs no wall time. In manual mode
// ticks fire only on Advance and each registration is announced on waits.
type fakeClock struct {
	mu        sync.Mutex
	now       time.Time
	auto      bool
	requested []time.Duration
	pending   []pendingTick
	waits     chan time.Duration
}

type pendingTick struct {
	at time.Time
	ch chan time.Time
}

func newAutoClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0), auto: true}
}

func newManualClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0), waits: make(chan time.Duration, 16)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) TickAfter(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requested = append(c.requested, d)
	ch := make(chan time.Time, 1)
	if c.auto {
		c.now = c.now.Add(d)
		ch <- c.now
		return ch
	}
	c.pending = append(c.pending, pendingTick{at: c.now.Add(d), ch: ch})
	c.waits <- d
	return ch
}

// Advance moves simulated time forward and fires every tick that is due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	remaining := c.pending[:0]
	for _, p := range c.pending {
		if !p.at.After(c.now) {
			p.ch <- c.now
			continue
		}
		remaining = append(remaining, p)
	}
	c.pending = remaining
}

func (c *fakeClock) Requested() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.requested...)
}

func (c *fakeClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(time.Unix(0, 0))
}
