package permissions

import (
	"sort"
	"sync"
	"time"
)

// Clock supplies timers so tests can drive the approval timeout.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock uses the time package.
var RealClock Clock = realClock{}

// ManualClock is a Clock whose time only moves when Advance is called.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []manualWaiter
	armed   chan struct{}
}

type manualWaiter struct {
	at time.Time
	ch chan time.Time
}

// NewManualClock starts at an arbitrary fixed instant.
func NewManualClock() *ManualClock {
	return &ManualClock{
		now:   time.Unix(1_700_000_000, 0),
		armed: make(chan struct{}, 64),
	}
}

// After registers a timer that fires once Advance passes now+d.
func (c *ManualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	at := c.now.Add(d)
	if d <= 0 {
		ch <- at
		return ch
	}
	c.waiters = append(c.waiters, manualWaiter{at: at, ch: ch})
	sort.SliceStable(c.waiters, func(i, j int) bool { return c.waiters[i].at.Before(c.waiters[j].at) })
	select {
	case c.armed <- struct{}{}:
	default:
	}
	return ch
}

// Armed delivers one value per timer registered with After.
func (c *ManualClock) Armed() <-chan struct{} {
	return c.armed
}

// Advance moves time forward and fires every timer that is now due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	i := 0
	for ; i < len(c.waiters) && !c.waiters[i].at.After(c.now); i++ {
		c.waiters[i].ch <- c.now
	}
	c.waiters = c.waiters[i:]
}

// Pending reports how many timers have not fired yet.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
