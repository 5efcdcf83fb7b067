package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock provides time information and scheduling.
// This interface allows time to be driven manually in tests.
type Clock interface {
	Now() time.Time

	// Every runs fn once per period until the returned stop function is called.
	Every(period time.Duration, fn func()) (stop func())

	// AfterFunc runs fn once after d unless the returned stop function is called first.
	AfterFunc(d time.Duration, fn func()) (stop func())
}

// RealClock provides actual system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Every starts a ticker goroutine that calls fn on each tick.
func (RealClock) Every(period time.Duration, fn func()) func() {
	ticker := time.NewTicker(period)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// AfterFunc wraps time.AfterFunc.
func (RealClock) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// ManualClock is a virtual clock whose scheduled callbacks only fire when
// Advance moves time past them. Callbacks run synchronously on the caller's
// goroutine, in due-time order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	entries map[int]*entry
}

type entry struct {
	id     int
	next   time.Time
	period time.Duration // zero for one-shot entries
	fn     func()
}

// NewManualClock creates a ManualClock set to the given time.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t, entries: make(map[int]*entry)}
}

// FixedClock returns a ManualClock set to 2024-01-15 10:30:00 UTC.
func FixedClock() *ManualClock {
	return NewManualClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

// Now returns the virtual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Every schedules fn at now+period, now+2*period, ...
func (c *ManualClock) Every(period time.Duration, fn func()) func() {
	if period <= 0 {
		panic("clock: non-positive period")
	}
	return c.schedule(period, period, fn)
}

// AfterFunc schedules fn once at now+d.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) func() {
	return c.schedule(d, 0, fn)
}

func (c *ManualClock) schedule(d, period time.Duration, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	id := c.seq
	c.entries[id] = &entry{id: id, next: c.now.Add(d), period: period, fn: fn}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.entries, id)
	}
}

// Set moves the clock to t without firing anything scheduled in between.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d, firing every callback that comes due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		due := c.nextDue(target)
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}

		c.now = due.next
		if due.period > 0 {
			due.next = due.next.Add(due.period)
		} else {
			delete(c.entries, due.id)
		}
		fn := due.fn
		c.mu.Unlock()

		fn()
	}
}

// Pending returns the number of scheduled callbacks.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// nextDue returns the earliest entry due at or before target (must be called with lock held).
func (c *ManualClock) nextDue(target time.Time) *entry {
	candidates := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		if !e.next.After(target) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].next.Equal(candidates[j].next) {
			return candidates[i].id < candidates[j].id
		}
		return candidates[i].next.Before(candidates[j].next)
	})
	return candidates[0]
}
