// Package timeutil holds the time helpers shared by the scheduling core:
// a zone-correct clock, ISO date keys, calendar-day classification and
// duration formatting.
package timeutil

import (
	"sync"
	"time"
)

// Clock returns the current time. Every component reads "now" through a Clock
// so tests can pin it.
type Clock interface {
	Now() time.Time
}

// SystemClock reports wall-clock time in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// NewSystemClock returns a clock anchored to loc. A nil loc means time.Local.
func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.Local
	}
	return SystemClock{Location: loc}
}

// Now returns time.Now in the clock's location.
func (c SystemClock) Now() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return time.Now().In(loc)
}

// FakeClock is a manually driven Clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock frozen at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the frozen time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
