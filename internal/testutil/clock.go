package testutil

import (
	"sync"
	"time"
)

// Clock is a manually advanced clock for deterministic tests.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock starts a clock at the given instant, converted to UTC.
func NewClock(start time.Time) *Clock {
	return &Clock{current: start.UTC()}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}
