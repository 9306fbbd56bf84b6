package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source. Services take their now function as
// a dependency; tests hand them clock.Now and move time explicitly instead of
// sleeping.
type Clock struct {
	mu sync.Mutex
	at time.Time
}

// NewClock returns a clock standing at start. A zero start falls back to
// ReferenceTime so clock-driven timestamps line up with the other fixtures.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{at: start}
}

// Now returns the instant the clock currently stands at.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

// NowFunc adapts the clock to the now dependency the services expect. A nil
// clock degrades to the real time source.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to an absolute instant.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.at = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns where it landed.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
	return c.at
}
