// Package testutil provides deterministic substitutes for the clock
// and identifier generation the engine depends on. Fixing both makes
// test runs byte-identical, which golden snapshot comparison requires.
package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe test clock that advances by a
// fixed step on every read.
//
// Each Now() call returns a strictly later time, so rows written in
// sequence get distinct, ordered timestamps without sleeping. The same
// test run always produces the same timestamps.
type DeterministicClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewDeterministicClock creates a clock starting at a fixed reference
// instant, advancing one second per Now() call.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{
		now:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		step: time.Second,
	}
}

// Now returns the current instant and advances the clock by one step.
//
// Thread-safe: uses mutex to protect the position.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the next instant Now() would return, without advancing.
func (c *DeterministicClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d without consuming a step.
func (c *DeterministicClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
