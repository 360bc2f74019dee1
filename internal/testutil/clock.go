// Package testutil provides deterministic helpers shared by tests.
package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe logical clock for tests. Each call
// to Now advances it by a fixed step, so recorded timestamps are
// reproducible across runs.
type DeterministicClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

// NewDeterministicClock creates a clock starting at epoch, advancing one
// second per Now call.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{
		t:    time.Unix(0, 0).UTC(),
		step: time.Second,
	}
}

// Now advances the clock and returns the new time.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

// Reset rewinds the clock to epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = time.Unix(0, 0).UTC()
}
