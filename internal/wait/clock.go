// Package wait provides the timed suspension points used by the run loop and the driver:
// a Clock that can be swapped for a virtual one in tests, the Timing policy, and
// retry delay strategies.
package wait

import (
	"context"
	"sync"
	"time"
)

// Clock suspends the caller. Implementations must return early with ctx.Err()
// when the context is cancelled.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on the wall clock.
type RealClock struct{}

// Sleep waits for d or until ctx is done.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// VirtualClock never blocks. It accumulates elapsed time and records every sleep,
// so tests can assert on scheduling without waiting.
type VirtualClock struct {
	mu      sync.Mutex
	elapsed time.Duration
	sleeps  []time.Duration

	// OnSleep, when set, runs after each sleep with the 1-based sleep count.
	// Tests use it to inject page changes or stop requests at a given suspension point.
	OnSleep func(n int, d time.Duration)
}

// NewVirtualClock creates an empty virtual clock.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// Sleep records d and advances the virtual time.
func (c *VirtualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.elapsed += d
	c.sleeps = append(c.sleeps, d)
	n := len(c.sleeps)
	hook := c.OnSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n, d)
	}
	return nil
}

// Elapsed returns the total virtual time slept.
func (c *VirtualClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Sleeps returns a copy of every recorded sleep duration.
func (c *VirtualClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// Count returns how many sleeps were recorded.
func (c *VirtualClock) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}
