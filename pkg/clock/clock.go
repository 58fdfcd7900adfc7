// Package clock provides a free-running tick counter used for diagnostic
// logging. No core behavior depends on its value.
package clock

import (
	"sync/atomic"
	"time"
)

// DefaultInterval should stay below the node receive timeout so log lines
// carry a fresh tick.
const DefaultInterval = 500 * time.Millisecond

// Clock increments a monotonically non-decreasing tick at a fixed interval.
type Clock struct {
	tick     atomic.Int64
	interval time.Duration
	done     chan struct{}
	stopped  int32 // atomic flag
}

// New creates a stopped Clock ticking at interval.
func New(interval time.Duration) *Clock {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Clock{
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop.
func (c *Clock) Start() {
	go c.run()
}

func (c *Clock) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.tick.Add(1)
		case <-c.done:
			return
		}
	}
}

// Tick returns the current tick value.
func (c *Clock) Tick() int64 {
	return c.tick.Load()
}

// Stop halts the tick loop. Idempotent.
func (c *Clock) Stop() {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.done)
	}
}
