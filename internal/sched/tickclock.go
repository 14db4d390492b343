package sched

import (
	"sync/atomic"
	"time"
)

// TickClock emits ticks at a fixed interval and counts them atomically.
// The core never self-ticks; this clock belongs to drivers that call
// Schedule on a cadence, like the demo binary.
type TickClock struct {
	Ch    chan struct{}
	count atomic.Int64
	stop  chan struct{}
}

// NewTickClock creates a clock; Start must be called before ticks flow.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch:   make(chan struct{}, buffer),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval. The count advances on
// every interval even when the consumer lags; the channel send is dropped
// instead of blocking the clock goroutine.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				select {
				case c.Ch <- struct{}{}:
				default:
				}
			case <-c.stop:
				close(c.Ch)
				return
			}
		}
	}()
}

// Stop signals the clock goroutine to exit and close the tick channel.
func (c *TickClock) Stop() {
	close(c.stop)
}

// Count returns the number of ticks emitted so far.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}
