package sched

import (
	"sync/atomic"
	"time"
)

// SchedGranularity is the minimum scheduling quantum; the CPU logical
// clock advances by one granularity per tick.
const SchedGranularity = uint64(time.Millisecond)

// CPU models one logical processor: an id, one owned run queue, a
// monotonically advancing logical clock, and an online flag consulted by
// the load balancer.
type CPU struct {
	id     int
	rq     *RunQueue
	clock  uint64 // ns, mutated under rq.mu by schedule
	online atomic.Bool
}

func newCPU(id int) *CPU {
	c := &CPU{
		id: id,
		rq: newRunQueue(),
	}
	c.online.Store(true)
	return c
}

// ID returns the CPU's index within the manager.
func (c *CPU) ID() int { return c.id }

// Online reports whether the CPU participates in load balancing.
func (c *CPU) Online() bool { return c.online.Load() }

// SetOnline flips the online flag. An offline CPU keeps its queue and
// still accepts ticks, but rejects new enqueues and is skipped by the
// balancer.
func (c *CPU) SetOnline(v bool) { c.online.Store(v) }

// Clock returns the logical clock in nanoseconds.
func (c *CPU) Clock() uint64 {
	c.rq.mu.Lock()
	defer c.rq.mu.Unlock()
	return c.clock
}

// NrRunning returns the queued task count, excluding the running task.
func (c *CPU) NrRunning() int {
	c.rq.mu.Lock()
	defer c.rq.mu.Unlock()
	return c.rq.nrRunning
}

// tickResult is what one schedule tick decided.
type tickResult struct {
	next     *Task // nil when the CPU went idle
	switched bool  // current changed, including to or from idle
	dropped  *Task // previous current that left the CPU non-runnable
}

// schedule is the per-tick decision for this CPU. The external driver
// serializes ticks per CPU; the queue lock is still taken because the
// balancer may interleave.
func (c *CPU) schedule(now uint64) tickResult {
	rq := c.rq
	rq.mu.Lock()
	defer rq.mu.Unlock()

	prev := rq.current

	// Account the outgoing slice: real time into sum_exec_runtime,
	// weight-scaled time into vruntime.
	if prev != nil {
		var delta uint64
		if now > prev.ExecStart {
			delta = now - prev.ExecStart
		}
		prev.SumExecRuntime += delta
		prev.Vruntime += calcDeltaFair(delta, prev.Weight)
		prev.ExecStart = now
	}

	rq.updateMinVruntime()

	// A still-runnable current competes for the next slot like any other
	// task. Sleeping or stopped tasks simply drop off the CPU.
	var dropped *Task
	if prev != nil {
		rq.current = nil
		if prev.State == TaskRunnable {
			// The id cannot collide: prev was not in the tree while running.
			_ = rq.insert(prev)
		} else {
			dropped = prev
		}
	}

	next, ok := rq.extractMin()
	rq.current = next
	if ok {
		next.ExecStart = now
	}
	rq.updateMinVruntime()

	c.clock += SchedGranularity

	return tickResult{next: next, switched: next != prev, dropped: dropped}
}
