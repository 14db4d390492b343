// Package sched implements a fair CPU scheduler: per-CPU run queues
// ordered by virtual runtime in a red-black tree, weight-proportional time
// accounting driven by external ticks, and a periodic load balancer that
// equalizes queue lengths across CPUs.
package sched

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"fairsched/internal/log"
	"fairsched/internal/metrics"
)

// Manager owns the CPUs, the global configuration, the periodic load
// balancer and the aggregate statistics. The manager lock guards only
// structural operations and the balancing pass; all per-queue mutation
// happens under the individual run-queue locks.
type Manager struct {
	mu   sync.Mutex
	cfg  Config
	cpus []*CPU

	contextSwitches  atomic.Uint64
	migrations       atomic.Uint64
	loadBalanceCalls atomic.Uint64
	tasksCreated     atomic.Uint64
	tasksDestroyed   atomic.Uint64

	events  chan Event
	running atomic.Bool

	stopCh chan struct{}
	wg     sync.WaitGroup

	logger zerolog.Logger
}

// NewManager builds cfg.NrCPUs CPUs and, when enabled, starts the load
// balancer loop. Validation precedes any allocation, so a rejected config
// leaks nothing.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.NrCPUs == 0 {
		return nil, fmt.Errorf("nr_cpus must be at least 1")
	}
	if cfg.NrCPUs > MaxCPUs {
		return nil, fmt.Errorf("nr_cpus %d exceeds the maximum of %d", cfg.NrCPUs, MaxCPUs)
	}
	if cfg.BalanceIntervalMS == 0 {
		cfg.BalanceIntervalMS = defaultConfig().BalanceIntervalMS
	}

	m := &Manager{
		cfg:    cfg,
		cpus:   make([]*CPU, cfg.NrCPUs),
		events: make(chan Event, 256),
		stopCh: make(chan struct{}),
		logger: log.WithComponent("manager"),
	}
	for i := range m.cpus {
		m.cpus[i] = newCPU(i)
	}
	m.running.Store(true)

	if cfg.LoadBalance {
		m.wg.Add(1)
		go m.balanceLoop(time.Duration(cfg.BalanceIntervalMS) * time.Millisecond)
	}

	m.logger.Info().
		Uint("nr_cpus", cfg.NrCPUs).
		Bool("load_balance", cfg.LoadBalance).
		Msg("scheduler manager started")
	return m, nil
}

// NrCPUs returns the number of managed CPUs.
func (m *Manager) NrCPUs() int { return len(m.cpus) }

// CPU returns the CPU with the given id.
func (m *Manager) CPU(id int) (*CPU, error) {
	if id < 0 || id >= len(m.cpus) {
		return nil, fmt.Errorf("cpu %d: %w", id, ErrNoSuchCPU)
	}
	return m.cpus[id], nil
}

// Events exposes the status event stream. The channel is closed by
// Shutdown; delivery is best-effort (see emit).
func (m *Manager) Events() <-chan Event { return m.events }

// NewTask creates a runnable task and counts it in the creation stats.
func (m *Manager) NewTask(id TaskID, name string, nice int) *Task {
	t := NewTask(id, name, nice)
	if m.cfg.TrackStats {
		m.tasksCreated.Add(1)
		metrics.TasksCreatedTotal.Inc()
	}
	return t
}

// Enqueue makes the task runnable on the given CPU. The task's vruntime is
// raised to the queue's min vruntime so it cannot gain unfair priority over
// work already queued there.
func (m *Manager) Enqueue(cpuID int, t *Task) error {
	if !m.running.Load() {
		return ErrShutdown
	}
	c, err := m.CPU(cpuID)
	if err != nil {
		return err
	}
	if !c.Online() {
		return fmt.Errorf("enqueue task %d on cpu %d: %w", t.ID, cpuID, ErrCPUOffline)
	}

	c.rq.mu.Lock()
	if t.Vruntime < c.rq.minVruntime {
		t.Vruntime = c.rq.minVruntime
	}
	if err := c.rq.insert(t); err != nil {
		c.rq.mu.Unlock()
		return fmt.Errorf("enqueue task %d on cpu %d: %w", t.ID, cpuID, err)
	}
	t.State = TaskRunnable
	c.rq.updateMinVruntime()
	depth := c.rq.nrRunning
	vr := t.Vruntime // read under the lock; the balancer may clamp it later
	c.rq.mu.Unlock()

	m.observeDepth(cpuID, depth)
	m.emit(Event{Time: time.Now(), Kind: EventEnqueue, CPU: cpuID, SrcCPU: cpuID, TaskID: t.ID, Vruntime: vr})
	return nil
}

// Dequeue removes the task from the CPU, whether queued or currently
// running, and counts it destroyed.
func (m *Manager) Dequeue(cpuID int, id TaskID) error {
	c, err := m.CPU(cpuID)
	if err != nil {
		return err
	}

	c.rq.mu.Lock()
	t, rerr := c.rq.remove(id)
	if rerr != nil {
		if cur := c.rq.current; cur != nil && cur.ID == id {
			t, rerr = cur, nil
			c.rq.current = nil
		}
	}
	if rerr != nil {
		c.rq.mu.Unlock()
		return fmt.Errorf("dequeue task %d from cpu %d: %w", id, cpuID, rerr)
	}
	c.rq.updateMinVruntime()
	depth := c.rq.nrRunning
	vr := t.Vruntime
	c.rq.mu.Unlock()

	if m.cfg.TrackStats {
		m.tasksDestroyed.Add(1)
		metrics.TasksDestroyedTotal.Inc()
	}
	m.observeDepth(cpuID, depth)
	m.emit(Event{Time: time.Now(), Kind: EventDequeue, CPU: cpuID, SrcCPU: cpuID, TaskID: t.ID, Vruntime: vr})
	return nil
}

// Schedule runs one tick on the given CPU at logical time now (ns) and
// returns the id of the task that is current afterwards, or false when the
// CPU went idle. The driver must never call Schedule concurrently for the
// same CPU; interleaving with other CPUs and the balancer is fine.
func (m *Manager) Schedule(cpuID int, now uint64) (TaskID, bool) {
	c, err := m.CPU(cpuID)
	if err != nil || !m.running.Load() {
		return 0, false
	}

	res := c.schedule(now)

	if res.dropped != nil {
		if m.cfg.TrackStats {
			m.tasksDestroyed.Add(1)
			metrics.TasksDestroyedTotal.Inc()
		}
		m.emit(Event{Time: time.Now(), Kind: EventDrop, CPU: cpuID, SrcCPU: cpuID,
			TaskID: res.dropped.ID, Vruntime: res.dropped.Vruntime})
	}
	if res.switched {
		if m.cfg.TrackStats {
			m.contextSwitches.Add(1)
			metrics.ContextSwitchesTotal.Inc()
		}
		ev := Event{Time: time.Now(), Kind: EventIdle, CPU: cpuID, SrcCPU: cpuID}
		if res.next != nil {
			ev.Kind = EventSwitch
			ev.TaskID = res.next.ID
			ev.Vruntime = res.next.Vruntime
		}
		m.emit(ev)
	}

	if res.next == nil {
		return 0, false
	}
	return res.next.ID, true
}

// Shutdown stops the balancer, waits for it to exit, then drains every run
// queue and releases all tasks. The join-before-drain ordering matters: the
// balancer holds transient references into run queues. Safe to call more
// than once; ticks must stop before Shutdown.
func (m *Manager) Shutdown() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}

	close(m.stopCh)
	m.wg.Wait()

	m.mu.Lock()
	for _, c := range m.cpus {
		c.rq.mu.Lock()
		for {
			if _, ok := c.rq.extractMin(); !ok {
				break
			}
			m.releaseOnShutdown()
		}
		if c.rq.current != nil {
			c.rq.current = nil
			m.releaseOnShutdown()
		}
		c.rq.mu.Unlock()
		m.observeDepth(c.id, 0)
	}
	m.mu.Unlock()

	close(m.events)
	m.logger.Info().Msg("scheduler manager stopped")
}

func (m *Manager) releaseOnShutdown() {
	if m.cfg.TrackStats {
		m.tasksDestroyed.Add(1)
		metrics.TasksDestroyedTotal.Inc()
	}
}

func (m *Manager) observeDepth(cpuID, depth int) {
	if m.cfg.TrackStats {
		metrics.RunQueueDepth.WithLabelValues(strconv.Itoa(cpuID)).Set(float64(depth))
	}
}
