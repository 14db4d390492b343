package sched

import (
	"time"

	"fairsched/internal/log"
	"fairsched/internal/metrics"
)

// balanceImbalanceMin is the hysteresis threshold: queue-length gaps of
// this size or smaller are left alone to avoid migration thrash.
const balanceImbalanceMin = 2

// balanceLoop is the background load-balancer. It wakes every interval,
// re-checks the running flag around each sleep, and exits when the
// manager's stop channel closes. Shutdown joins this goroutine before any
// run queue is drained.
func (m *Manager) balanceLoop(interval time.Duration) {
	defer m.wg.Done()

	logger := log.WithComponent("balancer")
	logger.Debug().Dur("interval", interval).Msg("load balancer started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !m.running.Load() {
				return
			}
			m.RunLoadBalance()
		case <-m.stopCh:
			logger.Debug().Msg("load balancer stopped")
			return
		}
	}
}

// RunLoadBalance performs one balancing pass. Normally invoked by the
// background loop; exposed so tests can drive passes deterministically.
//
// The pass snapshots queue lengths one lock at a time, picks the most and
// least loaded online CPUs, and migrates a single task between them if the
// gap exceeds the hysteresis threshold. One task per pass bounds the
// disruption of any single round.
func (m *Manager) RunLoadBalance() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.TrackStats {
		m.loadBalanceCalls.Add(1)
		metrics.LoadBalancePassesTotal.Inc()
	}

	// Snapshot nr_running per online CPU, never holding more than one
	// queue lock at a time.
	var (
		maxCPU, minCPU *CPU
		maxN, minN     int
	)
	for _, c := range m.cpus {
		if !c.Online() {
			continue
		}
		c.rq.mu.Lock()
		n := c.rq.nrRunning
		c.rq.mu.Unlock()

		if maxCPU == nil || n > maxN {
			maxCPU, maxN = c, n
		}
		if minCPU == nil || n < minN {
			minCPU, minN = c, n
		}
	}
	if maxCPU == nil || maxCPU == minCPU {
		return
	}
	if maxN-minN <= balanceImbalanceMin {
		return
	}

	// Both locks, lowest CPU id first. The snapshot above is advisory; the
	// source may have drained since, so re-check under the locks.
	lockPair(maxCPU, minCPU)
	t, ok := maxCPU.rq.extractMin()
	var migratedVr uint64
	if ok {
		// The migrated task lands at no less than the destination's min
		// vruntime, so it can neither front-run local work nor arrive
		// already starved behind it.
		if t.Vruntime < minCPU.rq.minVruntime {
			t.Vruntime = minCPU.rq.minVruntime
		}
		_ = minCPU.rq.insert(t)
		maxCPU.rq.updateMinVruntime()
		minCPU.rq.updateMinVruntime()
		migratedVr = t.Vruntime
	}
	srcDepth, dstDepth := maxCPU.rq.nrRunning, minCPU.rq.nrRunning
	unlockPair(maxCPU, minCPU)

	if !ok {
		return
	}

	if m.cfg.TrackStats {
		m.migrations.Add(1)
		metrics.MigrationsTotal.Inc()
	}
	m.observeDepth(maxCPU.id, srcDepth)
	m.observeDepth(minCPU.id, dstDepth)
	m.emit(Event{Time: time.Now(), Kind: EventMigrate, CPU: minCPU.id, SrcCPU: maxCPU.id,
		TaskID: t.ID, Vruntime: migratedVr})
	m.logger.Debug().
		Int("src_cpu", maxCPU.id).
		Int("dst_cpu", minCPU.id).
		Uint64("task_id", uint64(t.ID)).
		Msg("migrated task")
}
