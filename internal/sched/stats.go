package sched

// Stats is an aggregate snapshot across all CPUs. Counters only advance
// when the manager was configured with track_stats.
type Stats struct {
	ContextSwitches  uint64
	Migrations       uint64
	LoadBalanceCalls uint64
	TasksCreated     uint64
	TasksDestroyed   uint64
}

// Stats returns a consistent-enough snapshot of the aggregate counters.
// Each counter is read atomically; the set is not mutually atomic, which
// is fine for monitoring.
func (m *Manager) Stats() Stats {
	return Stats{
		ContextSwitches:  m.contextSwitches.Load(),
		Migrations:       m.migrations.Load(),
		LoadBalanceCalls: m.loadBalanceCalls.Load(),
		TasksCreated:     m.tasksCreated.Load(),
		TasksDestroyed:   m.tasksDestroyed.Load(),
	}
}
