package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduling metrics
	ContextSwitchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fairsched_context_switches_total",
			Help: "Total number of context switches across all CPUs",
		},
	)

	TasksCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fairsched_tasks_created_total",
			Help: "Total number of tasks created",
		},
	)

	TasksDestroyedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fairsched_tasks_destroyed_total",
			Help: "Total number of tasks destroyed",
		},
	)

	RunQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fairsched_runqueue_depth",
			Help: "Runnable tasks queued per CPU, excluding the running task",
		},
		[]string{"cpu"},
	)

	// Load balancer metrics
	MigrationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fairsched_migrations_total",
			Help: "Total number of tasks migrated between CPUs",
		},
	)

	LoadBalancePassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fairsched_load_balance_passes_total",
			Help: "Total number of load balancer passes",
		},
	)
)

// Register registers all collectors with the default registry. Call once
// from the process entry point; the collectors work unregistered too, they
// are just not exported.
func Register() {
	prometheus.MustRegister(
		ContextSwitchesTotal,
		TasksCreatedTotal,
		TasksDestroyedTotal,
		RunQueueDepth,
		MigrationsTotal,
		LoadBalancePassesTotal,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
