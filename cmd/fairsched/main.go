package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fairsched/internal/log"
	"fairsched/internal/metrics"
	"fairsched/internal/sched"
)

var (
	configPath  string
	nrCPUs      uint
	nrTasks     uint
	duration    time.Duration
	metricsAddr string
	logLevel    string
	jsonLogs    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fairsched",
		Short: "Fair CPU scheduler simulation",
		Long:  "Drives a set of weighted tasks over simulated CPUs and prints the resulting scheduling statistics.",
		RunE:  run,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config (optional)")
	rootCmd.Flags().UintVar(&nrCPUs, "cpus", 0, "number of CPUs (overrides config)")
	rootCmd.Flags().UintVar(&nrTasks, "tasks", 8, "number of tasks to spawn")
	rootCmd.Flags().DurationVar(&duration, "duration", 2*time.Second, "how long to drive ticks")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&jsonLogs, "json", false, "JSON log output")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: jsonLogs})
	logger := log.WithComponent("demo").With().
		Str("run_id", uuid.New().String()).Logger()

	cfg := sched.Load(configPath)
	if nrCPUs > 0 {
		cfg.NrCPUs = nrCPUs
	}

	if metricsAddr != "" {
		metrics.Register()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		logger.Info().Str("addr", metricsAddr).Msg("serving metrics")
	}

	mgr, err := sched.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	// Consume the status stream; migrations and switches show up at debug.
	go func() {
		for ev := range mgr.Events() {
			logger.Debug().
				Str("event", ev.Kind.String()).
				Int("cpu", ev.CPU).
				Uint64("task_id", uint64(ev.TaskID)).
				Uint64("vruntime", ev.Vruntime).
				Msg("scheduler event")
		}
	}()

	// Spread tasks round-robin with a mix of nice levels so the fairness
	// and balancing behavior is visible in the stats.
	for i := uint(0); i < nrTasks; i++ {
		nice := int(i%8)*5 - 15
		t := mgr.NewTask(sched.TaskID(i+1), fmt.Sprintf("task-%d", i+1), nice)
		cpu := int(i) % mgr.NrCPUs()
		if err := mgr.Enqueue(cpu, t); err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}
	}

	tickInterval := time.Duration(cfg.TickMS) * time.Millisecond
	clock := sched.NewTickClock(256)
	clock.Start(tickInterval)

	logger.Info().
		Uint("cpus", cfg.NrCPUs).
		Uint("tasks", nrTasks).
		Dur("duration", duration).
		Msg("driving ticks")

	deadline := time.After(duration)
	var now uint64
loop:
	for {
		select {
		case _, ok := <-clock.Ch:
			if !ok {
				break loop
			}
			now += uint64(tickInterval)
			for cpu := 0; cpu < mgr.NrCPUs(); cpu++ {
				mgr.Schedule(cpu, now)
			}
		case <-deadline:
			break loop
		}
	}

	clock.Stop()
	mgr.Shutdown()

	stats := mgr.Stats()
	logger.Info().
		Uint64("context_switches", stats.ContextSwitches).
		Uint64("migrations", stats.Migrations).
		Uint64("load_balance_calls", stats.LoadBalanceCalls).
		Uint64("tasks_created", stats.TasksCreated).
		Uint64("tasks_destroyed", stats.TasksDestroyed).
		Int64("ticks", clock.Count()).
		Msg("run complete")
	return nil
}
