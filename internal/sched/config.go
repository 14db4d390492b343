package sched

import (
	"os"

	yaml "github.com/goccy/go-yaml"
)

// MaxCPUs bounds NrCPUs at manager construction. Configs beyond it are
// rejected, not truncated.
const MaxCPUs = 512

// Config mirrors the scheduler section of config.yaml.
type Config struct {
	NrCPUs            uint `yaml:"nr_cpus"`             // 4 (by default)
	LoadBalance       bool `yaml:"load_balance"`        // true (by default)
	BalanceIntervalMS uint `yaml:"balance_interval_ms"` // 100 (by default)
	TrackStats        bool `yaml:"track_stats"`         // true (by default)
	TickMS            uint `yaml:"tick_ms"`             // 1 (by default)
}

func defaultConfig() Config {
	return Config{
		NrCPUs:            4,
		LoadBalance:       true,
		BalanceIntervalMS: 100,
		TrackStats:        true,
		TickMS:            1,
	}
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config { return defaultConfig() }

// Load reads YAML and overrides defaults; empty or unreadable path keeps
// defaults only. NrCPUs is validated against MaxCPUs later, in NewManager,
// so a bad value surfaces as an error instead of a silent clamp.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)

	// sanity clamps
	if cfg.NrCPUs == 0 {
		cfg.NrCPUs = 1
	}
	if cfg.BalanceIntervalMS == 0 {
		cfg.BalanceIntervalMS = 100
	}
	if cfg.TickMS == 0 {
		cfg.TickMS = 1
	}

	return cfg
}
