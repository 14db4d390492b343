package sched

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load("")
	assert.Equal(t, defaultConfig(), cfg)

	cfg = Load("does/not/exist.yaml")
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("nr_cpus: 8\nload_balance: false\nbalance_interval_ms: 250\ntrack_stats: false\ntick_ms: 5\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := Load(path)
	assert.Equal(t, uint(8), cfg.NrCPUs)
	assert.False(t, cfg.LoadBalance)
	assert.Equal(t, uint(250), cfg.BalanceIntervalMS)
	assert.False(t, cfg.TrackStats)
	assert.Equal(t, uint(5), cfg.TickMS)
}

func TestLoadClampsZeroes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("nr_cpus: 0\nbalance_interval_ms: 0\ntick_ms: 0\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := Load(path)
	assert.Equal(t, uint(1), cfg.NrCPUs)
	assert.Equal(t, uint(100), cfg.BalanceIntervalMS)
	assert.Equal(t, uint(1), cfg.TickMS)
}
