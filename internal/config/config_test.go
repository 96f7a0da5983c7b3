package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StateStorage.Type)
	assert.Equal(t, 4, cfg.Sync.Workers)
	assert.Equal(t, 5*time.Second, cfg.Channels.PushTimeout)
	assert.Equal(t, 60*time.Second, cfg.Channels.Breaker.OpenTimeout)
	assert.Equal(t, 30, cfg.Scheduler.IntervalMinutes)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.GetReadTimeout())
	assert.Len(t, cfg.Seed.SeedProducts(), 5)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
sync:
  workers: 8
scheduler:
  enabled: true
  interval_minutes: 5
channels:
  failure_rate: 0.25
  latency: 10ms
seed:
  products:
    - id: "42"
      sku: SKU-042
      name: Teh Celup
      internal: 12
      channels:
        shopee: 12
        website: 0
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Sync.Workers)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 5, cfg.Scheduler.IntervalMinutes)
	assert.InDelta(t, 0.25, cfg.Channels.FailureRate, 1e-9)
	assert.Equal(t, 10*time.Millisecond, cfg.Channels.Latency)

	seed := cfg.Seed.SeedProducts()
	require.Len(t, seed, 1)
	assert.Equal(t, "SKU-042", seed[0].SKU)
	assert.Equal(t, 12, seed[0].Channels["shopee"])
	assert.Equal(t, 0, seed[0].Channels["website"])
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("STOCKSYNC_SERVER_PORT", "9191")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown storage", "state_storage:\n  type: sqlite\n"},
		{"mysql without host", "state_storage:\n  type: mysql\n  database: stock\n"},
		{"failure rate above one", "channels:\n  failure_rate: 1.5\n"},
		{"zero workers", "sync:\n  workers: 0\n"},
		{"redis without url", "redis:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestSeedProductsWithoutDemo(t *testing.T) {
	assert.Empty(t, SeedConfig{}.SeedProducts())
}
