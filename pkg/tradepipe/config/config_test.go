package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/tradepipe/pkg/tradepipe/config"
)

func TestAccessors(t *testing.T) {
	cfg := config.New(map[string]any{
		"symbol":        "BTC-USD",
		"capacity":      256,
		"fraction":      0.02,
		"paper":         true,
		"drain_timeout": "5s",
		"symbols":       []any{"BTC-USD", "ETH-USD"},
	})

	assert.Equal(t, "BTC-USD", cfg.String("symbol", ""))
	assert.Equal(t, "fallback", cfg.String("missing", "fallback"))

	assert.Equal(t, 256, cfg.Int("capacity", 0))
	assert.Equal(t, 99, cfg.Int("missing", 99))

	assert.InDelta(t, 0.02, cfg.Float("fraction", 0), 1e-9)
	assert.True(t, cfg.Bool("paper", false))

	assert.Equal(t, 5*time.Second, cfg.Duration("drain_timeout", 0))
	assert.Equal(t, time.Minute, cfg.Duration("missing", time.Minute))

	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.StringSlice("symbols", nil))

	assert.True(t, cfg.Has("symbol"))
	assert.False(t, cfg.Has("missing"))
}

func TestSub(t *testing.T) {
	cfg := config.New(map[string]any{
		"queues": map[string]any{
			"data": map[string]any{
				"capacity": 128,
				"policy":   "drop",
			},
		},
	})

	data := cfg.Sub("queues").Sub("data")
	assert.Equal(t, 128, data.Int("capacity", 0))
	assert.Equal(t, "drop", data.String("policy", ""))

	// Missing sections yield empty configs, not nil panics.
	missing := cfg.Sub("nope").Sub("deeper")
	assert.Equal(t, 7, missing.Int("anything", 7))
	assert.False(t, missing.Has("anything"))
}

func TestFromYAML(t *testing.T) {
	raw := []byte(`
drain_timeout: 2s
queues:
  data:
    capacity: 64
    policy: drop
    enqueue_timeout: 50ms
  order:
    capacity: 8
    policy: block
`)
	cfg, err := config.FromYAML(raw)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Duration("drain_timeout", 0))

	data := cfg.Sub("queues").Sub("data")
	assert.Equal(t, 64, data.Int("capacity", 0))
	assert.Equal(t, 50*time.Millisecond, data.Duration("enqueue_timeout", 0))
	assert.Equal(t, "block", cfg.Sub("queues").Sub("order").String("policy", ""))
}

func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"symbol": "ETH-USD", "capacity": 32}`))
	require.NoError(t, err)

	assert.Equal(t, "ETH-USD", cfg.String("symbol", ""))
	assert.Equal(t, 32, cfg.Int("capacity", 0))
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("symbol: BTC-USD\n"), 0o644))

	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", cfg.String("symbol", ""))

	jsonPath := filepath.Join(dir, "pipeline.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"symbol": "SOL-USD"}`), 0o644))

	cfg, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "SOL-USD", cfg.String("symbol", ""))

	_, err = config.FromFile(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)

	badExt := filepath.Join(dir, "pipeline.toml")
	require.NoError(t, os.WriteFile(badExt, []byte(""), 0o644))
	_, err = config.FromFile(badExt)
	assert.Error(t, err)
}
