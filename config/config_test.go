package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Broker.MaxRetries)
	assert.Equal(t, 10.0, cfg.Cost.DailyBudget)
	assert.Equal(t, 30*time.Second, cfg.ProbeInterval())
	assert.Equal(t, 5*time.Minute, cfg.IntentCacheTTL())
	assert.Equal(t, 120*time.Millisecond, cfg.CouncilBudget())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capmesh.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[broker]
max_retries = 5

[cost]
daily_budget = 25.0

[chains]
completion = ["openai-gpt4", "anthropic-claude"]

[tiers.realtime]
max_tokens = 128
temperature = 0.2
timeout_ms = 3000
cost_multiplier = 2.0

[limits.openai-gpt4]
rps = 10.0
burst = 20
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Broker.MaxRetries)
	// Untouched fields keep their defaults.
	assert.Equal(t, 100, cfg.Broker.BackoffUnitMs)
	assert.Equal(t, 25.0, cfg.Cost.DailyBudget)
	assert.Equal(t, []string{"openai-gpt4", "anthropic-claude"}, cfg.Chains["completion"])
	assert.Equal(t, 128, cfg.Tiers["realtime"].MaxTokens)
	assert.Equal(t, 10.0, cfg.Limits["openai-gpt4"].RPS)
	assert.Equal(t, 20, cfg.Limits["openai-gpt4"].Burst)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[broker\nmax_retries = oops"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "capmesh.toml")

	cfg := Default()
	cfg.Cost.DailyBudget = 42.0
	cfg.Chains["completion"] = []string{"primary", "backup"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42.0, loaded.Cost.DailyBudget)
	assert.Equal(t, []string{"primary", "backup"}, loaded.Chains["completion"])
}
