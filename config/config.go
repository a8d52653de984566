// Package config loads capmesh wiring configuration from a TOML file.
// Loading is forgiving: a missing file yields the defaults, and any field
// absent from the file keeps its default value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full wiring configuration for a capmesh deployment.
type Config struct {
	Broker  BrokerConfig           `toml:"broker"`
	Health  HealthConfig           `toml:"health"`
	Intent  IntentConfig           `toml:"intent"`
	Cost    CostConfig             `toml:"cost"`
	Council CouncilConfig          `toml:"council"`
	Memory  MemoryConfig           `toml:"memory"`
	Metrics MetricsConfig          `toml:"metrics"`
	Tiers   map[string]TierConfig  `toml:"tiers"`
	Chains  map[string][]string    `toml:"chains"`
	Limits  map[string]LimitConfig `toml:"limits"`
}

// BrokerConfig tunes retry behavior.
type BrokerConfig struct {
	MaxRetries    int `toml:"max_retries"`
	BackoffUnitMs int `toml:"backoff_unit_ms"`
}

// HealthConfig tunes the background probe loop and the circuit breaker.
type HealthConfig struct {
	ProbeIntervalMs     int `toml:"probe_interval_ms"`
	StartupDelayMs      int `toml:"startup_delay_ms"`
	MaxConcurrentProbes int `toml:"max_concurrent_probes"`
	FailureCeiling      int `toml:"failure_ceiling"`
}

// IntentConfig tunes the classifier cache.
type IntentConfig struct {
	CacheTTLMs int `toml:"cache_ttl_ms"`
	MaxTokens  int `toml:"max_tokens"`
}

// CostConfig tunes the daily cost ledger.
type CostConfig struct {
	DailyBudget float64 `toml:"daily_budget"`
	UnitPrice   float64 `toml:"unit_price"`
	BaseTokens  int     `toml:"base_tokens"`
}

// CouncilConfig tunes the secondary review.
type CouncilConfig struct {
	TimeBudgetMs      int `toml:"time_budget_ms"`
	FinanceTokenFloor int `toml:"finance_token_floor"`
	MaxTokens         int `toml:"max_tokens"`
}

// MemoryConfig tunes the context window and the per-tier decay horizons.
type MemoryConfig struct {
	Window        int `toml:"window"`
	SearchLimit   int `toml:"search_limit"`
	ShortHorizonM int `toml:"short_horizon_minutes"`
	MidHorizonM   int `toml:"mid_horizon_minutes"`
	LongHorizonM  int `toml:"long_horizon_minutes"`
}

// MetricsConfig selects where decisions and outcomes are persisted. DataDir
// empty means in-memory only; a set DataDir makes the façade open a SQLite
// recorder there, falling back to in-memory (with an error log) if the open
// fails.
type MetricsConfig struct {
	DataDir string `toml:"data_dir"`
}

// TierConfig overrides one QoS tier's parameters.
type TierConfig struct {
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutMs      int     `toml:"timeout_ms"`
	CostMultiplier float64 `toml:"cost_multiplier"`
}

// LimitConfig sets a per-provider rate limit.
type LimitConfig struct {
	RPS   float64 `toml:"rps"`
	Burst int     `toml:"burst"`
}

// Default returns the configuration used when no file is present. The values
// match the per-package constructor defaults.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			MaxRetries:    3,
			BackoffUnitMs: 100,
		},
		Health: HealthConfig{
			ProbeIntervalMs:     30_000,
			StartupDelayMs:      1_000,
			MaxConcurrentProbes: 4,
			FailureCeiling:      3,
		},
		Intent: IntentConfig{
			CacheTTLMs: 300_000,
			MaxTokens:  200,
		},
		Cost: CostConfig{
			DailyBudget: 10.0,
			UnitPrice:   0.002,
			BaseTokens:  100,
		},
		Council: CouncilConfig{
			TimeBudgetMs:      120,
			FinanceTokenFloor: 1000,
			MaxTokens:         200,
		},
		Memory: MemoryConfig{
			Window:        10,
			SearchLimit:   5,
			ShortHorizonM: 2 * 60,
			MidHorizonM:   24 * 60,
			LongHorizonM:  30 * 24 * 60,
		},
		Chains: map[string][]string{},
		Tiers:  map[string]TierConfig{},
		Limits: map[string]LimitConfig{},
	}
}

// Load reads the configuration at path, layered over the defaults. A missing
// file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return toml.NewEncoder(file).Encode(c)
}

// ProbeInterval returns the probe interval as a duration.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.Health.ProbeIntervalMs) * time.Millisecond
}

// IntentCacheTTL returns the classifier cache TTL as a duration.
func (c *Config) IntentCacheTTL() time.Duration {
	return time.Duration(c.Intent.CacheTTLMs) * time.Millisecond
}

// CouncilBudget returns the council soft time budget as a duration.
func (c *Config) CouncilBudget() time.Duration {
	return time.Duration(c.Council.TimeBudgetMs) * time.Millisecond
}

// BackoffUnit returns the broker backoff unit as a duration.
func (c *Config) BackoffUnit() time.Duration {
	return time.Duration(c.Broker.BackoffUnitMs) * time.Millisecond
}
