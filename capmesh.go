// Package capmesh provides a high-level façade over the capability routing
// pipeline: a provider registry with health monitoring, a retrying broker
// with fallback chains, and the routing engine that turns inbound messages
// into routing decisions. Most applications interact with this package by:
//  1. Creating a CapMesh via New() (optionally loading a TOML config)
//  2. Registering capability providers and their fallback chains
//  3. Calling Route() per inbound message and ReportOutcome() afterwards
//
// The façade delegates orchestration to engine.Engine while keeping setup
// concise. All defaults are safe for local development and testing;
// production deployments typically supply SDK-backed providers, a durable
// metrics recorder and a structured logger.
package capmesh

import (
	"context"
	"time"

	"github.com/hupe1980/capmesh/broker"
	"github.com/hupe1980/capmesh/config"
	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/cost"
	"github.com/hupe1980/capmesh/council"
	"github.com/hupe1980/capmesh/engine"
	"github.com/hupe1980/capmesh/intent"
	"github.com/hupe1980/capmesh/logging"
	"github.com/hupe1980/capmesh/memory"
	"github.com/hupe1980/capmesh/metrics"
	"github.com/hupe1980/capmesh/qos"
	"github.com/hupe1980/capmesh/registry"
)

// Options configures the CapMesh instance.
type Options struct {
	// Config supplies wiring parameters. Defaults to config.Default().
	Config *config.Config

	// Recorder receives routing decisions and outcomes. When nil, the
	// config decides: a metrics data_dir yields a SQLite recorder there,
	// otherwise an in-memory one.
	Recorder metrics.Recorder

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// CapMesh is the high-level façade aggregating the registry, broker, health
// monitor and routing engine.
type CapMesh struct {
	registry *registry.Registry
	broker   *broker.Broker
	monitor  *registry.Monitor
	engine   *engine.Engine
	recorder metrics.Recorder
	logger   logging.Logger
}

// New creates a new CapMesh instance with optional overrides. Every
// component is wired from the supplied config (or the defaults).
func New(optFns ...func(o *Options)) *CapMesh {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	cfg := opts.Config
	if opts.Recorder == nil {
		opts.Recorder = newRecorder(cfg, opts.Logger)
	}

	reg := registry.New(func(o *registry.Options) {
		o.FailureCeiling = cfg.Health.FailureCeiling
		o.Logger = opts.Logger
	})

	b := broker.New(reg, func(o *broker.Options) {
		o.MaxRetries = cfg.Broker.MaxRetries
		o.BackoffUnit = cfg.BackoffUnit()
		o.Logger = opts.Logger
	})

	mon := registry.NewMonitor(reg, func(o *registry.MonitorOptions) {
		o.Interval = cfg.ProbeInterval()
		o.StartupDelay = time.Duration(cfg.Health.StartupDelayMs) * time.Millisecond
		o.MaxConcurrentProbes = cfg.Health.MaxConcurrentProbes
		o.Logger = opts.Logger
	})

	store := memory.NewStore(func(o *memory.StoreOptions) {
		o.Horizons = memory.Horizons{
			Short: time.Duration(cfg.Memory.ShortHorizonM) * time.Minute,
			Mid:   time.Duration(cfg.Memory.MidHorizonM) * time.Minute,
			Long:  time.Duration(cfg.Memory.LongHorizonM) * time.Minute,
		}
	})

	eng := engine.New(b, func(o *engine.Options) {
		o.Classifier = intent.New(b, func(o *intent.Options) {
			o.CacheTTL = cfg.IntentCacheTTL()
			o.MaxTokens = cfg.Intent.MaxTokens
			o.Logger = opts.Logger
		})
		o.Selector = qos.NewSelector(func(o *qos.Options) {
			o.Realtime = tierFromConfig(core.RealtimeTier, cfg.Tiers["realtime"])
			o.Interactive = tierFromConfig(core.InteractiveTier, cfg.Tiers["interactive"])
			o.Batch = tierFromConfig(core.BatchTier, cfg.Tiers["batch"])
		})
		o.Assembler = memory.NewAssembler(store, b, func(o *memory.AssemblerOptions) {
			o.Window = cfg.Memory.Window
			o.SearchLimit = cfg.Memory.SearchLimit
			o.Logger = opts.Logger
		})
		o.Sentinel = cost.New(func(o *cost.Options) {
			o.DailyBudget = cfg.Cost.DailyBudget
			o.UnitPrice = cfg.Cost.UnitPrice
			o.BaseTokens = cfg.Cost.BaseTokens
			o.Logger = opts.Logger
		})
		o.Reviewer = council.New(b, func(o *council.Options) {
			o.TimeBudget = cfg.CouncilBudget()
			o.FinanceTokenThreshold = cfg.Council.FinanceTokenFloor
			o.MaxTokens = cfg.Council.MaxTokens
			o.Logger = opts.Logger
		})
		o.Recorder = opts.Recorder
		o.Logger = opts.Logger
	})

	m := &CapMesh{
		registry: reg,
		broker:   b,
		monitor:  mon,
		engine:   eng,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
	m.applyLimits(cfg)
	return m
}

// newRecorder opens the SQLite recorder when the config names a data
// directory. An open failure falls back to the in-memory recorder so a bad
// metrics path never prevents routing; the error is logged.
func newRecorder(cfg *config.Config, logger logging.Logger) metrics.Recorder {
	if cfg.Metrics.DataDir == "" {
		return metrics.NewInMemory()
	}
	rec, err := metrics.OpenSQLite(cfg.Metrics.DataDir)
	if err != nil {
		logger.Error("opening metrics store failed, falling back to in-memory", "data_dir", cfg.Metrics.DataDir, "error", err)
		return metrics.NewInMemory()
	}
	return rec
}

func (m *CapMesh) applyLimits(cfg *config.Config) {
	for providerID, limit := range cfg.Limits {
		if limit.RPS > 0 {
			m.broker.SetRateLimit(providerID, limit.RPS, limit.Burst)
		}
	}
}

// RegisterProvider adds a capability provider to the registry.
func (m *CapMesh) RegisterProvider(p core.Provider) error {
	return m.registry.Register(p)
}

// RegisterChain installs the static fallback chain for a service. Provider
// identifiers must already be registered.
func (m *CapMesh) RegisterChain(service string, providerIDs ...string) error {
	return m.registry.RegisterChain(service, providerIDs...)
}

// ApplyChains installs every fallback chain named in the config. Call after
// registering the providers the chains refer to.
func (m *CapMesh) ApplyChains(cfg *config.Config) error {
	for service, ids := range cfg.Chains {
		if err := m.registry.RegisterChain(service, ids...); err != nil {
			return err
		}
	}
	return nil
}

// SetRateLimit installs a per-provider rate limit on the broker.
func (m *CapMesh) SetRateLimit(providerID string, rps float64, burst int) {
	m.broker.SetRateLimit(providerID, rps, burst)
}

// StartMonitor launches the background health probe loop. It stops when the
// context is cancelled.
func (m *CapMesh) StartMonitor(ctx context.Context) {
	m.monitor.Start(ctx)
}

// Route runs the routing pipeline for one inbound message.
func (m *CapMesh) Route(ctx context.Context, message string, rc engine.RouteContext) core.RoutingDecision {
	return m.engine.Route(ctx, message, rc)
}

// ReportOutcome feeds a completed request's ground truth back into the
// metrics recorder.
func (m *CapMesh) ReportOutcome(decisionID string, success bool, actualCost float64, actualLatency time.Duration) error {
	return m.engine.ReportOutcome(decisionID, success, actualCost, actualLatency)
}

// HealthSnapshot returns the current health state of every registered
// provider keyed by identifier.
func (m *CapMesh) HealthSnapshot() map[string]core.HealthState {
	return m.registry.Snapshot()
}

// CostStatus returns the current daily cost ledger snapshot.
func (m *CapMesh) CostStatus() core.CostStatus {
	return m.engine.CostStatus()
}

// ResetCostLedger zeroes the daily cost counters.
func (m *CapMesh) ResetCostLedger() {
	m.engine.ResetCostLedger()
}

// Memory exposes the underlying memory store for turn ingestion, pinning
// and sweeping.
func (m *CapMesh) Memory() *memory.Store {
	return m.engine.Memory()
}

// SweepMemory evicts decayed items from every memory tier and returns the
// eviction count.
func (m *CapMesh) SweepMemory() int {
	return m.engine.Memory().Sweep()
}

// Broker exposes the underlying broker for direct capability calls outside
// the routing pipeline.
func (m *CapMesh) Broker() *broker.Broker {
	return m.broker
}

// Close releases the metrics recorder's resources.
func (m *CapMesh) Close() error {
	return m.recorder.Close()
}

func tierFromConfig(base core.QoSTier, override config.TierConfig) core.QoSTier {
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.Temperature > 0 {
		base.Temperature = override.Temperature
	}
	if override.TimeoutMs > 0 {
		base.Timeout = time.Duration(override.TimeoutMs) * time.Millisecond
	}
	if override.CostMultiplier > 0 {
		base.CostMultiplier = override.CostMultiplier
	}
	return base
}
