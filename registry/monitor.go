package registry

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/capmesh/logging"
)

// MonitorOptions configures the background health monitor.
type MonitorOptions struct {
	// Interval between probe rounds. Defaults to 30s.
	Interval time.Duration
	// StartupDelay before the first probe round. Defaults to 1s so process
	// startup is not serialized behind provider round-trips.
	StartupDelay time.Duration
	// MaxConcurrentProbes bounds probe fan-out per round. Defaults to 4.
	MaxConcurrentProbes int
	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

// Monitor periodically probes every registered provider on its own timer,
// independently of any in-flight request. A failing probe is logged and the
// loop continues on the next tick; the monitor never crashes the process.
type Monitor struct {
	registry *Registry
	interval time.Duration
	delay    time.Duration
	parallel int
	logger   logging.Logger
}

// NewMonitor constructs a Monitor over a registry.
func NewMonitor(reg *Registry, optFns ...func(o *MonitorOptions)) *Monitor {
	opts := MonitorOptions{
		Interval:            30 * time.Second,
		StartupDelay:        time.Second,
		MaxConcurrentProbes: 4,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Monitor{
		registry: reg,
		interval: opts.Interval,
		delay:    opts.StartupDelay,
		parallel: opts.MaxConcurrentProbes,
		logger:   opts.Logger,
	}
}

// Start launches the probe loop in a goroutine. One immediate round runs
// shortly after startup, then rounds repeat on the fixed interval until the
// context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go m.loop(ctx)
}

func (m *Monitor) loop(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.delay):
	}
	m.ProbeAll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeAll(ctx)
		}
	}
}

// ProbeAll runs one probe round across all registered providers with bounded
// concurrency. Individual probe failures are absorbed; the round always
// completes.
func (m *Monitor) ProbeAll(ctx context.Context) {
	ids := m.registry.IDs()
	if len(ids) == 0 {
		return
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallel)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			// Probe records its own outcome; errors stay inside the round.
			_ = m.registry.Probe(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
	m.logger.Debug("probe round completed", "providers", len(ids), "duration", time.Since(start))
}
