package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/logging"
)

// entry pairs a provider with its health state. The entry-level mutex
// serializes health mutations per provider; entries for different providers
// are fully independent.
type entry struct {
	provider core.Provider

	mu     sync.Mutex
	health core.HealthState
}

// Options configures a Registry.
type Options struct {
	// FailureCeiling is the number of consecutive failures after which a
	// provider is considered ineligible for dispatch.
	FailureCeiling int
	// Logger receives registration and health transition events. Defaults
	// to NoOpLogger if nil.
	Logger logging.Logger
}

// Registry holds the configured providers and their fallback chains. It is
// safe for concurrent use; lookups take a read lock while health mutations
// go through per-provider locks.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	chains  map[string]core.FallbackChain

	ceiling int
	logger  logging.Logger
}

// New constructs an empty Registry. The default failure ceiling is 3.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{
		FailureCeiling: 3,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Registry{
		entries: make(map[string]*entry),
		chains:  make(map[string]core.FallbackChain),
		ceiling: opts.FailureCeiling,
		logger:  opts.Logger,
	}
}

// Register adds or replaces a provider entry. Re-registering the same
// identifier with a different capability kind fails with ErrDuplicateProvider;
// same-kind re-registration replaces the handle and resets health.
func (r *Registry) Register(p core.Provider) error {
	if p.ID == "" {
		return fmt.Errorf("provider id must not be empty")
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("provider %q: unknown capability kind %q", p.ID, p.Kind)
	}
	if p.Handle == nil {
		return fmt.Errorf("provider %q: nil handle", p.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[p.ID]; ok && existing.provider.Kind != p.Kind {
		return fmt.Errorf("%w: %q already registered as %q", core.ErrDuplicateProvider, p.ID, existing.provider.Kind)
	}
	r.entries[p.ID] = &entry{
		provider: p,
		health:   core.HealthState{Healthy: true},
	}
	r.logger.Info("provider registered", "provider", p.ID, "kind", string(p.Kind))
	return nil
}

// RegisterChain installs the static fallback chain for a service. Every
// provider in the chain must already be registered; order is preserved
// exactly as given.
func (r *Registry) RegisterChain(service string, providerIDs ...string) error {
	if service == "" {
		return fmt.Errorf("service name must not be empty")
	}
	if len(providerIDs) == 0 {
		return fmt.Errorf("service %q: empty fallback chain", service)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range providerIDs {
		if _, ok := r.entries[id]; !ok {
			return fmt.Errorf("%w: %q in chain for service %q", core.ErrUnknownProvider, id, service)
		}
	}
	r.chains[service] = core.FallbackChain{Service: service, Providers: append([]string(nil), providerIDs...)}
	return nil
}

// Chain returns the fallback chain for a service.
func (r *Registry) Chain(service string) (core.FallbackChain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain, ok := r.chains[service]
	if !ok {
		return core.FallbackChain{}, fmt.Errorf("%w: no fallback chain for service %q", core.ErrUnknownService, service)
	}
	return chain, nil
}

// Provider returns the registered provider for an identifier.
func (r *Registry) Provider(id string) (core.Provider, error) {
	e, err := r.lookup(id)
	if err != nil {
		return core.Provider{}, err
	}
	return e.provider, nil
}

// IDs returns the identifiers of all registered providers.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// IsEligible reports whether a provider may receive dispatches. False once
// the consecutive failure count exceeds the configured ceiling, and for
// unknown providers.
func (r *Registry) IsEligible(id string) bool {
	e, err := r.lookup(id)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health.ConsecutiveFailures <= r.ceiling
}

// RecordSuccess resets the failure counter and records latency after a
// successful call or probe.
func (r *Registry) RecordSuccess(id string, latency time.Duration) {
	e, err := r.lookup(id)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health.Healthy = true
	e.health.Latency = latency
	e.health.ConsecutiveFailures = 0
	e.health.LastChecked = time.Now()
	e.health.LastError = ""
}

// RecordFailure increments the consecutive failure counter after a failed
// call or probe. The increment is a read-modify-write under the entry lock.
func (r *Registry) RecordFailure(id string, callErr error) {
	e, err := r.lookup(id)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health.ConsecutiveFailures++
	e.health.Healthy = e.health.ConsecutiveFailures <= r.ceiling
	e.health.LastChecked = time.Now()
	if callErr != nil {
		e.health.LastError = callErr.Error()
	}
}

// Probe performs a lightweight capability-appropriate liveness call against
// one provider and records the outcome. Probe failures are recorded, never
// propagated past the monitor boundary; the returned error exists for direct
// callers that want to inspect it.
func (r *Registry) Probe(ctx context.Context, id string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	latency, probeErr := e.provider.Handle.Probe(ctx)
	if probeErr != nil {
		r.RecordFailure(id, probeErr)
		r.logger.Warn("health probe failed", "provider", id, "error", probeErr)
		return probeErr
	}
	r.RecordSuccess(id, latency)
	r.logger.Debug("health probe succeeded", "provider", id, "latency", latency)
	return nil
}

// Health returns a copy of one provider's health state.
func (r *Registry) Health(id string) (core.HealthState, error) {
	e, err := r.lookup(id)
	if err != nil {
		return core.HealthState{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health, nil
}

// Snapshot returns a copy of every provider's health state keyed by
// identifier, for observability endpoints.
func (r *Registry) Snapshot() map[string]core.HealthState {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	snap := make(map[string]core.HealthState, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		snap[e.provider.ID] = e.health
		e.mu.Unlock()
	}
	return snap
}

// FailureCeiling returns the configured consecutive failure ceiling.
func (r *Registry) FailureCeiling() int { return r.ceiling }

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownProvider, id)
	}
	return e, nil
}
