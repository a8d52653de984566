package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/logging"
	"github.com/hupe1980/capmesh/registry"
)

// retryKey identifies the (provider, operation) pair a RetryState belongs to.
type retryKey struct {
	provider string
	op       core.Operation
}

// Options configures a Broker.
type Options struct {
	// MaxRetries is the default attempt budget per provider/operation pair.
	MaxRetries int
	// BackoffUnit is the base delay unit; attempt n waits 2^n units.
	BackoffUnit time.Duration
	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

// InvokeOptions overrides per-call broker behavior.
type InvokeOptions struct {
	// MaxRetries overrides the broker default when > 0.
	MaxRetries int
}

// Broker dispatches operations to providers through the registry's
// eligibility gate. Safe for concurrent use; retry counters are serialized
// per (provider, operation) key.
type Broker struct {
	registry *registry.Registry

	maxRetries  int
	backoffUnit time.Duration
	logger      logging.Logger

	retryMu sync.Mutex
	retries map[retryKey]int

	limiterMu sync.RWMutex
	limiters  map[string]*rate.Limiter
}

// New constructs a Broker over a registry. Defaults: 3 retries, 100ms
// backoff unit.
func New(reg *registry.Registry, optFns ...func(o *Options)) *Broker {
	opts := Options{
		MaxRetries:  3,
		BackoffUnit: 100 * time.Millisecond,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Broker{
		registry:    reg,
		maxRetries:  opts.MaxRetries,
		backoffUnit: opts.BackoffUnit,
		logger:      opts.Logger,
		retries:     make(map[retryKey]int),
		limiters:    make(map[string]*rate.Limiter),
	}
}

// SetRateLimit installs a per-provider request rate limit (requests per
// second with the given burst). Dispatches to that provider wait for a token
// before each attempt.
func (b *Broker) SetRateLimit(providerID string, rps float64, burst int) {
	b.limiterMu.Lock()
	defer b.limiterMu.Unlock()
	b.limiters[providerID] = rate.NewLimiter(rate.Limit(rps), burst)
}

func (b *Broker) limiter(providerID string) *rate.Limiter {
	b.limiterMu.RLock()
	defer b.limiterMu.RUnlock()
	return b.limiters[providerID]
}

// Attempts returns the current RetryState counter for a provider/operation
// pair. Zero after any success.
func (b *Broker) Attempts(providerID string, op core.Operation) int {
	b.retryMu.Lock()
	defer b.retryMu.Unlock()
	return b.retries[retryKey{provider: providerID, op: op}]
}

func (b *Broker) recordAttemptFailure(key retryKey) {
	b.retryMu.Lock()
	defer b.retryMu.Unlock()
	b.retries[key]++
}

func (b *Broker) resetAttempts(key retryKey) {
	b.retryMu.Lock()
	defer b.retryMu.Unlock()
	delete(b.retries, key)
}

// Invoke performs a single logical operation against one provider.
//
// Preconditions: the provider must be registered, the operation must belong
// to its capability kind's enumeration, and the provider must be eligible.
// An ineligible provider fails immediately with ErrProviderUnhealthy; no
// network call is attempted and no attempt counter is incremented.
//
// The underlying call is retried up to the configured attempt budget with
// exponential backoff (2^attempt backoff units) between attempts. Backoff
// waits abort when the caller's context is cancelled. Once the budget is
// exhausted the call fails with ErrMaxRetriesExceeded wrapping the last
// underlying error.
func (b *Broker) Invoke(ctx context.Context, providerID string, op core.Operation, params map[string]any, optFns ...func(o *InvokeOptions)) (any, error) {
	iopts := InvokeOptions{}
	for _, fn := range optFns {
		fn(&iopts)
	}
	maxRetries := b.maxRetries
	if iopts.MaxRetries > 0 {
		maxRetries = iopts.MaxRetries
	}

	p, err := b.registry.Provider(providerID)
	if err != nil {
		return nil, err
	}
	if !p.Kind.Supports(op) {
		return nil, fmt.Errorf("%w: %q on kind %q", core.ErrUnknownOperation, op, p.Kind)
	}
	if !b.registry.IsEligible(providerID) {
		return nil, fmt.Errorf("%w: %q circuit open", core.ErrProviderUnhealthy, providerID)
	}

	key := retryKey{provider: providerID, op: op}
	lim := b.limiter(providerID)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// Explicit suspension point: 2^attempt backoff units, abandoned
			// when the overall request is cancelled.
			delay := b.backoffUnit * (1 << attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		result, callErr := p.Handle.Call(ctx, op, params)
		latency := time.Since(start)

		if callErr == nil {
			b.resetAttempts(key)
			b.registry.RecordSuccess(providerID, latency)
			b.logger.Debug("provider call succeeded", "provider", providerID, "operation", string(op), "attempt", attempt+1, "latency", latency)
			return result, nil
		}

		lastErr = callErr
		b.recordAttemptFailure(key)
		b.registry.RecordFailure(providerID, callErr)
		b.logger.Warn("provider call failed", "provider", providerID, "operation", string(op), "attempt", attempt+1, "error", callErr)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: %q/%q after %d attempts: %w", core.ErrMaxRetriesExceeded, providerID, op, maxRetries, lastErr)
}

// InvokeWithFallback looks up the fallback chain for a service and tries
// Invoke against each provider identifier in order, returning the first
// success together with the identifier of the provider that served it. Order
// is fixed by configuration (primary first); there is no dynamic reordering
// by observed latency. If every provider in the chain fails the call fails
// with ErrAllProvidersFailed aggregating the per-provider errors.
func (b *Broker) InvokeWithFallback(ctx context.Context, service string, op core.Operation, params map[string]any, optFns ...func(o *InvokeOptions)) (any, string, error) {
	chain, err := b.registry.Chain(service)
	if err != nil {
		return nil, "", err
	}

	errs := make([]error, 0, len(chain.Providers))
	for _, providerID := range chain.Providers {
		result, invErr := b.Invoke(ctx, providerID, op, params, optFns...)
		if invErr == nil {
			return result, providerID, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", providerID, invErr))
		if ctx.Err() != nil {
			break
		}
	}

	return nil, "", fmt.Errorf("%w: service %q: %w", core.ErrAllProvidersFailed, service, errors.Join(errs...))
}
