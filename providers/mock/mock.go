// Package mock provides a scripted in-memory core.Handle useful for tests
// and examples. Responses are registered per operation; failures can be
// scripted to exercise retry, fallback and circuit-breaker paths
// deterministically.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/capmesh/core"
)

// Call records a single invocation received by the handle.
type Call struct {
	Op     core.Operation
	Params map[string]any
	At     time.Time
}

// Handle is a deterministic core.Handle. Safe for concurrent use.
type Handle struct {
	mu            sync.Mutex
	responses     map[core.Operation]any
	callFn        func(ctx context.Context, op core.Operation, params map[string]any) (any, error)
	failRemaining int
	failErr       error
	probeErr      error
	latency       time.Duration
	calls         []Call
	probes        int
}

// NewHandle constructs an empty scripted handle.
func NewHandle() *Handle {
	return &Handle{responses: make(map[core.Operation]any)}
}

// WithResponse registers a canned result for an operation (chainable).
func (h *Handle) WithResponse(op core.Operation, v any) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses[op] = v
	return h
}

// WithCompletion registers a canned completion text for OpComplete (chainable).
func (h *Handle) WithCompletion(text string) *Handle {
	return h.WithResponse(core.OpComplete, core.CompletionResult{Text: text, Model: "mock", TokensUsed: len(text) / 4})
}

// WithCallFunc installs a custom call function overriding canned responses (chainable).
func (h *Handle) WithCallFunc(fn func(ctx context.Context, op core.Operation, params map[string]any) (any, error)) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callFn = fn
	return h
}

// FailTimes scripts the next n calls to fail with err (chainable). Pass a
// negative n to fail every call.
func (h *Handle) FailTimes(n int, err error) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failRemaining = n
	h.failErr = err
	return h
}

// FailAlways scripts every call to fail with err (chainable).
func (h *Handle) FailAlways(err error) *Handle {
	return h.FailTimes(-1, err)
}

// WithProbeError scripts probes to fail (chainable).
func (h *Handle) WithProbeError(err error) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probeErr = err
	return h
}

// WithLatency adds an artificial delay to calls and probes (chainable).
func (h *Handle) WithLatency(d time.Duration) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latency = d
	return h
}

// Call implements core.Handle.
func (h *Handle) Call(ctx context.Context, op core.Operation, params map[string]any) (any, error) {
	h.mu.Lock()
	h.calls = append(h.calls, Call{Op: op, Params: params, At: time.Now()})
	delay := h.latency
	fn := h.callFn
	var scripted error
	if h.failRemaining != 0 && h.failErr != nil {
		scripted = h.failErr
		if h.failRemaining > 0 {
			h.failRemaining--
		}
	}
	resp, hasResp := h.responses[op]
	h.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if scripted != nil {
		return nil, scripted
	}
	if fn != nil {
		return fn(ctx, op, params)
	}
	if !hasResp {
		return nil, fmt.Errorf("no scripted response for operation %q", op)
	}
	return resp, nil
}

// Probe implements core.Handle.
func (h *Handle) Probe(ctx context.Context) (time.Duration, error) {
	h.mu.Lock()
	h.probes++
	delay := h.latency
	err := h.probeErr
	h.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return 0, err
	}
	if delay == 0 {
		delay = time.Millisecond
	}
	return delay, nil
}

// Calls returns a copy of the recorded calls.
func (h *Handle) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (h *Handle) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// ProbeCount returns the number of recorded probes.
func (h *Handle) ProbeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.probes
}

// Interface compliance (compile-time assertion)
var _ core.Handle = (*Handle)(nil)
