package core

import (
	"context"
	"time"
)

// Handle abstracts the concrete client used to perform calls against one
// external capability endpoint. Implementations adapt vendor SDKs (or in
// tests, scripted fakes) to a uniform call surface.
type Handle interface {
	// Call performs a single logical operation. Params are operation
	// specific; completion handles return a CompletionResult, search handles
	// a []SearchResult, other kinds define their own shapes.
	Call(ctx context.Context, op Operation, params map[string]any) (any, error)

	// Probe performs a lightweight, capability-appropriate liveness call and
	// returns the observed latency. A non-nil error marks the probe failed.
	Probe(ctx context.Context) (time.Duration, error)
}

// Provider is a named external capability endpoint: an identifier, its
// capability kind and the opaque handle used to perform calls. Health state
// is owned by the registry, not the provider itself.
type Provider struct {
	ID     string
	Kind   CapabilityKind
	Handle Handle
}

// HealthState is the live health snapshot of a provider. It is mutated only
// by the health monitor and by the broker after call outcomes.
type HealthState struct {
	Healthy             bool          `json:"healthy"`
	Latency             time.Duration `json:"latency"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastChecked         time.Time     `json:"last_checked"`
	LastError           string        `json:"last_error,omitempty"`
}

// FallbackChain is a static ordered sequence of provider identifiers serving
// the same logical service. Order is fixed by configuration (primary first);
// the broker never reorders it dynamically.
type FallbackChain struct {
	Service   string
	Providers []string
}

// CompletionResult is the normalized return value of completion handles.
type CompletionResult struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

// SearchResult is a single hit returned by vector-store or web-search
// handles.
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text extracts the textual payload from a handle call result. Completion
// handles return CompletionResult; scripted test handles may return plain
// strings. Anything else yields the empty string.
func Text(v any) string {
	switch t := v.(type) {
	case CompletionResult:
		return t.Text
	case *CompletionResult:
		if t != nil {
			return t.Text
		}
	case string:
		return t
	}
	return ""
}
