package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateProvider is returned when registering an identifier twice
	// with a conflicting capability kind.
	ErrDuplicateProvider = errors.New("duplicate provider registration")

	// ErrUnknownProvider is returned when an identifier has never been
	// registered.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnknownService is returned when no fallback chain exists for a
	// service name.
	ErrUnknownService = errors.New("unknown service")

	// ErrUnknownOperation is returned when an operation is outside the
	// provider kind's closed enumeration.
	ErrUnknownOperation = errors.New("operation not supported by capability kind")

	// ErrProviderUnhealthy is returned when the circuit breaker is open for
	// a provider; no network call is attempted.
	ErrProviderUnhealthy = errors.New("provider unhealthy")

	// ErrMaxRetriesExceeded is returned once the retry budget against a
	// single provider is exhausted. It wraps the last underlying error.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrAllProvidersFailed is returned when every provider in a fallback
	// chain failed. It aggregates the per-provider errors.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrBudgetExceeded is returned when admitting a request would push the
	// daily spend past the configured budget. Requests are rejected, not
	// queued or degraded.
	ErrBudgetExceeded = errors.New("daily budget exceeded")
)

// BudgetError carries the ledger figures alongside ErrBudgetExceeded so
// callers can render a specific, non-generic rejection.
type BudgetError struct {
	Spent    float64
	Estimate float64
	Budget   float64
}

// Error implements the error interface.
func (e *BudgetError) Error() string {
	return fmt.Sprintf("daily budget exceeded: spent %.4f + estimate %.4f > budget %.4f",
		e.Spent, e.Estimate, e.Budget)
}

// Unwrap links the typed error to the ErrBudgetExceeded sentinel.
func (e *BudgetError) Unwrap() error { return ErrBudgetExceeded }
