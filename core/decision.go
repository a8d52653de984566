package core

import "time"

// Recommendation is the council reviewer's advisory outcome.
type Recommendation string

const (
	RecommendProceed Recommendation = "proceed"
	RecommendCaution Recommendation = "caution"
	RecommendBlock   Recommendation = "block"
)

// CouncilVerdict is the bounded-time secondary review result. WithinBudget
// reports whether the review finished inside its soft time budget; the
// budget is measured, never used to abort the in-flight call.
type CouncilVerdict struct {
	Flags          []string       `json:"flags,omitempty"`
	Recommendation Recommendation `json:"recommendation"`
	Reason         string         `json:"reason"`
	Elapsed        time.Duration  `json:"elapsed"`
	WithinBudget   bool           `json:"within_budget"`
}

// RoutingDecision is the unit returned per request. Immutable once
// constructed; the caller uses it to invoke the selected specialist and to
// report outcomes back for metrics. A rejected decision always carries a
// human-readable reason alongside the correlation id.
type RoutingDecision struct {
	ID         string          `json:"id"`
	Intent     Intent          `json:"intent"`
	Specialist Specialist      `json:"specialist"`
	Tier       QoSTier         `json:"tier"`
	Memory     MemorySnapshot  `json:"memory"`
	Council    *CouncilVerdict `json:"council,omitempty"`
	Rejected   bool            `json:"rejected"`
	Reason     string          `json:"reason,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Elapsed    time.Duration   `json:"elapsed"`
}

// CostStatus is an observability snapshot of the daily cost ledger.
type CostStatus struct {
	SpentToday    float64   `json:"spent_today"`
	RequestsToday int       `json:"requests_today"`
	TokensToday   int       `json:"tokens_today"`
	DailyBudget   float64   `json:"daily_budget"`
	Remaining     float64   `json:"remaining"`
	LastReset     time.Time `json:"last_reset"`
}
