// Package metrics records routing decisions and their reported outcomes so
// operators can audit routing quality over time. Two recorders ship: an
// in-memory one for tests and short-lived processes, and a SQLite-backed one
// for durable history with daily rollups.
package metrics

import (
	"sync"
	"time"

	"github.com/hupe1980/capmesh/core"
)

// Outcome is the ground truth reported after a routed request completed.
type Outcome struct {
	DecisionID    string        `json:"decision_id"`
	Success       bool          `json:"success"`
	ActualCost    float64       `json:"actual_cost"`
	ActualLatency time.Duration `json:"actual_latency"`
	ReportedAt    time.Time     `json:"reported_at"`
}

// DailySummary aggregates one calendar day of routing activity.
type DailySummary struct {
	Day       string  `json:"day"`
	Decisions int     `json:"decisions"`
	Rejected  int     `json:"rejected"`
	Outcomes  int     `json:"outcomes"`
	Successes int     `json:"successes"`
	TotalCost float64 `json:"total_cost"`
}

// Recorder receives routing decisions and their eventual outcomes. Recording
// must never block the routing path for long; implementations are expected to
// be cheap or buffered.
type Recorder interface {
	RecordDecision(decision core.RoutingDecision) error
	RecordOutcome(outcome Outcome) error
	Summary(day time.Time) (DailySummary, error)
	Close() error
}

// InMemory is a Recorder that keeps everything in process memory. Safe for
// concurrent use.
type InMemory struct {
	mu        sync.RWMutex
	decisions []core.RoutingDecision
	outcomes  []Outcome
}

// NewInMemory returns an empty in-memory recorder.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// RecordDecision appends a decision to the in-memory log.
func (m *InMemory) RecordDecision(decision core.RoutingDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, decision)
	return nil
}

// RecordOutcome appends an outcome to the in-memory log.
func (m *InMemory) RecordOutcome(outcome Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if outcome.ReportedAt.IsZero() {
		outcome.ReportedAt = time.Now()
	}
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

// Summary rolls up the decisions and outcomes recorded for a calendar day.
func (m *InMemory) Summary(day time.Time) (DailySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := day.Format("2006-01-02")
	summary := DailySummary{Day: key}
	for _, d := range m.decisions {
		if d.CreatedAt.Format("2006-01-02") != key {
			continue
		}
		summary.Decisions++
		if d.Rejected {
			summary.Rejected++
		}
	}
	for _, o := range m.outcomes {
		if o.ReportedAt.Format("2006-01-02") != key {
			continue
		}
		summary.Outcomes++
		if o.Success {
			summary.Successes++
		}
		summary.TotalCost += o.ActualCost
	}
	return summary, nil
}

// Decisions returns a copy of all recorded decisions in insertion order.
func (m *InMemory) Decisions() []core.RoutingDecision {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RoutingDecision, len(m.decisions))
	copy(out, m.decisions)
	return out
}

// Outcomes returns a copy of all recorded outcomes in insertion order.
func (m *InMemory) Outcomes() []Outcome {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Outcome, len(m.outcomes))
	copy(out, m.outcomes)
	return out
}

// Close is a no-op for the in-memory recorder.
func (m *InMemory) Close() error { return nil }

var _ Recorder = (*InMemory)(nil)
