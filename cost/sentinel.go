// Package cost gates requests against a daily spending budget before they
// are allowed to proceed. Requests pushing spend past the budget are
// rejected outright, not queued or degraded.
package cost

import (
	"sync"
	"time"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/logging"
)

// Options configures a Sentinel.
type Options struct {
	// DailyBudget is the spend ceiling per day, in currency units.
	DailyBudget float64
	// UnitPrice is the base price per 1K estimated tokens before the tier
	// cost multiplier is applied.
	UnitPrice float64
	// BaseTokens is a floor added to every estimate to account for prompt
	// scaffolding around the raw message.
	BaseTokens int
	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

// Sentinel owns the process-wide daily cost ledger. All ledger mutations go
// through one mutex so concurrent reservations cannot oversubscribe the
// budget.
type Sentinel struct {
	mu       sync.Mutex
	spent    float64
	requests int
	tokens   int
	reset    time.Time

	budget     float64
	unitPrice  float64
	baseTokens int
	logger     logging.Logger
}

// New constructs a Sentinel. Defaults: budget 10.0, unit price 0.002 per 1K
// tokens, 100 base tokens.
func New(optFns ...func(o *Options)) *Sentinel {
	opts := Options{
		DailyBudget: 10.0,
		UnitPrice:   0.002,
		BaseTokens:  100,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Sentinel{
		reset:      time.Now(),
		budget:     opts.DailyBudget,
		unitPrice:  opts.UnitPrice,
		baseTokens: opts.BaseTokens,
		logger:     opts.Logger,
	}
}

// EstimateTokens derives a token estimate from message length: roughly one
// token per four characters plus the configured base floor.
func (s *Sentinel) EstimateTokens(message string) int {
	return len(message)/4 + s.baseTokens
}

// Estimate prices a request: token estimate times unit price times the
// tier's cost multiplier. Realtime costs more per unit (urgency premium),
// batch costs less.
func (s *Sentinel) Estimate(tier core.QoSTier, message string) float64 {
	tokens := s.EstimateTokens(message)
	return float64(tokens) / 1000.0 * s.unitPrice * tier.CostMultiplier
}

// Check admits or rejects a request against the daily budget. On admission
// the estimate is reserved atomically against the ledger and the remaining
// budget is returned. On rejection a BudgetError carries current spend,
// estimate and budget for observability.
func (s *Sentinel) Check(tier core.QoSTier, message string) (float64, error) {
	estimate := s.Estimate(tier, message)
	tokens := s.EstimateTokens(message)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spent+estimate > s.budget {
		s.logger.Warn("request rejected by budget gate", "spent", s.spent, "estimate", estimate, "budget", s.budget)
		return 0, &core.BudgetError{Spent: s.spent, Estimate: estimate, Budget: s.budget}
	}
	s.spent += estimate
	s.requests++
	s.tokens += tokens
	return s.budget - s.spent, nil
}

// Reset zeroes the daily counters. Invoked once per daily boundary by an
// external scheduler.
func (s *Sentinel) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spent = 0
	s.requests = 0
	s.tokens = 0
	s.reset = time.Now()
	s.logger.Info("daily cost ledger reset", "budget", s.budget)
}

// Status returns an observability snapshot of the ledger.
func (s *Sentinel) Status() core.CostStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CostStatus{
		SpentToday:    s.spent,
		RequestsToday: s.requests,
		TokensToday:   s.tokens,
		DailyBudget:   s.budget,
		Remaining:     s.budget - s.spent,
		LastReset:     s.reset,
	}
}
