// Package council runs a bounded-time secondary review for requests meeting
// risk criteria. The review is advisory: a soft time budget is measured and
// reported, never used to abort the in-flight call, and any failure defaults
// to a proceed verdict so the pipeline is never blocked.
package council

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/capmesh/broker"
	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/logging"
)

// Options configures a Reviewer.
type Options struct {
	// Service is the fallback-chain service name used for review calls.
	// Defaults to "completion".
	Service string
	// TimeBudget is the soft review budget. Defaults to 120ms.
	TimeBudget time.Duration
	// FinanceTokenThreshold triggers review for finance specialists once the
	// intent's token estimate exceeds it. Defaults to 1000.
	FinanceTokenThreshold int
	// MaxTokens bounds the review call. Defaults to 200.
	MaxTokens int
	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

// Reviewer performs the secondary check through the broker.
type Reviewer struct {
	broker *broker.Broker

	service    string
	budget     time.Duration
	financeTok int
	maxTokens  int
	logger     logging.Logger
}

// New constructs a Reviewer over a broker.
func New(b *broker.Broker, optFns ...func(o *Options)) *Reviewer {
	opts := Options{
		Service:               "completion",
		TimeBudget:            120 * time.Millisecond,
		FinanceTokenThreshold: 1000,
		MaxTokens:             200,
		Logger:                logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Reviewer{
		broker:     b,
		service:    opts.Service,
		budget:     opts.TimeBudget,
		financeTok: opts.FinanceTokenThreshold,
		maxTokens:  opts.MaxTokens,
		logger:     opts.Logger,
	}
}

// ShouldReview reports whether a request meets the risk criteria:
// high urgency combined with complex reasoning, a finance specialist above
// the token threshold, or a security specialist unconditionally.
func (r *Reviewer) ShouldReview(intent core.Intent, specialist core.Specialist) bool {
	if intent.Urgency == core.UrgencyHigh && intent.Complexity == core.ComplexityComplex {
		return true
	}
	if specialist == core.SpecialistFinance && intent.EstimatedTokens > r.financeTok {
		return true
	}
	return specialist == core.SpecialistSecurity
}

// Review performs a single review call with a single retry. The soft budget
// is tracked in the verdict's Elapsed/WithinBudget fields only. On any
// failure (error or unparsable output) the verdict defaults to proceed with
// reason "council_unavailable".
func (r *Reviewer) Review(ctx context.Context, message string, intent core.Intent, specialist core.Specialist) core.CouncilVerdict {
	start := time.Now()

	params := map[string]any{
		"system":      reviewSystemPrompt(),
		"prompt":      reviewPrompt(message, intent, specialist),
		"max_tokens":  r.maxTokens,
		"temperature": 0.0,
	}
	raw, providerID, err := r.broker.InvokeWithFallback(ctx, r.service, core.OpComplete, params,
		func(o *broker.InvokeOptions) { o.MaxRetries = 1 })

	elapsed := time.Since(start)
	if err != nil {
		r.logger.Warn("council review unavailable, defaulting to proceed", "error", err)
		return unavailableVerdict(elapsed, r.budget)
	}

	verdict, parseErr := parseVerdict(core.Text(raw))
	if parseErr != nil {
		r.logger.Warn("council verdict unparsable, defaulting to proceed", "provider", providerID, "error", parseErr)
		return unavailableVerdict(elapsed, r.budget)
	}
	verdict.Elapsed = elapsed
	verdict.WithinBudget = elapsed <= r.budget
	if !verdict.WithinBudget {
		r.logger.Warn("council review exceeded soft budget", "elapsed", elapsed, "budget", r.budget)
	}
	return verdict
}

func unavailableVerdict(elapsed, budget time.Duration) core.CouncilVerdict {
	return core.CouncilVerdict{
		Recommendation: core.RecommendProceed,
		Reason:         "council_unavailable",
		Elapsed:        elapsed,
		WithinBudget:   elapsed <= budget,
	}
}

func reviewSystemPrompt() string {
	return `You are a risk reviewer. Respond with a single JSON object and nothing else:
{"flags": [strings], "recommendation": "proceed"|"caution"|"block", "reason": string}`
}

func reviewPrompt(message string, intent core.Intent, specialist core.Specialist) string {
	return fmt.Sprintf("specialist: %s\ncategory: %s\nurgency: %s\ncomplexity: %s\nmessage: %s",
		specialist, intent.Category, intent.Urgency, intent.Complexity, message)
}

// parseVerdict leniently extracts a verdict from model output.
func parseVerdict(raw string) (core.CouncilVerdict, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return core.CouncilVerdict{}, fmt.Errorf("no JSON object in council output")
	}
	doc := raw[start : end+1]
	if !gjson.Valid(doc) {
		return core.CouncilVerdict{}, fmt.Errorf("invalid JSON in council output")
	}

	rec := core.Recommendation(gjson.Get(doc, "recommendation").String())
	switch rec {
	case core.RecommendProceed, core.RecommendCaution, core.RecommendBlock:
	default:
		return core.CouncilVerdict{}, fmt.Errorf("unknown recommendation %q", rec)
	}

	verdict := core.CouncilVerdict{
		Recommendation: rec,
		Reason:         gjson.Get(doc, "reason").String(),
	}
	for _, f := range gjson.Get(doc, "flags").Array() {
		if s := f.String(); s != "" {
			verdict.Flags = append(verdict.Flags, s)
		}
	}
	return verdict, nil
}
