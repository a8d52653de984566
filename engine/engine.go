package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/capmesh/broker"
	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/cost"
	"github.com/hupe1980/capmesh/council"
	"github.com/hupe1980/capmesh/intent"
	"github.com/hupe1980/capmesh/logging"
	"github.com/hupe1980/capmesh/memory"
	"github.com/hupe1980/capmesh/metrics"
	"github.com/hupe1980/capmesh/qos"
)

// RouteContext carries the per-turn signals the caller knows and the
// pipeline cannot infer from the message text alone.
type RouteContext struct {
	// ConversationID scopes short-term memory. Empty means the turn is
	// stateless: no history is read and the message is not remembered.
	ConversationID string

	// IsVoice marks a voice chat turn.
	IsVoice bool

	// IsCall marks a telephony turn.
	IsCall bool

	// IsFollowUp marks the turn as a follow-up to a previous one.
	IsFollowUp bool

	// UrgencyHint, when set to a valid urgency, overrides the classified
	// urgency before tier selection. Zero value means no override.
	UrgencyHint core.Urgency

	// PreferredSpecialist, when set to a valid specialist, overrides the
	// category-derived specialist. Zero value means no override.
	PreferredSpecialist core.Specialist
}

// Options configures an Engine instance. Every component has a working
// default built over the broker passed to New, so a minimal setup needs no
// options at all.
type Options struct {
	// Classifier resolves messages to intents. Defaults to intent.New over
	// the engine's broker.
	Classifier *intent.Classifier

	// Selector maps intents to QoS tiers. Defaults to qos.NewSelector.
	Selector *qos.Selector

	// Assembler builds per-turn memory snapshots. Defaults to an assembler
	// over a fresh in-memory store.
	Assembler *memory.Assembler

	// Sentinel guards the daily budget. Defaults to cost.New.
	Sentinel *cost.Sentinel

	// Reviewer performs the secondary risk review. Defaults to council.New
	// over the engine's broker.
	Reviewer *council.Reviewer

	// Recorder receives decisions and outcomes. Defaults to an in-memory
	// recorder.
	Recorder metrics.Recorder

	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

// Engine is the routing orchestrator. It runs the fixed pipeline
//
//	classify -> tier -> memory -> cost check -> specialist -> council
//
// and returns one immutable RoutingDecision per request. The pipeline never
// fails: upstream degradation (classification, memory, council) falls back to
// documented defaults, and only a budget breach produces a rejected decision.
type Engine struct {
	classifier *intent.Classifier
	selector   *qos.Selector
	assembler  *memory.Assembler
	sentinel   *cost.Sentinel
	reviewer   *council.Reviewer
	recorder   metrics.Recorder
	logger     logging.Logger

	now func() time.Time
}

// New constructs an Engine over a broker. All components default to working
// in-memory implementations; production wiring overrides them via options.
func New(b *broker.Broker, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Classifier == nil {
		opts.Classifier = intent.New(b)
	}
	if opts.Selector == nil {
		opts.Selector = qos.NewSelector()
	}
	if opts.Assembler == nil {
		opts.Assembler = memory.NewAssembler(memory.NewStore(), b)
	}
	if opts.Sentinel == nil {
		opts.Sentinel = cost.New()
	}
	if opts.Reviewer == nil {
		opts.Reviewer = council.New(b)
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NewInMemory()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Engine{
		classifier: opts.Classifier,
		selector:   opts.Selector,
		assembler:  opts.Assembler,
		sentinel:   opts.Sentinel,
		reviewer:   opts.Reviewer,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// Route runs the full pipeline for one inbound message and returns the
// routing decision. Route itself never returns an error: a budget breach
// yields a decision with Rejected set and a human-readable Reason, and every
// other upstream failure degrades per that component's fallback policy.
func (e *Engine) Route(ctx context.Context, message string, rc RouteContext) core.RoutingDecision {
	start := e.now()
	decision := core.RoutingDecision{
		ID:        uuid.NewString(),
		CreatedAt: start,
	}

	hasHistory := false
	if rc.ConversationID != "" {
		hasHistory = len(e.assembler.Store().Recent(rc.ConversationID, 1)) > 0
	}

	classified := e.classifier.Classify(ctx, message, intent.Context{
		ConversationID: rc.ConversationID,
		HasHistory:     hasHistory,
		IsFollowUp:     rc.IsFollowUp,
	})
	if rc.UrgencyHint.Valid() {
		classified.Urgency = rc.UrgencyHint
	}
	decision.Intent = classified

	decision.Tier = e.selector.Select(classified, qos.CallContext{IsVoice: rc.IsVoice, IsCall: rc.IsCall})

	decision.Memory = e.assembler.Assemble(ctx, rc.ConversationID, message, classified)
	if rc.ConversationID != "" {
		e.assembler.Store().AddTurn(rc.ConversationID, message)
	}

	remaining, err := e.sentinel.Check(decision.Tier, message)
	if err != nil {
		decision.Rejected = true
		decision.Reason = fmt.Sprintf("daily budget exhausted: %v", err)
		decision.Elapsed = e.now().Sub(start)
		e.logger.Warn("request rejected",
			"decision_id", decision.ID,
			"conversation_id", rc.ConversationID,
			"reason", decision.Reason,
		)
		e.record(decision)
		return decision
	}

	decision.Specialist = core.SpecialistFor(classified.Category)
	if rc.PreferredSpecialist.Valid() {
		decision.Specialist = rc.PreferredSpecialist
	}

	if e.reviewer.ShouldReview(classified, decision.Specialist) {
		verdict := e.reviewer.Review(ctx, message, classified, decision.Specialist)
		decision.Council = &verdict
	}

	decision.Elapsed = e.now().Sub(start)
	e.logger.Info("request routed",
		"decision_id", decision.ID,
		"conversation_id", rc.ConversationID,
		"category", string(classified.Category),
		"specialist", string(decision.Specialist),
		"tier", string(decision.Tier.Name),
		"council", decision.Council != nil,
		"budget_remaining", remaining,
	)
	e.record(decision)
	return decision
}

// ReportOutcome feeds a completed request's ground truth back into the
// metrics store. Callers report once per decision after the specialist call
// finished (or failed).
func (e *Engine) ReportOutcome(decisionID string, success bool, actualCost float64, actualLatency time.Duration) error {
	return e.recorder.RecordOutcome(metrics.Outcome{
		DecisionID:    decisionID,
		Success:       success,
		ActualCost:    actualCost,
		ActualLatency: actualLatency,
		ReportedAt:    e.now(),
	})
}

// CostStatus returns the sentinel's current ledger snapshot.
func (e *Engine) CostStatus() core.CostStatus {
	return e.sentinel.Status()
}

// ResetCostLedger zeroes the daily cost counters.
func (e *Engine) ResetCostLedger() {
	e.sentinel.Reset()
}

// Memory exposes the underlying memory store for turn ingestion, pinning
// and sweeping.
func (e *Engine) Memory() *memory.Store {
	return e.assembler.Store()
}

// Recorder exposes the metrics recorder so callers can query summaries.
func (e *Engine) Recorder() metrics.Recorder {
	return e.recorder
}

func (e *Engine) record(decision core.RoutingDecision) {
	if err := e.recorder.RecordDecision(decision); err != nil {
		e.logger.Error("recording decision failed", "decision_id", decision.ID, "error", err)
	}
}
