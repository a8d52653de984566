package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/capmesh/broker"
	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/cost"
	"github.com/hupe1980/capmesh/metrics"
	"github.com/hupe1980/capmesh/providers/mock"
	"github.com/hupe1980/capmesh/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const financeClassification = `{"category": "finance", "confidence": 0.9, "complexity": "complex", "urgency": "medium", "requires_tools": false, "estimated_tokens": 2000}`

const cautionVerdict = `{"flags": ["financial_advice"], "recommendation": "caution", "reason": "portfolio guidance"}`

// routingHandle answers classification and council calls differently, the
// way a real completion provider would see two distinct system prompts.
func routingHandle(classification, verdict string) *mock.Handle {
	return mock.NewHandle().WithCallFunc(func(_ context.Context, _ core.Operation, params map[string]any) (any, error) {
		system, _ := params["system"].(string)
		if strings.Contains(system, "risk reviewer") {
			return core.CompletionResult{Text: verdict}, nil
		}
		return core.CompletionResult{Text: classification}, nil
	})
}

func newTestEngine(t *testing.T, h *mock.Handle, optFns ...func(o *Options)) (*Engine, *metrics.InMemory) {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.Register(core.Provider{ID: "model", Kind: core.CapabilityCompletion, Handle: h}))
	require.NoError(t, reg.RegisterChain("completion", "model"))

	rec := metrics.NewInMemory()
	opts := append([]func(o *Options){func(o *Options) { o.Recorder = rec }}, optFns...)
	return New(broker.New(reg), opts...), rec
}

func TestRouteEndToEnd(t *testing.T) {
	e, rec := newTestEngine(t, routingHandle(financeClassification, cautionVerdict))

	decision := e.Route(context.Background(), "What's the weather effect on my portfolio?", RouteContext{
		ConversationID: "conv-1",
	})

	assert.False(t, decision.Rejected)
	assert.NotEmpty(t, decision.ID)
	assert.Equal(t, core.CategoryFinance, decision.Intent.Category)
	assert.Equal(t, core.SpecialistFinance, decision.Specialist)
	assert.Equal(t, core.TierInteractive, decision.Tier.Name)

	require.NotNil(t, decision.Council)
	assert.Equal(t, core.RecommendCaution, decision.Council.Recommendation)
	assert.Contains(t, decision.Council.Flags, "financial_advice")

	decisions := rec.Decisions()
	require.Len(t, decisions, 1)
	assert.Equal(t, decision.ID, decisions[0].ID)
}

func TestRouteBudgetRejected(t *testing.T) {
	sentinel := cost.New(func(o *cost.Options) {
		o.DailyBudget = 0.000001
	})
	e, rec := newTestEngine(t, routingHandle(financeClassification, cautionVerdict), func(o *Options) {
		o.Sentinel = sentinel
	})

	decision := e.Route(context.Background(), "Rebalance my entire retirement account today.", RouteContext{})

	assert.True(t, decision.Rejected)
	assert.NotEmpty(t, decision.ID)
	assert.Contains(t, decision.Reason, "budget")
	assert.Nil(t, decision.Council)
	assert.Empty(t, decision.Specialist)

	decisions := rec.Decisions()
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].Rejected)
}

func TestRouteClassificationFailureDefaults(t *testing.T) {
	h := mock.NewHandle().FailAlways(errors.New("model offline"))
	e, _ := newTestEngine(t, h)

	decision := e.Route(context.Background(), "hello there", RouteContext{})

	assert.False(t, decision.Rejected)
	assert.Equal(t, core.CategoryGeneral, decision.Intent.Category)
	assert.Equal(t, core.SpecialistGeneral, decision.Specialist)
	assert.Equal(t, core.TierInteractive, decision.Tier.Name)
	assert.Nil(t, decision.Council)
}

func TestRouteVoiceGetsRealtime(t *testing.T) {
	e, _ := newTestEngine(t, routingHandle(financeClassification, cautionVerdict))

	decision := e.Route(context.Background(), "How are the markets doing?", RouteContext{IsVoice: true})

	assert.Equal(t, core.TierRealtime, decision.Tier.Name)
}

func TestRouteUrgencyHintOverride(t *testing.T) {
	e, _ := newTestEngine(t, routingHandle(financeClassification, cautionVerdict))

	decision := e.Route(context.Background(), "Check my account balance.", RouteContext{
		UrgencyHint: core.UrgencyHigh,
	})

	assert.Equal(t, core.UrgencyHigh, decision.Intent.Urgency)
	assert.Equal(t, core.TierInteractive, decision.Tier.Name)
}

func TestRoutePreferredSpecialist(t *testing.T) {
	e, _ := newTestEngine(t, routingHandle(financeClassification, cautionVerdict))

	decision := e.Route(context.Background(), "Audit this login flow.", RouteContext{
		PreferredSpecialist: core.SpecialistSecurity,
	})

	assert.Equal(t, core.SpecialistSecurity, decision.Specialist)
	// Security-bound requests are always reviewed.
	require.NotNil(t, decision.Council)
}

func TestRouteRemembersConversationTurns(t *testing.T) {
	e, _ := newTestEngine(t, routingHandle(financeClassification, cautionVerdict))
	ctx := context.Background()

	first := e.Route(ctx, "I hold mostly index funds.", RouteContext{ConversationID: "conv-7"})
	assert.False(t, first.Intent.HasContext)
	assert.Empty(t, first.Memory.ShortTerm)

	second := e.Route(ctx, "Should I add bonds?", RouteContext{ConversationID: "conv-7", IsFollowUp: true})
	assert.True(t, second.Intent.HasContext)
	assert.True(t, second.Intent.IsFollowUp)
	require.Len(t, second.Memory.ShortTerm, 1)
	assert.Equal(t, "I hold mostly index funds.", second.Memory.ShortTerm[0].Content)
}

func TestReportOutcome(t *testing.T) {
	e, rec := newTestEngine(t, routingHandle(financeClassification, cautionVerdict))

	decision := e.Route(context.Background(), "Summarize today's market movement.", RouteContext{})
	require.NoError(t, e.ReportOutcome(decision.ID, true, 0.031, 420*time.Millisecond))

	outcomes := rec.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, decision.ID, outcomes[0].DecisionID)
	assert.True(t, outcomes[0].Success)
	assert.InDelta(t, 0.031, outcomes[0].ActualCost, 1e-9)
	assert.Equal(t, 420*time.Millisecond, outcomes[0].ActualLatency)
	assert.False(t, outcomes[0].ReportedAt.IsZero())
}
