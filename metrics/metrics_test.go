package metrics

import (
	"testing"
	"time"

	"github.com/hupe1980/capmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDecision(id string, rejected bool, created time.Time) core.RoutingDecision {
	return core.RoutingDecision{
		ID: id,
		Intent: core.Intent{
			Category:   core.CategoryFinance,
			Confidence: 0.9,
			Complexity: core.ComplexityComplex,
			Urgency:    core.UrgencyMedium,
		},
		Specialist: core.SpecialistFinance,
		Tier:       core.InteractiveTier,
		Rejected:   rejected,
		Reason:     "",
		CreatedAt:  created,
	}
}

func TestInMemorySummary(t *testing.T) {
	rec := NewInMemory()
	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	require.NoError(t, rec.RecordDecision(sampleDecision("d1", false, day)))
	require.NoError(t, rec.RecordDecision(sampleDecision("d2", true, day.Add(time.Hour))))
	require.NoError(t, rec.RecordDecision(sampleDecision("d3", false, day.Add(25*time.Hour))))

	require.NoError(t, rec.RecordOutcome(Outcome{DecisionID: "d1", Success: true, ActualCost: 0.04, ActualLatency: 800 * time.Millisecond, ReportedAt: day.Add(time.Minute)}))
	require.NoError(t, rec.RecordOutcome(Outcome{DecisionID: "d2", Success: false, ActualCost: 0.01, ReportedAt: day.Add(2 * time.Hour)}))

	summary, err := rec.Summary(day)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", summary.Day)
	assert.Equal(t, 2, summary.Decisions)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 2, summary.Outcomes)
	assert.Equal(t, 1, summary.Successes)
	assert.InDelta(t, 0.05, summary.TotalCost, 1e-9)
}

func TestInMemoryCopies(t *testing.T) {
	rec := NewInMemory()
	require.NoError(t, rec.RecordDecision(sampleDecision("d1", false, time.Now())))

	decisions := rec.Decisions()
	require.Len(t, decisions, 1)
	decisions[0].ID = "mutated"

	assert.Equal(t, "d1", rec.Decisions()[0].ID)
}

func TestSQLiteRoundTrip(t *testing.T) {
	rec, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer rec.Close()

	day := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	require.NoError(t, rec.RecordDecision(sampleDecision("d1", false, day)))
	require.NoError(t, rec.RecordDecision(sampleDecision("d2", true, day.Add(time.Hour))))
	require.NoError(t, rec.RecordOutcome(Outcome{DecisionID: "d1", Success: true, ActualCost: 0.02, ActualLatency: time.Second, ReportedAt: day.Add(time.Minute)}))

	summary, err := rec.Summary(day)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Decisions)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.Outcomes)
	assert.Equal(t, 1, summary.Successes)
	assert.InDelta(t, 0.02, summary.TotalCost, 1e-9)
}

func TestSQLiteDuplicateDecisionID(t *testing.T) {
	rec, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer rec.Close()

	d := sampleDecision("d1", false, time.Now().UTC())
	require.NoError(t, rec.RecordDecision(d))
	assert.Error(t, rec.RecordDecision(d))
}

func TestSQLiteCreatesFile(t *testing.T) {
	dir := t.TempDir()
	rec, err := OpenSQLite(dir)
	require.NoError(t, err)
	require.NoError(t, rec.RecordDecision(sampleDecision("d1", false, time.Now().UTC())))
	require.NoError(t, rec.Close())

	reopened, err := OpenSQLite(dir)
	require.NoError(t, err)
	defer reopened.Close()

	summary, err := reopened.Summary(time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Decisions)
}
