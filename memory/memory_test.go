package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/capmesh/broker"
	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/providers/mock"
	"github.com/hupe1980/capmesh/registry"
)

func TestStore_RecentWindow(t *testing.T) {
	s := NewStore()
	for i := 0; i < 15; i++ {
		s.AddTurn("conv", fmt.Sprintf("turn %d", i))
	}

	recent := s.Recent("conv", 10)
	require.Len(t, recent, 10)
	assert.Equal(t, "turn 5", recent[0].Content, "oldest first within the window")
	assert.Equal(t, "turn 14", recent[9].Content)
	assert.Empty(t, s.Recent("other", 10))
}

func TestStore_SummaryPerCategory(t *testing.T) {
	s := NewStore()
	s.SetSummary(core.CategoryFinance, "user holds index funds")

	got, ok := s.Summary(core.CategoryFinance)
	require.True(t, ok)
	assert.Equal(t, "user holds index funds", got.Content)

	_, ok = s.Summary(core.CategoryFitness)
	assert.False(t, ok)
}

func TestStore_SweepEvictsByHorizon(t *testing.T) {
	s := NewStore(func(o *StoreOptions) {
		o.Horizons = Horizons{Short: time.Hour, Mid: 2 * time.Hour, Long: 3 * time.Hour}
	})

	current := time.Now()
	s.now = func() time.Time { return current }

	s.AddTurn("conv", "old turn")
	s.SetSummary(core.CategoryFinance, "old summary")
	s.AddReference("old ref", nil)
	pinned := s.Pin("keep me forever")

	current = current.Add(90 * time.Minute) // past short horizon only
	s.AddTurn("conv", "fresh turn")
	assert.Equal(t, 1, s.Sweep())
	require.Len(t, s.Recent("conv", 10), 1)
	assert.Equal(t, "fresh turn", s.Recent("conv", 10)[0].Content)

	current = current.Add(61 * time.Minute) // now past mid horizon for the summary
	assert.Equal(t, 2, s.Sweep(), "summary and the remaining turn decay")
	_, ok := s.Summary(core.CategoryFinance)
	assert.False(t, ok)

	current = current.Add(24 * time.Hour) // past long horizon
	assert.Equal(t, 1, s.Sweep())
	assert.Empty(t, s.References())

	pins := s.Pins()
	require.Len(t, pins, 1, "pinned items never decay")
	assert.Equal(t, pinned.ID, pins[0].ID)
}

func TestStore_PinUnpin(t *testing.T) {
	s := NewStore()
	item := s.Pin("remember the budget cap")
	assert.True(t, item.Pinned)
	assert.Len(t, s.Pins(), 1)

	assert.True(t, s.Unpin(item.ID))
	assert.False(t, s.Unpin(item.ID))
	assert.Empty(t, s.Pins())
}

func newAssemblerWith(t *testing.T, vector *mock.Handle) *Assembler {
	t.Helper()
	reg := registry.New()
	if vector != nil {
		require.NoError(t, reg.Register(core.Provider{ID: "vec", Kind: core.CapabilityVectorStore, Handle: vector}))
		require.NoError(t, reg.RegisterChain("vector-store", "vec"))
	}
	b := broker.New(reg, func(o *broker.Options) { o.BackoffUnit = time.Millisecond })
	return NewAssembler(NewStore(), b)
}

func TestAssemble_FullSnapshot(t *testing.T) {
	vector := mock.NewHandle().WithResponse(core.OpSearch, []core.SearchResult{
		{ID: "r1", Content: "prior research on ETFs", Score: 0.9},
	})
	a := newAssemblerWith(t, vector)

	a.Store().AddTurn("conv", "hello")
	a.Store().AddTurn("conv", "tell me about ETFs")
	a.Store().SetSummary(core.CategoryFinance, "user invests monthly")
	a.Store().Pin("risk tolerance: low")

	intent := core.Intent{Category: core.CategoryFinance}
	snap := a.Assemble(context.Background(), "conv", "what about ETFs?", intent)

	assert.Len(t, snap.ShortTerm, 2)
	assert.Equal(t, "user invests monthly", snap.Summary)
	require.Len(t, snap.LongTerm, 1)
	assert.Equal(t, "prior research on ETFs", snap.LongTerm[0].Content)
	assert.Equal(t, core.MemoryLongTerm, snap.LongTerm[0].Tier)
	assert.Len(t, snap.Pinned, 1)
}

func TestAssemble_NoVectorProviderDegradesSilently(t *testing.T) {
	a := newAssemblerWith(t, nil)
	a.Store().AddTurn("conv", "hi")

	snap := a.Assemble(context.Background(), "conv", "hi", core.DefaultIntent())
	assert.Len(t, snap.ShortTerm, 1)
	assert.Empty(t, snap.LongTerm)
}

func TestAssemble_VectorFailureDegradesSilently(t *testing.T) {
	vector := mock.NewHandle().FailAlways(errors.New("index offline"))
	a := newAssemblerWith(t, vector)

	snap := a.Assemble(context.Background(), "conv", "query", core.DefaultIntent())
	assert.Empty(t, snap.LongTerm)
}

func TestAssemble_DecayedTurnAbsentUnlessPinned(t *testing.T) {
	a := newAssemblerWith(t, nil)
	store := a.Store()

	current := time.Now()
	store.now = func() time.Time { return current }

	store.AddTurn("conv", "ephemeral")
	store.Pin("durable")

	current = current.Add(DefaultHorizons().Short + time.Minute)
	store.Sweep()

	snap := a.Assemble(context.Background(), "conv", "q", core.DefaultIntent())
	assert.Empty(t, snap.ShortTerm, "decayed item is absent from the assembled context")
	require.Len(t, snap.Pinned, 1)
	assert.Equal(t, "durable", snap.Pinned[0].Content)
}
