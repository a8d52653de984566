package memory

import (
	"context"
	"time"

	"github.com/hupe1980/capmesh/broker"
	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/logging"
)

// AssemblerOptions configures an Assembler.
type AssemblerOptions struct {
	// Window is the number of most recent short-term turns included.
	// Defaults to 10.
	Window int
	// VectorService is the fallback-chain service name used for long-term
	// lookups. Defaults to "vector-store".
	VectorService string
	// SearchLimit bounds the number of long-term hits. Defaults to 5.
	SearchLimit int
	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

// Assembler builds the contextual snapshot attached to routing decisions. It
// reads the tiered store and optionally augments with a vector-store lookup
// through the broker. A failed or unavailable lookup degrades silently to an
// empty long-term result; long-term memory is an enhancement, never a hard
// dependency.
type Assembler struct {
	store  *Store
	broker *broker.Broker

	window  int
	service string
	limit   int
	logger  logging.Logger
}

// NewAssembler constructs an Assembler over a store and broker.
func NewAssembler(store *Store, b *broker.Broker, optFns ...func(o *AssemblerOptions)) *Assembler {
	opts := AssemblerOptions{
		Window:        10,
		VectorService: "vector-store",
		SearchLimit:   5,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Assembler{
		store:   store,
		broker:  b,
		window:  opts.Window,
		service: opts.VectorService,
		limit:   opts.SearchLimit,
		logger:  opts.Logger,
	}
}

// Store exposes the underlying tiered store for conversation-handling
// collaborators.
func (a *Assembler) Store() *Store { return a.store }

// Assemble builds the snapshot for one request: the recent short-term
// window, the mid-term summary for the intent's category if present, the
// full pin set and, when available, long-term hits from the vector-store
// capability queried with the message.
func (a *Assembler) Assemble(ctx context.Context, conversationID, message string, intent core.Intent) core.MemorySnapshot {
	snap := core.MemorySnapshot{
		ShortTerm: a.store.Recent(conversationID, a.window),
		Pinned:    a.store.Pins(),
	}
	if summary, ok := a.store.Summary(intent.Category); ok {
		snap.Summary = summary.Content
	}
	snap.LongTerm = a.lookupLongTerm(ctx, message)
	return snap
}

// lookupLongTerm queries the vector-store chain. Every failure path returns
// an empty slice; errors are logged at debug level only since absence of a
// vector provider is a supported configuration.
func (a *Assembler) lookupLongTerm(ctx context.Context, query string) []core.MemoryItem {
	params := map[string]any{"query": query, "limit": a.limit}
	raw, providerID, err := a.broker.InvokeWithFallback(ctx, a.service, core.OpSearch, params)
	if err != nil {
		a.logger.Debug("long-term lookup unavailable", "error", err)
		return nil
	}

	hits, ok := raw.([]core.SearchResult)
	if !ok {
		a.logger.Debug("long-term lookup returned unexpected shape", "provider", providerID)
		return nil
	}
	items := make([]core.MemoryItem, 0, len(hits))
	now := time.Now()
	for _, hit := range hits {
		items = append(items, core.MemoryItem{
			ID:        hit.ID,
			Tier:      core.MemoryLongTerm,
			Content:   hit.Content,
			CreatedAt: now,
			Metadata:  hit.Metadata,
		})
	}
	return items
}
