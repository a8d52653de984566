package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/capmesh/core"
)

// Horizons configures the maximum age per tier before automatic eviction.
type Horizons struct {
	Short time.Duration
	Mid   time.Duration
	Long  time.Duration
}

// DefaultHorizons returns the baseline decay configuration: two hours of
// short-term turns, a day of mid-term summaries, thirty days of references.
func DefaultHorizons() Horizons {
	return Horizons{
		Short: 2 * time.Hour,
		Mid:   24 * time.Hour,
		Long:  30 * 24 * time.Hour,
	}
}

// StoreOptions configures a Store.
type StoreOptions struct {
	Horizons Horizons
}

// Store is a process-local tiered memory store. It is safe for concurrent
// access; all mutations are serialized behind one mutex while reads return
// copies to prevent external mutation of internal state.
type Store struct {
	mu        sync.Mutex
	turns     map[string][]core.MemoryItem // conversationID -> ordered turns
	summaries map[core.Category]core.MemoryItem
	refs      []core.MemoryItem
	pins      map[string]core.MemoryItem
	horizons  Horizons
	seq       int

	now func() time.Time
}

// NewStore constructs an empty Store with default horizons.
func NewStore(optFns ...func(o *StoreOptions)) *Store {
	opts := StoreOptions{Horizons: DefaultHorizons()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		turns:     make(map[string][]core.MemoryItem),
		summaries: make(map[core.Category]core.MemoryItem),
		pins:      make(map[string]core.MemoryItem),
		horizons:  opts.Horizons,
		now:       time.Now,
	}
}

func (s *Store) nextID(tier core.MemoryTier) string {
	s.seq++
	return fmt.Sprintf("%s_%d", tier, s.seq)
}

// AddTurn appends a short-term conversation turn.
func (s *Store) AddTurn(conversationID, content string) core.MemoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := core.MemoryItem{
		ID:        s.nextID(core.MemoryShortTerm),
		Tier:      core.MemoryShortTerm,
		Content:   content,
		CreatedAt: s.now(),
	}
	s.turns[conversationID] = append(s.turns[conversationID], item)
	return item
}

// Recent returns up to n of the most recent short-term turns for a
// conversation, oldest first.
func (s *Store) Recent(conversationID string, n int) []core.MemoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.turns[conversationID]
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]core.MemoryItem, len(turns))
	copy(out, turns)
	return out
}

// SetSummary replaces the mid-term running summary for a category.
func (s *Store) SetSummary(category core.Category, content string) core.MemoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := core.MemoryItem{
		ID:        s.nextID(core.MemoryMidTerm),
		Tier:      core.MemoryMidTerm,
		Category:  category,
		Content:   content,
		CreatedAt: s.now(),
	}
	s.summaries[category] = item
	return item
}

// Summary returns the mid-term summary for a category, if present.
func (s *Store) Summary(category core.Category) (core.MemoryItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.summaries[category]
	return item, ok
}

// AddReference appends a long-term reference item.
func (s *Store) AddReference(content string, metadata map[string]any) core.MemoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := core.MemoryItem{
		ID:        s.nextID(core.MemoryLongTerm),
		Tier:      core.MemoryLongTerm,
		Content:   content,
		CreatedAt: s.now(),
		Metadata:  metadata,
	}
	s.refs = append(s.refs, item)
	return item
}

// References returns a copy of the long-term reference items.
func (s *Store) References() []core.MemoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.MemoryItem, len(s.refs))
	copy(out, s.refs)
	return out
}

// Pin explicitly retains a piece of content. Pinned items never decay.
func (s *Store) Pin(content string) core.MemoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := core.MemoryItem{
		ID:        s.nextID("pin"),
		Tier:      core.MemoryShortTerm,
		Content:   content,
		Pinned:    true,
		CreatedAt: s.now(),
	}
	s.pins[item.ID] = item
	return item
}

// Unpin releases a pinned item. Returns false if the id is unknown.
func (s *Store) Unpin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pins[id]; !ok {
		return false
	}
	delete(s.pins, id)
	return true
}

// Pins returns a copy of the full pin set.
func (s *Store) Pins() []core.MemoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.MemoryItem, 0, len(s.pins))
	for _, item := range s.pins {
		out = append(out, item)
	}
	return out
}

// Sweep evicts items older than their tier's decay horizon and returns the
// number evicted. Pins are exempt. Intended to be invoked on a schedule by
// an external collaborator.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	evicted := 0

	for cid, turns := range s.turns {
		kept := turns[:0]
		for _, item := range turns {
			if now.Sub(item.CreatedAt) <= s.horizons.Short {
				kept = append(kept, item)
			} else {
				evicted++
			}
		}
		if len(kept) == 0 {
			delete(s.turns, cid)
		} else {
			s.turns[cid] = kept
		}
	}

	for cat, item := range s.summaries {
		if now.Sub(item.CreatedAt) > s.horizons.Mid {
			delete(s.summaries, cat)
			evicted++
		}
	}

	keptRefs := s.refs[:0]
	for _, item := range s.refs {
		if now.Sub(item.CreatedAt) <= s.horizons.Long {
			keptRefs = append(keptRefs, item)
		} else {
			evicted++
		}
	}
	s.refs = keptRefs

	return evicted
}
