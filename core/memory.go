package core

import "time"

// MemoryTier names the retention class a memory item belongs to. Tiers differ
// only in their configured decay horizon; the pin set sits outside the tiers
// and never decays.
type MemoryTier string

const (
	// MemoryShortTerm holds current conversation turns.
	MemoryShortTerm MemoryTier = "short"
	// MemoryMidTerm holds per-category running summaries.
	MemoryMidTerm MemoryTier = "mid"
	// MemoryLongTerm holds references resolved via vector search.
	MemoryLongTerm MemoryTier = "long"
)

// MemoryItem is one retained piece of context. Items are evicted once their
// age exceeds the owning tier's decay horizon unless pinned.
type MemoryItem struct {
	ID        string         `json:"id"`
	Tier      MemoryTier     `json:"tier"`
	Category  Category       `json:"category,omitempty"`
	Content   string         `json:"content"`
	Pinned    bool           `json:"pinned"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MemorySnapshot is the assembled context attached to a routing decision.
// LongTerm may be empty whenever the vector-store lookup is unavailable;
// long-term memory is an enhancement, never a hard dependency.
type MemorySnapshot struct {
	ShortTerm []MemoryItem `json:"short_term"`
	Summary   string       `json:"summary,omitempty"`
	LongTerm  []MemoryItem `json:"long_term,omitempty"`
	Pinned    []MemoryItem `json:"pinned,omitempty"`
}
