// Package memory holds the tiered context store and the assembler that
// builds the contextual snapshot attached to each routing decision.
//
// Three tiers are kept: short-term conversation turns, mid-term per-category
// summaries and long-term references, each with its own decay horizon, plus
// an unordered pin set of explicitly retained items that never decays.
// Conversation handling code mutates the tiers; the assembler only reads
// them, except during its scheduled decay sweep.
package memory
