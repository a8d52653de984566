// Package qos selects the quality-of-service tier applied to a request. The
// selector is a pure decision function over the classified intent and the
// call context; it performs no I/O and never suspends.
package qos

import "github.com/hupe1980/capmesh/core"

// CallContext describes the transport situation of the inbound turn.
type CallContext struct {
	// IsVoice marks a voice chat turn.
	IsVoice bool
	// IsCall marks a telephony turn.
	IsCall bool
}

// Options allows overriding the fixed tier configurations at wiring time.
type Options struct {
	Realtime    core.QoSTier
	Interactive core.QoSTier
	Batch       core.QoSTier
}

// Selector resolves intents to QoS tiers using a fixed precedence order.
type Selector struct {
	realtime    core.QoSTier
	interactive core.QoSTier
	batch       core.QoSTier
}

// NewSelector constructs a Selector with the default tier configurations.
func NewSelector(optFns ...func(o *Options)) *Selector {
	opts := Options{
		Realtime:    core.RealtimeTier,
		Interactive: core.InteractiveTier,
		Batch:       core.BatchTier,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Selector{realtime: opts.Realtime, interactive: opts.Interactive, batch: opts.Batch}
}

// Select picks the tier for an intent. Rules are evaluated strictly top to
// bottom; earlier rules win:
//
//  1. voice or telephony turn        -> realtime
//  2. urgency high                   -> interactive
//  3. complex research               -> batch
//  4. everything else                -> interactive
func (s *Selector) Select(intent core.Intent, call CallContext) core.QoSTier {
	if call.IsVoice || call.IsCall {
		return s.realtime
	}
	if intent.Urgency == core.UrgencyHigh {
		return s.interactive
	}
	if intent.Complexity == core.ComplexityComplex && intent.Category == core.CategoryResearch {
		return s.batch
	}
	return s.interactive
}

// Tier returns the configured tier for a name, falling back to interactive
// for unknown names.
func (s *Selector) Tier(name core.TierName) core.QoSTier {
	switch name {
	case core.TierRealtime:
		return s.realtime
	case core.TierBatch:
		return s.batch
	default:
		return s.interactive
	}
}
