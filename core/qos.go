package core

import "time"

// TierName identifies one of the three fixed quality-of-service tiers.
type TierName string

const (
	// TierRealtime serves voice and call turns: small token budget, low
	// temperature, tightest timeout, highest cost multiplier.
	TierRealtime TierName = "realtime"
	// TierInteractive is the default tier for chat traffic.
	TierInteractive TierName = "interactive"
	// TierBatch serves long-running research: large token budget, longest
	// timeout, lowest cost multiplier.
	TierBatch TierName = "batch"
)

// QoSTier bundles the generation parameters and cost multiplier applied to a
// request. The tier's timeout is carried downstream to the eventual
// specialist call; the routing pipeline itself never enforces it.
type QoSTier struct {
	Name           TierName      `json:"name"`
	MaxTokens      int           `json:"max_tokens"`
	Temperature    float64       `json:"temperature"`
	Timeout        time.Duration `json:"timeout"`
	CostMultiplier float64       `json:"cost_multiplier"`
}

// Default tier configurations. Values can be overridden at wiring time via
// the qos.Selector options.
var (
	RealtimeTier = QoSTier{
		Name:           TierRealtime,
		MaxTokens:      256,
		Temperature:    0.3,
		Timeout:        5 * time.Second,
		CostMultiplier: 1.5,
	}

	InteractiveTier = QoSTier{
		Name:           TierInteractive,
		MaxTokens:      1024,
		Temperature:    0.7,
		Timeout:        30 * time.Second,
		CostMultiplier: 1.0,
	}

	BatchTier = QoSTier{
		Name:           TierBatch,
		MaxTokens:      4096,
		Temperature:    0.7,
		Timeout:        5 * time.Minute,
		CostMultiplier: 0.6,
	}
)
