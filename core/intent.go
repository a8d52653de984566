package core

// Category is the closed set of intent categories a message can classify to.
type Category string

const (
	CategorySecurity Category = "security"
	CategoryCreative Category = "creative"
	CategoryResearch Category = "research"
	CategoryLearning Category = "learning"
	CategoryContent  Category = "content"
	CategoryFashion  Category = "fashion"
	CategoryFinance  Category = "finance"
	CategoryFitness  Category = "fitness"
	CategoryGeneral  Category = "general"
)

// Categories lists the closed category set in declaration order.
var Categories = []Category{
	CategorySecurity, CategoryCreative, CategoryResearch, CategoryLearning,
	CategoryContent, CategoryFashion, CategoryFinance, CategoryFitness,
	CategoryGeneral,
}

// Valid reports whether the category belongs to the closed set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Complexity grades how much reasoning a request demands.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Valid reports whether the complexity is one of the known grades.
func (c Complexity) Valid() bool {
	return c == ComplexitySimple || c == ComplexityModerate || c == ComplexityComplex
}

// Urgency grades how time sensitive a request is.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether the urgency is one of the known grades.
func (u Urgency) Valid() bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

// Intent is the classification result for one inbound message. HasContext
// and IsFollowUp are derived from caller-supplied conversation context, never
// from model output.
type Intent struct {
	Category        Category   `json:"category"`
	Confidence      float64    `json:"confidence"`
	Complexity      Complexity `json:"complexity"`
	Urgency         Urgency    `json:"urgency"`
	RequiresTools   bool       `json:"requires_tools"`
	EstimatedTokens int        `json:"estimated_tokens"`
	HasContext      bool       `json:"has_context"`
	IsFollowUp      bool       `json:"is_follow_up"`
}

// DefaultIntent is the fixed fallback used whenever classification fails.
// Classification failure degrades quality, never availability.
func DefaultIntent() Intent {
	return Intent{
		Category:        CategoryGeneral,
		Confidence:      0.5,
		Complexity:      ComplexityModerate,
		Urgency:         UrgencyMedium,
		RequiresTools:   false,
		EstimatedTokens: 500,
	}
}

// Specialist names the internal handler a routing decision targets. The set
// mirrors the category enumeration one to one.
type Specialist string

const (
	SpecialistSecurity Specialist = "security"
	SpecialistCreative Specialist = "creative"
	SpecialistResearch Specialist = "research"
	SpecialistLearning Specialist = "learning"
	SpecialistContent  Specialist = "content"
	SpecialistFashion  Specialist = "fashion"
	SpecialistFinance  Specialist = "finance"
	SpecialistFitness  Specialist = "fitness"
	SpecialistGeneral  Specialist = "general"
)

// Valid reports whether the specialist is one of the known targets.
func (s Specialist) Valid() bool {
	return Category(s).Valid()
}

// SpecialistFor maps an intent category to its handling specialist.
func SpecialistFor(c Category) Specialist {
	if !c.Valid() {
		return SpecialistGeneral
	}
	return Specialist(c)
}
