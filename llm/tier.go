package llm

import "fmt"

// Tier is a named LLM capability/cost class selected per call site.
type Tier string

const (
	// TierFast selects a cheap, low-latency model.
	TierFast Tier = "fast"

	// TierBalanced selects a mid-range model.
	TierBalanced Tier = "balanced"

	// TierSynthesis selects the strongest configured model. Answer
	// synthesis over retrieved context always uses this tier.
	TierSynthesis Tier = "synthesis"
)

// DefaultTier is the tier used when a call site does not specify one.
const DefaultTier = TierBalanced

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// IsValid returns true if the tier is a known value.
func (t Tier) IsValid() bool {
	switch t {
	case TierFast, TierBalanced, TierSynthesis:
		return true
	default:
		return false
	}
}

// Validate returns an error if the tier is not a known value.
func (t Tier) Validate() error {
	if !t.IsValid() {
		return fmt.Errorf("invalid llm tier: %q", string(t))
	}
	return nil
}

// ParseTier parses a string into a Tier value.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "fast":
		return TierFast, nil
	case "balanced":
		return TierBalanced, nil
	case "synthesis":
		return TierSynthesis, nil
	default:
		return "", fmt.Errorf("invalid llm tier: %q", s)
	}
}

// AllTiers returns all valid tier values.
func AllTiers() []Tier {
	return []Tier{TierFast, TierBalanced, TierSynthesis}
}
