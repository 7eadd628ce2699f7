package tier

import (
	"fmt"
	"strings"
)

// Tier identifies one of the three storage tiers an object can occupy.
type Tier string

const (
	Hot  Tier = "hot"
	Warm Tier = "warm"
	Cold Tier = "cold"
)

var allTiers = []Tier{Hot, Warm, Cold}

// ordinal positions tiers from fastest to cheapest for adjacency math.
var ordinal = map[Tier]int{
	Hot:  0,
	Warm: 1,
	Cold: 2,
}

// All returns the ordered list of known tiers (hot, warm, cold).
func All() []Tier {
	cp := make([]Tier, len(allTiers))
	copy(cp, allTiers)
	return cp
}

// Parse converts a string into a known Tier.
func Parse(value string) (Tier, error) {
	normalized := Tier(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := ordinal[normalized]; !ok {
		return "", fmt.Errorf("unknown storage tier %q", value)
	}
	return normalized, nil
}

// IsValid reports whether t is one of the three known tiers.
func (t Tier) IsValid() bool {
	_, ok := ordinal[t]
	return ok
}

// Distance returns how many tier steps separate t from other (0, 1, or 2).
func (t Tier) Distance(other Tier) int {
	d := ordinal[t] - ordinal[other]
	if d < 0 {
		d = -d
	}
	return d
}

// DisplayName returns the human-facing tier label used in CLI and API output.
func (t Tier) DisplayName() string {
	switch t {
	case Hot:
		return "Hot Storage"
	case Warm:
		return "Warm Storage"
	case Cold:
		return "Cold Storage"
	default:
		return string(t)
	}
}
