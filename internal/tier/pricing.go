package tier

// Profile describes the steady-state characteristics of a single tier:
// the monthly price per GB and the fixed access latency.
type Profile struct {
	CostPerGB float64
	LatencyMS float64
}

// Table holds the per-tier pricing and latency profiles. It is supplied by
// configuration at startup and never mutated afterwards, so it is safe to
// share across goroutines.
type Table struct {
	profiles map[Tier]Profile
}

// NewTable builds a Table from per-tier profiles. Missing tiers fall back to
// DefaultTable values.
func NewTable(profiles map[Tier]Profile) Table {
	merged := make(map[Tier]Profile, len(allTiers))
	defaults := defaultProfiles()
	for _, t := range allTiers {
		if p, ok := profiles[t]; ok {
			merged[t] = p
		} else {
			merged[t] = defaults[t]
		}
	}
	return Table{profiles: merged}
}

// DefaultTable returns the documented default pricing and latency profiles.
func DefaultTable() Table {
	return Table{profiles: defaultProfiles()}
}

func defaultProfiles() map[Tier]Profile {
	return map[Tier]Profile{
		Hot:  {CostPerGB: 0.023, LatencyMS: 5},
		Warm: {CostPerGB: 0.012, LatencyMS: 50},
		Cold: {CostPerGB: 0.004, LatencyMS: 200},
	}
}

// Profile returns the profile for t.
func (tb Table) Profile(t Tier) Profile {
	return tb.profiles[t]
}

// MonthlyCost computes the monthly storage cost for sizeGB bytes-worth of
// data resident on tier t.
func (tb Table) MonthlyCost(t Tier, sizeGB float64) float64 {
	return tb.profiles[t].CostPerGB * sizeGB
}

// LatencyMS returns the fixed access latency for tier t in milliseconds.
func (tb Table) LatencyMS(t Tier) float64 {
	return tb.profiles[t].LatencyMS
}
