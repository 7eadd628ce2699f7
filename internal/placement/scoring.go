package placement

import (
	"strata/internal/access"
	"strata/internal/tier"
)

// Score component caps.
const (
	accessScoreMax  = 40.0
	costScoreMax    = 30.0
	latencyScoreMax = 30.0
)

// minSavingsFloor is the savings below which a migration is never worth the
// transfer cost.
const minSavingsFloor = 0.01

// Breakdown carries the per-component scores for one candidate tier.
type Breakdown struct {
	Candidate tier.Tier
	Access    float64
	Cost      float64
	Latency   float64
}

// Total sums the components.
func (b Breakdown) Total() float64 {
	return b.Access + b.Cost + b.Latency
}

// accessScore rewards candidates near the access-classified tier: full marks
// for an exact match, half for an adjacent tier, nothing two steps away.
func accessScore(classified, candidate tier.Tier) float64 {
	switch classified.Distance(candidate) {
	case 0:
		return accessScoreMax
	case 1:
		return accessScoreMax / 2
	default:
		return 0
	}
}

// costScore converts the percentage saved by moving to the candidate into
// points, 1% per 0.3 points, clipped at the cap. Cost increases score zero.
func costScore(currentCost, candidateCost float64) float64 {
	if currentCost <= 0 {
		return 0
	}
	percent := (currentCost - candidateCost) / currentCost * 100
	score := percent * 0.3
	if score < 0 {
		return 0
	}
	if score > costScoreMax {
		return costScoreMax
	}
	return score
}

// latencyScore grants full marks while the candidate's latency stays within
// the bound implied by the access-classified tier, then decays linearly to
// zero at four times the bound.
func latencyScore(pricing tier.Table, classified, candidate tier.Tier) float64 {
	bound := pricing.LatencyMS(classified)
	lat := pricing.LatencyMS(candidate)
	if bound <= 0 {
		if lat <= 0 {
			return latencyScoreMax
		}
		return 0
	}
	if lat <= bound {
		return latencyScoreMax
	}
	score := latencyScoreMax * (1 - (lat-bound)/(3*bound))
	if score < 0 {
		return 0
	}
	return score
}

// scoreCandidates evaluates all tiers for an object of the given size and
// access profile, with cost measured against the current placement. Results
// are ordered hot, warm, cold.
func scoreCandidates(pricing tier.Table, metrics access.Metrics, sizeGB float64, current tier.Tier) []Breakdown {
	classified := access.Classify(metrics)
	currentCost := pricing.MonthlyCost(current, sizeGB)
	candidates := make([]Breakdown, 0, len(tier.All()))
	for _, candidate := range tier.All() {
		candidates = append(candidates, Breakdown{
			Candidate: candidate,
			Access:    accessScore(classified, candidate),
			Cost:      costScore(currentCost, pricing.MonthlyCost(candidate, sizeGB)),
			Latency:   latencyScore(pricing, classified, candidate),
		})
	}
	return candidates
}

// pickBest selects the highest-scoring candidate. Ties prefer the cheaper
// tier, then the current tier, so stable objects stay put.
func pickBest(candidates []Breakdown, pricing tier.Table, sizeGB float64, current tier.Tier) Breakdown {
	best := candidates[0]
	for _, candidate := range candidates[1:] {
		switch {
		case candidate.Total() > best.Total():
			best = candidate
		case candidate.Total() == best.Total():
			candidateCost := pricing.MonthlyCost(candidate.Candidate, sizeGB)
			bestCost := pricing.MonthlyCost(best.Candidate, sizeGB)
			if candidateCost < bestCost {
				best = candidate
			} else if candidateCost == bestCost && candidate.Candidate == current {
				best = candidate
			}
		}
	}
	return best
}
