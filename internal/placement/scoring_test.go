package placement

import (
	"testing"

	"strata/internal/access"
	"strata/internal/tier"
)

func TestAccessScoreByDistance(t *testing.T) {
	if got := accessScore(tier.Hot, tier.Hot); got != 40 {
		t.Fatalf("same tier = %v", got)
	}
	if got := accessScore(tier.Hot, tier.Warm); got != 20 {
		t.Fatalf("adjacent = %v", got)
	}
	if got := accessScore(tier.Hot, tier.Cold); got != 0 {
		t.Fatalf("two steps = %v", got)
	}
}

func TestCostScoreClipsAndIgnoresIncreases(t *testing.T) {
	if got := costScore(0, 1); got != 0 {
		t.Fatalf("zero current cost = %v", got)
	}
	if got := costScore(1, 2); got != 0 {
		t.Fatalf("cost increase = %v", got)
	}
	// 50% savings -> 15 points.
	if got := costScore(2, 1); got != 15 {
		t.Fatalf("50%% savings = %v", got)
	}
	// 100% savings clips at the cap.
	if got := costScore(1, 0); got != 30 {
		t.Fatalf("full savings = %v", got)
	}
}

func TestLatencyScoreDecay(t *testing.T) {
	table := tier.DefaultTable()

	// Within bound: full marks.
	if got := latencyScore(table, tier.Cold, tier.Hot); got != 30 {
		t.Fatalf("fast candidate = %v", got)
	}
	if got := latencyScore(table, tier.Warm, tier.Warm); got != 30 {
		t.Fatalf("at bound = %v", got)
	}
	// Cold (200ms) against a hot bound (5ms) is far past 4x: zero.
	if got := latencyScore(table, tier.Hot, tier.Cold); got != 0 {
		t.Fatalf("slow candidate = %v", got)
	}
	// Cold (200ms) against a warm bound (50ms) sits exactly at 4x: zero.
	if got := latencyScore(table, tier.Warm, tier.Cold); got != 0 {
		t.Fatalf("4x bound = %v", got)
	}
	// Halfway through the decay band scores half.
	custom := tier.NewTable(map[tier.Tier]tier.Profile{
		tier.Warm: {CostPerGB: 0.012, LatencyMS: 100},
		tier.Cold: {CostPerGB: 0.004, LatencyMS: 250},
	})
	if got := latencyScore(custom, tier.Warm, tier.Cold); got != 15 {
		t.Fatalf("half decay = %v", got)
	}
}

func TestScoreBoundedByHundred(t *testing.T) {
	table := tier.DefaultTable()
	for _, classified := range []access.Metrics{
		{AccessesPerDay: 1000, HoursSinceLastAccess: 1},
		{AccessesPerDay: 20, HoursSinceLastAccess: 10},
		{AccessesPerDay: 0, HoursSinceLastAccess: 1e6},
	} {
		for _, current := range tier.All() {
			for _, b := range scoreCandidates(table, classified, 100, current) {
				total := b.Total()
				if total < 0 || total > 100 {
					t.Fatalf("score %v out of range for %+v current=%s", total, b, current)
				}
			}
		}
	}
}

func TestPickBestPrefersCheaperOnTie(t *testing.T) {
	table := tier.DefaultTable()
	candidates := []Breakdown{
		{Candidate: tier.Hot, Access: 20, Cost: 0, Latency: 30},
		{Candidate: tier.Warm, Access: 20, Cost: 0, Latency: 30},
	}
	best := pickBest(candidates, table, 10, tier.Hot)
	if best.Candidate != tier.Warm {
		t.Fatalf("tie should prefer cheaper tier, got %s", best.Candidate)
	}
}
