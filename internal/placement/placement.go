// Package placement scores candidate tiers for data objects and decides
// whether a migration is worth submitting.
package placement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"strata/internal/access"
	"strata/internal/config"
	"strata/internal/logging"
	"strata/internal/services"
	"strata/internal/store"
	"strata/internal/tier"
)

// Recommendation is the outcome of evaluating one object.
type Recommendation struct {
	ObjectID        int64
	ObjectName      string
	CurrentTier     tier.Tier
	RecommendedTier tier.Tier
	Score           float64
	CurrentCost     float64
	RecommendedCost float64
	MonthlySavings  float64
	SavingsPercent  float64
	ShouldMigrate   bool
	Reasoning       string
	Metrics         access.Metrics
	Breakdown       Breakdown
}

// Engine evaluates object placement against the pricing table and access
// history. Stateless between calls; safe for concurrent use.
type Engine struct {
	store      *store.Store
	model      *access.Model
	pricing    tier.Table
	minSavings float64
	logger     *slog.Logger
}

// NewEngine builds a scoring engine from configuration.
func NewEngine(st *store.Store, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		store: st,
		model: access.NewModel(st),
		pricing: tier.NewTable(map[tier.Tier]tier.Profile{
			tier.Hot:  {CostPerGB: cfg.Tiers.Hot.CostPerGB, LatencyMS: cfg.Tiers.Hot.LatencyMS},
			tier.Warm: {CostPerGB: cfg.Tiers.Warm.CostPerGB, LatencyMS: cfg.Tiers.Warm.LatencyMS},
			tier.Cold: {CostPerGB: cfg.Tiers.Cold.CostPerGB, LatencyMS: cfg.Tiers.Cold.LatencyMS},
		}),
		minSavings: cfg.Placement.MinSavings,
		logger:     logging.NewComponentLogger(logger, "placement"),
	}
}

// Pricing exposes the engine's pricing table for cost reporting elsewhere.
func (e *Engine) Pricing() tier.Table {
	return e.pricing
}

// Evaluate scores all tiers for one object and returns the best placement.
// Identical object state always yields an identical recommendation.
func (e *Engine) Evaluate(ctx context.Context, objectID int64) (*Recommendation, error) {
	obj, err := e.store.GetObject(ctx, objectID)
	if err != nil {
		return nil, err
	}
	metrics, err := e.model.MetricsFor(ctx, objectID)
	if err != nil {
		return nil, err
	}
	return e.evaluateObject(obj, metrics), nil
}

// BatchEvaluate scores many objects. Objects deleted mid-batch are skipped.
func (e *Engine) BatchEvaluate(ctx context.Context, objectIDs []int64) ([]*Recommendation, error) {
	recommendations := make([]*Recommendation, 0, len(objectIDs))
	for _, id := range objectIDs {
		rec, err := e.Evaluate(ctx, id)
		if errors.Is(err, services.ErrNotFound) {
			e.logger.Debug("skipping vanished object", logging.Int64(logging.FieldObjectID, id))
			continue
		}
		if err != nil {
			return nil, err
		}
		recommendations = append(recommendations, rec)
	}
	return recommendations, nil
}

func (e *Engine) evaluateObject(obj *store.DataObject, metrics access.Metrics) *Recommendation {
	sizeGB := obj.SizeGB()
	candidates := scoreCandidates(e.pricing, metrics, sizeGB, obj.CurrentTier)
	best := pickBest(candidates, e.pricing, sizeGB, obj.CurrentTier)

	currentCost := e.pricing.MonthlyCost(obj.CurrentTier, sizeGB)
	recommendedCost := e.pricing.MonthlyCost(best.Candidate, sizeGB)
	savings := currentCost - recommendedCost
	savingsPercent := 0.0
	if currentCost > 0 {
		savingsPercent = savings / currentCost * 100
	}

	rec := &Recommendation{
		ObjectID:        obj.ID,
		ObjectName:      obj.Name,
		CurrentTier:     obj.CurrentTier,
		RecommendedTier: best.Candidate,
		Score:           best.Total(),
		CurrentCost:     currentCost,
		RecommendedCost: recommendedCost,
		MonthlySavings:  savings,
		SavingsPercent:  savingsPercent,
		Metrics:         metrics,
		Breakdown:       best,
	}
	rec.ShouldMigrate = best.Candidate != obj.CurrentTier &&
		savings > minSavingsThreshold(e.minSavings) &&
		best.Latency > 0
	rec.Reasoning = e.reasoning(rec)
	return rec
}

func minSavingsThreshold(configured float64) float64 {
	if configured > minSavingsFloor {
		return configured
	}
	return minSavingsFloor
}

func (e *Engine) reasoning(rec *Recommendation) string {
	freq := describeFrequency(rec.Metrics)
	if rec.RecommendedTier == rec.CurrentTier {
		return fmt.Sprintf("%s; %s tier remains the best placement", freq, rec.CurrentTier)
	}

	var cost string
	switch {
	case rec.MonthlySavings > 0:
		cost = fmt.Sprintf("moving %s to %s saves $%.2f/month (%.1f%%)",
			rec.CurrentTier, rec.RecommendedTier, rec.MonthlySavings, rec.SavingsPercent)
	case rec.MonthlySavings < 0:
		cost = fmt.Sprintf("moving %s to %s costs $%.2f/month more for faster access",
			rec.CurrentTier, rec.RecommendedTier, -rec.MonthlySavings)
	default:
		cost = fmt.Sprintf("moving %s to %s is cost-neutral", rec.CurrentTier, rec.RecommendedTier)
	}

	latency := fmt.Sprintf("%s latency %.0fms is acceptable for this access pattern",
		rec.RecommendedTier, e.pricing.LatencyMS(rec.RecommendedTier))
	if rec.Breakdown.Latency <= 0 {
		latency = fmt.Sprintf("%s latency %.0fms is too slow for this access pattern",
			rec.RecommendedTier, e.pricing.LatencyMS(rec.RecommendedTier))
	}
	return fmt.Sprintf("%s; %s; %s", freq, cost, latency)
}

func describeFrequency(m access.Metrics) string {
	if math.IsInf(m.HoursSinceLastAccess, 1) {
		return "never accessed"
	}
	switch {
	case m.AccessesPerDay >= 100:
		return fmt.Sprintf("high access frequency (%.1f/day, last access %.1fh ago)",
			m.AccessesPerDay, m.HoursSinceLastAccess)
	case m.AccessesPerDay >= 10:
		return fmt.Sprintf("moderate access frequency (%.1f/day, last access %.1fh ago)",
			m.AccessesPerDay, m.HoursSinceLastAccess)
	default:
		return fmt.Sprintf("low access frequency (%.1f/day, last access %.1fh ago)",
			m.AccessesPerDay, m.HoursSinceLastAccess)
	}
}
