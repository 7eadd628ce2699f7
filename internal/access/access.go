// Package access derives access-pattern metrics from recorded events and
// classifies objects into storage tiers.
package access

import (
	"context"
	"math"
	"time"

	"strata/internal/services"
	"strata/internal/store"
	"strata/internal/tier"
)

// WindowDays is the trailing window metrics are computed over.
const WindowDays = 30

// Classification thresholds. Boundaries are inclusive.
const (
	hotMinPerDay  = 100.0
	hotMaxHours   = 24.0
	warmMinPerDay = 10.0
	warmMaxHours  = 168.0
)

// Metrics summarizes how an object has been accessed inside the window.
// HoursSinceLastAccess is +Inf when the object has never been accessed.
type Metrics struct {
	TotalAccesses        int64
	AccessesPerDay       float64
	HoursSinceLastAccess float64
	LastAccess           *time.Time
}

// Compute builds metrics from window stats as of now.
func Compute(stats *store.AccessStats, now time.Time) Metrics {
	m := Metrics{HoursSinceLastAccess: math.Inf(1)}
	if stats == nil {
		return m
	}
	m.TotalAccesses = stats.Count
	m.AccessesPerDay = float64(stats.Count) / WindowDays
	if stats.LastAccess != nil {
		last := stats.LastAccess.UTC()
		m.LastAccess = &last
		m.HoursSinceLastAccess = now.UTC().Sub(last).Hours()
		if m.HoursSinceLastAccess < 0 {
			m.HoursSinceLastAccess = 0
		}
	}
	return m
}

// Classify maps metrics to a tier. Rules are ordered; first match wins.
func Classify(m Metrics) tier.Tier {
	switch {
	case m.AccessesPerDay >= hotMinPerDay && m.HoursSinceLastAccess <= hotMaxHours:
		return tier.Hot
	case m.AccessesPerDay >= warmMinPerDay && m.HoursSinceLastAccess <= warmMaxHours:
		return tier.Warm
	default:
		return tier.Cold
	}
}

// Model reads access history out of the store and produces metrics.
type Model struct {
	store *store.Store
}

// NewModel creates an access model backed by the given store.
func NewModel(st *store.Store) *Model {
	return &Model{store: st}
}

// MetricsFor computes windowed metrics for one object.
func (m *Model) MetricsFor(ctx context.Context, objectID int64) (Metrics, error) {
	now := time.Now().UTC()
	stats, err := m.store.AccessStatsSince(ctx, objectID, now.Add(-WindowDays*24*time.Hour))
	if err != nil {
		return Metrics{}, services.Wrap(services.ErrTransient, "access", "metrics", "load access stats", err)
	}
	return Compute(stats, now), nil
}

// ClassifyObject computes metrics and classifies in one call.
func (m *Model) ClassifyObject(ctx context.Context, objectID int64) (tier.Tier, Metrics, error) {
	metrics, err := m.MetricsFor(ctx, objectID)
	if err != nil {
		return "", Metrics{}, err
	}
	return Classify(metrics), metrics, nil
}
