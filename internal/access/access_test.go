package access_test

import (
	"context"
	"math"
	"testing"
	"time"

	"strata/internal/access"
	"strata/internal/store"
	"strata/internal/testsupport"
	"strata/internal/tier"
)

func metricsAt(perDay, hours float64) access.Metrics {
	return access.Metrics{AccessesPerDay: perDay, HoursSinceLastAccess: hours}
}

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		metrics access.Metrics
		want    tier.Tier
	}{
		{"hot at exact thresholds", metricsAt(100, 24), tier.Hot},
		{"hot well above", metricsAt(500, 1), tier.Hot},
		{"frequent but stale falls to warm", metricsAt(150, 48), tier.Warm},
		{"warm at exact thresholds", metricsAt(10, 168), tier.Warm},
		{"just below hot rate", metricsAt(99.9, 1), tier.Warm},
		{"below warm rate", metricsAt(9.9, 1), tier.Cold},
		{"warm rate but stale", metricsAt(50, 169), tier.Cold},
		{"never accessed", access.Metrics{HoursSinceLastAccess: math.Inf(1)}, tier.Cold},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := access.Classify(tc.metrics); got != tc.want {
				t.Fatalf("Classify(%+v) = %s, want %s", tc.metrics, got, tc.want)
			}
		})
	}
}

func TestComputeNoEvents(t *testing.T) {
	m := access.Compute(&store.AccessStats{Count: 0}, time.Now())
	if m.TotalAccesses != 0 || m.AccessesPerDay != 0 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if !math.IsInf(m.HoursSinceLastAccess, 1) {
		t.Fatalf("expected infinite recency, got %v", m.HoursSinceLastAccess)
	}
	if access.Classify(m) != tier.Cold {
		t.Fatal("untouched object should classify cold")
	}
}

func TestComputeRates(t *testing.T) {
	now := time.Now().UTC()
	last := now.Add(-6 * time.Hour)
	m := access.Compute(&store.AccessStats{Count: 3000, LastAccess: &last}, now)
	if m.AccessesPerDay != 100 {
		t.Fatalf("accesses per day = %v, want 100", m.AccessesPerDay)
	}
	if math.Abs(m.HoursSinceLastAccess-6) > 1e-9 {
		t.Fatalf("hours since last = %v, want 6", m.HoursSinceLastAccess)
	}
	if access.Classify(m) != tier.Hot {
		t.Fatal("expected hot classification")
	}
}

func TestComputeClampsFutureTimestamps(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Minute)
	m := access.Compute(&store.AccessStats{Count: 1, LastAccess: &future}, now)
	if m.HoursSinceLastAccess != 0 {
		t.Fatalf("future access should clamp to 0, got %v", m.HoursSinceLastAccess)
	}
}

func TestModelClassifyObject(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	model := access.NewModel(st)

	obj := testsupport.SeedObject(t, st, "busy.bin", 1<<20, tier.Cold)
	testsupport.SeedAccess(t, st, obj.ID, 400, 2*time.Hour)

	got, metrics, err := model.ClassifyObject(context.Background(), obj.ID)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got != tier.Hot {
		t.Fatalf("tier = %s, want hot (metrics %+v)", got, metrics)
	}
	if metrics.TotalAccesses != 400 {
		t.Fatalf("total accesses = %d", metrics.TotalAccesses)
	}
}

func TestModelColdWhenIdle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	model := access.NewModel(st)

	obj := testsupport.SeedObject(t, st, "idle.bin", 1<<20, tier.Hot)
	got, _, err := model.ClassifyObject(context.Background(), obj.ID)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got != tier.Cold {
		t.Fatalf("tier = %s, want cold", got)
	}
}
