// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"strata/internal/config"
	"strata/internal/store"
	"strata/internal/tier"
)

// NewConfig returns a validated configuration rooted in a per-test temp
// directory.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	defaults := config.Default()
	cfg := &defaults
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	return cfg
}

// MustOpenStore opens a store against the test config and closes it when the
// test finishes.
func MustOpenStore(t *testing.T, cfg *config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}

// SeedObject inserts a data object with sensible defaults and returns it.
func SeedObject(t *testing.T, st *store.Store, name string, sizeBytes int64, placed tier.Tier) *store.DataObject {
	t.Helper()
	obj := &store.DataObject{
		Name:        name,
		SizeBytes:   sizeBytes,
		CurrentTier: placed,
		Location:    tier.ResolveLocation(placed, "aws").String(),
		ContentType: "application/octet-stream",
	}
	if err := st.CreateObject(context.Background(), obj); err != nil {
		t.Fatalf("seed object %q: %v", name, err)
	}
	return obj
}

// SeedAccess records n read events spread evenly over the trailing window.
func SeedAccess(t *testing.T, st *store.Store, objectID int64, n int, window time.Duration) {
	t.Helper()
	if n <= 0 {
		return
	}
	now := time.Now().UTC()
	step := window / time.Duration(n)
	for i := 0; i < n; i++ {
		event := &store.AccessEvent{
			ObjectID:   objectID,
			Kind:       store.AccessRead,
			LatencyMS:  5,
			AccessedAt: now.Add(-time.Duration(i) * step),
		}
		if err := st.RecordAccess(context.Background(), event); err != nil {
			t.Fatalf("seed access: %v", err)
		}
	}
}
