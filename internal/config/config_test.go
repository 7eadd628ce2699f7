package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"strata/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", path)
	}
	if cfg.Migration.MaxConcurrent != 5 {
		t.Fatalf("max_concurrent = %d, want default 5", cfg.Migration.MaxConcurrent)
	}
	if cfg.Tiers.Warm.CostPerGB != 0.012 {
		t.Fatalf("warm cost = %f, want default 0.012", cfg.Tiers.Warm.CostPerGB)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[migration]
max_concurrent = 2
chunk_size_mb = -5

[notifications]
ntfy_topic = "  https://ntfy.sh/strata  "
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if cfg.Migration.MaxConcurrent != 2 {
		t.Fatalf("max_concurrent = %d, want 2", cfg.Migration.MaxConcurrent)
	}
	if cfg.Migration.ChunkSizeMB != 100 {
		t.Fatalf("chunk_size_mb = %d, want clamped default 100", cfg.Migration.ChunkSizeMB)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/strata" {
		t.Fatalf("ntfy topic not trimmed: %q", cfg.Notifications.NtfyTopic)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format error, got %v", err)
	}

	cfg = config.Default()
	cfg.Tiers.Cold.LatencyMS = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "latency_ms") {
		t.Fatalf("expected tier latency error, got %v", err)
	}

	cfg = config.Default()
	cfg.Migration.MaxConcurrent = 500
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "max_concurrent") {
		t.Fatalf("expected max_concurrent error, got %v", err)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.StagingDir = filepath.Join(dir, "staging")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, d := range []string{cfg.Paths.DataDir, cfg.Paths.StagingDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err=%v", d, err)
		}
	}
}
