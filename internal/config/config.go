package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// TierProfile configures the monthly price and fixed access latency of one tier.
type TierProfile struct {
	CostPerGB float64 `toml:"cost_per_gb"`
	LatencyMS float64 `toml:"latency_ms"`
}

// Tiers contains the per-tier pricing and latency table.
type Tiers struct {
	Hot  TierProfile `toml:"hot"`
	Warm TierProfile `toml:"warm"`
	Cold TierProfile `toml:"cold"`
}

// Migration contains configuration for the migration orchestrator.
type Migration struct {
	MaxConcurrent   int    `toml:"max_concurrent"`
	MaxRetries      int    `toml:"max_retries"`
	ChunkSizeMB     int    `toml:"chunk_size_mb"`
	ThroughputMBps  int    `toml:"throughput_mbps"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	DefaultProvider string `toml:"default_provider"`
}

// Placement contains configuration for the scoring engine and the
// auto-optimize sweep.
type Placement struct {
	MinSavings float64 `toml:"min_savings"`
	// AutoMigrate enables the background sweep that submits migrations for
	// objects where the decision rule fires.
	AutoMigrate          bool `toml:"auto_migrate"`
	SweepIntervalSeconds int  `toml:"sweep_interval_seconds"`
	// GateOnTransferLatency additionally considers cross-tier transfer
	// latency in the migration decision instead of only steady-state
	// post-migration latency.
	GateOnTransferLatency bool `toml:"gate_on_transfer_latency"`
}

// Predictor contains configuration for the tier predictor.
type Predictor struct {
	MinSamples   int     `toml:"min_samples"`
	TestFraction float64 `toml:"test_fraction"`
}

// Consistency contains configuration for the consistency verifier.
type Consistency struct {
	MinReplicas int `toml:"min_replicas"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Migrations     bool   `toml:"migrations"`
	Predictions    bool   `toml:"predictions"`
	Errors         bool   `toml:"errors"`
	// ProgressIntervalSeconds rate-limits migration_progress events per task.
	ProgressIntervalSeconds int `toml:"progress_interval_seconds"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Strata.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Tiers: per-tier pricing and latency table
//   - Migration: orchestrator concurrency, retries, and simulated transfer
//   - Placement: decision rule thresholds and auto-optimize sweep
//   - Predictor: training thresholds for the tier predictor
//   - Consistency: replica requirements for the verifier
//   - Notifications: ntfy push notification settings
//   - Workflow: daemon polling intervals
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tiers         Tiers         `toml:"tiers"`
	Migration     Migration     `toml:"migration"`
	Placement     Placement     `toml:"placement"`
	Predictor     Predictor     `toml:"predictor"`
	Consistency   Consistency   `toml:"consistency"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/strata/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. A missing file is not
// an error; defaults apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("strata.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
