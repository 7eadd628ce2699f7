package config

import (
	"errors"
	"fmt"

	"strata/internal/tier"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTiers(); err != nil {
		return err
	}
	if err := c.validateMigration(); err != nil {
		return err
	}
	if err := c.validatePredictor(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateTiers() error {
	for name, profile := range map[string]TierProfile{
		"tiers.hot":  c.Tiers.Hot,
		"tiers.warm": c.Tiers.Warm,
		"tiers.cold": c.Tiers.Cold,
	} {
		if profile.CostPerGB < 0 {
			return fmt.Errorf("%s.cost_per_gb must not be negative", name)
		}
		if profile.LatencyMS <= 0 {
			return fmt.Errorf("%s.latency_ms must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateMigration() error {
	if c.Migration.MaxConcurrent > 64 {
		return errors.New("migration.max_concurrent must not exceed 64")
	}
	if c.Migration.MaxRetries > 10 {
		return errors.New("migration.max_retries must not exceed 10")
	}
	if !tier.KnownProvider(c.Migration.DefaultProvider) {
		return fmt.Errorf("migration.default_provider: unknown provider %q", c.Migration.DefaultProvider)
	}
	return nil
}

func (c *Config) validatePredictor() error {
	if c.Predictor.MinSamples < 2 {
		return errors.New("predictor.min_samples must be at least 2")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
