package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMigration()
	c.normalizePlacement()
	c.normalizePredictor()
	c.normalizeConsistency()
	c.normalizeNotifications()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeMigration() {
	if c.Migration.MaxConcurrent <= 0 {
		c.Migration.MaxConcurrent = defaultMigrationMaxConcurrent
	}
	if c.Migration.MaxRetries < 0 {
		c.Migration.MaxRetries = defaultMigrationMaxRetries
	}
	if c.Migration.ChunkSizeMB <= 0 {
		c.Migration.ChunkSizeMB = defaultMigrationChunkSizeMB
	}
	if c.Migration.ThroughputMBps <= 0 {
		c.Migration.ThroughputMBps = defaultMigrationThroughputMBps
	}
	if c.Migration.TimeoutSeconds <= 0 {
		c.Migration.TimeoutSeconds = defaultMigrationTimeoutSeconds
	}
	c.Migration.DefaultProvider = strings.ToLower(strings.TrimSpace(c.Migration.DefaultProvider))
	if c.Migration.DefaultProvider == "" {
		c.Migration.DefaultProvider = defaultMigrationProvider
	}
}

func (c *Config) normalizePlacement() {
	if c.Placement.MinSavings <= 0 {
		c.Placement.MinSavings = defaultPlacementMinSavings
	}
	if c.Placement.SweepIntervalSeconds <= 0 {
		c.Placement.SweepIntervalSeconds = defaultPlacementSweepInterval
	}
}

func (c *Config) normalizePredictor() {
	if c.Predictor.MinSamples <= 0 {
		c.Predictor.MinSamples = defaultPredictorMinSamples
	}
	if c.Predictor.TestFraction <= 0 || c.Predictor.TestFraction >= 1 {
		c.Predictor.TestFraction = defaultPredictorTestFraction
	}
}

func (c *Config) normalizeConsistency() {
	if c.Consistency.MinReplicas <= 0 {
		c.Consistency.MinReplicas = defaultConsistencyMinReplicas
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.ProgressIntervalSeconds <= 0 {
		c.Notifications.ProgressIntervalSeconds = defaultNotifyProgressInterval
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultWorkflowQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultWorkflowErrorRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
