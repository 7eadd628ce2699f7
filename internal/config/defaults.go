package config

const (
	defaultDataDir    = "~/.local/share/strata/data"
	defaultStagingDir = "~/.local/share/strata/staging"
	defaultLogDir     = "~/.local/share/strata/logs"
	defaultAPIBind    = "127.0.0.1:7519"

	defaultHotCostPerGB  = 0.023
	defaultHotLatencyMS  = 5
	defaultWarmCostPerGB = 0.012
	defaultWarmLatencyMS = 50
	defaultColdCostPerGB = 0.004
	defaultColdLatencyMS = 200

	defaultMigrationMaxConcurrent  = 5
	defaultMigrationMaxRetries     = 3
	defaultMigrationChunkSizeMB    = 100
	defaultMigrationThroughputMBps = 1000
	defaultMigrationTimeoutSeconds = 600
	defaultMigrationProvider       = "aws"

	defaultPlacementMinSavings    = 0.01
	defaultPlacementSweepInterval = 300

	defaultPredictorMinSamples   = 10
	defaultPredictorTestFraction = 0.2

	defaultConsistencyMinReplicas = 2

	defaultNotifyRequestTimeout   = 10
	defaultNotifyProgressInterval = 15

	defaultWorkflowQueuePollInterval  = 2
	defaultWorkflowErrorRetryInterval = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Tiers: Tiers{
			Hot:  TierProfile{CostPerGB: defaultHotCostPerGB, LatencyMS: defaultHotLatencyMS},
			Warm: TierProfile{CostPerGB: defaultWarmCostPerGB, LatencyMS: defaultWarmLatencyMS},
			Cold: TierProfile{CostPerGB: defaultColdCostPerGB, LatencyMS: defaultColdLatencyMS},
		},
		Migration: Migration{
			MaxConcurrent:   defaultMigrationMaxConcurrent,
			MaxRetries:      defaultMigrationMaxRetries,
			ChunkSizeMB:     defaultMigrationChunkSizeMB,
			ThroughputMBps:  defaultMigrationThroughputMBps,
			TimeoutSeconds:  defaultMigrationTimeoutSeconds,
			DefaultProvider: defaultMigrationProvider,
		},
		Placement: Placement{
			MinSavings:           defaultPlacementMinSavings,
			AutoMigrate:          false,
			SweepIntervalSeconds: defaultPlacementSweepInterval,
		},
		Predictor: Predictor{
			MinSamples:   defaultPredictorMinSamples,
			TestFraction: defaultPredictorTestFraction,
		},
		Consistency: Consistency{
			MinReplicas: defaultConsistencyMinReplicas,
		},
		Notifications: Notifications{
			RequestTimeout:          defaultNotifyRequestTimeout,
			Migrations:              true,
			Predictions:             true,
			Errors:                  true,
			ProgressIntervalSeconds: defaultNotifyProgressInterval,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultWorkflowQueuePollInterval,
			ErrorRetryInterval: defaultWorkflowErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
