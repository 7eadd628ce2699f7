package daemon

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"strata/internal/config"
	"strata/internal/logging"
)

// minStagingFreeBytes is the staging headroom required to start: one full
// transfer chunk plus slack.
const minStagingFreeBytes = 512 << 20

// runPreflight validates the environment before background services start.
func runPreflight(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.StagingDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("preflight: stat %s: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("preflight: %s is not a directory", dir)
		}
	}

	free, err := freeBytes(cfg.Paths.StagingDir)
	if err != nil {
		return fmt.Errorf("preflight: staging free space: %w", err)
	}
	if free < minStagingFreeBytes {
		return fmt.Errorf("preflight: staging dir %s has %d MB free, need at least %d MB",
			cfg.Paths.StagingDir, free>>20, int64(minStagingFreeBytes)>>20)
	}

	logger.Debug("preflight passed",
		logging.String("staging_dir", cfg.Paths.StagingDir),
		logging.Int64("staging_free_mb", int64(free>>20)))
	return nil
}

func freeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
