package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"strata/internal/api"
	"strata/internal/config"
	"strata/internal/logging"
	"strata/internal/migration"
	"strata/internal/notifications"
	"strata/internal/store"
)

// Daemon coordinates the orchestrator, the HTTP API, and the auto-optimize
// sweep, and enforces single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *store.Store
	service      *api.Service
	orchestrator *migration.Orchestrator
	notifier     notifications.Service
	server       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New constructs a daemon with initialized dependencies.
func New(
	cfg *config.Config,
	st *store.Store,
	svc *api.Service,
	orch *migration.Orchestrator,
	notifier notifications.Service,
	logger *slog.Logger,
) (*Daemon, error) {
	if cfg == nil || st == nil || svc == nil || orch == nil {
		return nil, errors.New("daemon requires config, store, service, and orchestrator")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "stratad.lock")
	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        st,
		service:      svc,
		orchestrator: orch,
		notifier:     notifier,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}
	server, err := newAPIServer(cfg, svc, d.logger)
	if err != nil {
		return nil, err
	}
	d.server = server
	return d, nil
}

// Start acquires the instance lock, runs preflight checks, and launches the
// background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another strata daemon instance is already running")
	}

	if err := runPreflight(d.cfg, d.logger); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.orchestrator.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start orchestrator: %w", err)
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	if d.server != nil {
		if err := d.server.start(groupCtx); err != nil {
			d.orchestrator.Stop()
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}
	if d.cfg.Placement.AutoMigrate {
		group.Go(func() error {
			d.sweepLoop(groupCtx)
			return nil
		})
	}

	d.cancel = cancel
	d.group = group
	d.running.Store(true)
	d.logger.Info("strata daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("auto_migrate", d.cfg.Placement.AutoMigrate))
	return nil
}

// Stop halts background services and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.group != nil {
		_ = d.group.Wait()
		d.group = nil
	}
	if d.server != nil {
		d.server.stop()
	}
	d.orchestrator.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("strata daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound API address, or empty when the API is disabled
// or the daemon has not started.
func (d *Daemon) APIAddr() string {
	return d.server.addr()
}

// sweepLoop periodically batch-evaluates the fleet and submits migrations
// where the decision rule fires.
func (d *Daemon) sweepLoop(ctx context.Context) {
	interval := time.Duration(d.cfg.Placement.SweepIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("auto-optimize sweep enabled", logging.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		result, err := d.service.Sweep(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("auto-optimize sweep failed", logging.Error(err))
			if notifyErr := d.notifier.NotifyError(ctx, err, "auto-optimize sweep"); notifyErr != nil {
				d.logger.Warn("sweep error notification", logging.Error(notifyErr))
			}
			continue
		}
		if len(result.Submitted) > 0 {
			d.logger.Info("auto-optimize sweep submitted migrations",
				logging.Int("evaluated", result.Evaluated),
				logging.Int("submitted", len(result.Submitted)))
		}
	}
}
