// Package migration runs the tier migration queue: a fixed worker pool
// drains persisted tasks in FIFO order, moves object bytes through a
// Transfer adapter, and finalizes placement under consistency checks.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"strata/internal/config"
	"strata/internal/consistency"
	"strata/internal/logging"
	"strata/internal/notifications"
	"strata/internal/services"
	"strata/internal/store"
	"strata/internal/tier"
)

// Orchestrator owns the migration queue end to end.
type Orchestrator struct {
	store    *store.Store
	verifier *consistency.Verifier
	notifier notifications.Service
	transfer Transfer
	pricing  tier.Table
	logger   *slog.Logger

	maxConcurrent int
	maxRetries    int
	chunkBytes    int64
	timeout       time.Duration
	pollInterval  time.Duration
	provider      string

	wakeCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewOrchestrator wires the orchestrator from configuration. A nil transfer
// gets the simulated adapter with the configured throughput.
func NewOrchestrator(
	st *store.Store,
	cfg *config.Config,
	verifier *consistency.Verifier,
	notifier notifications.Service,
	transfer Transfer,
	logger *slog.Logger,
) *Orchestrator {
	if transfer == nil {
		transfer = NewSimulatedTransfer(float64(cfg.Migration.ThroughputMBps))
	}
	return &Orchestrator{
		store:    st,
		verifier: verifier,
		notifier: notifier,
		transfer: transfer,
		pricing: tier.NewTable(map[tier.Tier]tier.Profile{
			tier.Hot:  {CostPerGB: cfg.Tiers.Hot.CostPerGB, LatencyMS: cfg.Tiers.Hot.LatencyMS},
			tier.Warm: {CostPerGB: cfg.Tiers.Warm.CostPerGB, LatencyMS: cfg.Tiers.Warm.LatencyMS},
			tier.Cold: {CostPerGB: cfg.Tiers.Cold.CostPerGB, LatencyMS: cfg.Tiers.Cold.LatencyMS},
		}),
		logger:        logging.NewComponentLogger(logger, "migration"),
		maxConcurrent: cfg.Migration.MaxConcurrent,
		maxRetries:    cfg.Migration.MaxRetries,
		chunkBytes:    int64(cfg.Migration.ChunkSizeMB) << 20,
		timeout:       time.Duration(cfg.Migration.TimeoutSeconds) * time.Second,
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		provider:      cfg.Migration.DefaultProvider,
		wakeCh:        make(chan struct{}, 1),
	}
}

// Start recovers interrupted work and launches the worker pool.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return services.Wrap(services.ErrValidation, "migration", "start", "orchestrator already started", nil)
	}

	recovered, err := o.store.ResetStalledTasks(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		o.logger.Info("recovered interrupted migrations", logging.Int64("count", recovered))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel
	o.started = true
	for i := 0; i < o.maxConcurrent; i++ {
		o.wg.Add(1)
		go o.worker(runCtx)
	}
	o.logger.Info("orchestrator started",
		logging.Int("workers", o.maxConcurrent),
		logging.Int("max_retries", o.maxRetries))
	return nil
}

// Stop halts the workers. In-flight transfers stop at the next chunk
// boundary and their tasks return to pending without consuming a retry.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	cancel := o.cancel
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
	o.logger.Info("orchestrator stopped")
}

// Wake nudges the workers to check the queue immediately.
func (o *Orchestrator) Wake() {
	select {
	case o.wakeCh <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		task, err := o.store.ClaimNextPending(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Error("claim next task", logging.Error(err))
		} else if task != nil {
			o.runTask(ctx, task)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-o.wakeCh:
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) runTask(ctx context.Context, task *store.Task) {
	taskCtx := services.WithTaskID(ctx, task.ID)
	taskCtx = services.WithObjectID(taskCtx, task.ObjectID)
	log := logging.WithContext(taskCtx, o.logger)

	obj, err := o.store.GetObject(taskCtx, task.ObjectID)
	if err != nil {
		o.failTask(taskCtx, task, "", err)
		return
	}
	log.Info("migration started",
		logging.String("object", obj.Name),
		logging.String("source_tier", string(task.SourceTier)),
		logging.String("target_tier", string(task.TargetTier)),
		logging.Int("attempt", task.RetryCount+1))
	if err := o.notifier.NotifyMigrationStarted(taskCtx, obj.Name, task.SourceTier, task.TargetTier); err != nil {
		log.Warn("migration started notification", logging.Error(err))
	}

	if _, err := o.verifier.Prepare(taskCtx, obj); err != nil {
		o.failTask(taskCtx, task, obj.Name, err)
		return
	}

	transferCtx := taskCtx
	var cancel context.CancelFunc
	if o.timeout > 0 {
		transferCtx, cancel = context.WithTimeout(taskCtx, o.timeout)
		defer cancel()
	}

	err = o.transfer.Run(transferCtx, TransferRequest{
		Object:         obj,
		SourceLocation: task.SourceLocation,
		TargetLocation: task.TargetLocation,
		ChunkSizeBytes: o.chunkBytes,
	}, func(percent float64) {
		if err := o.store.UpdateTaskProgress(taskCtx, task.ID, percent); err != nil {
			log.Warn("record progress", logging.Error(err))
		}
		if err := o.notifier.NotifyMigrationProgress(taskCtx, obj.Name, percent); err != nil {
			log.Warn("progress notification", logging.Error(err))
		}
	})
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) && transferCtx.Err() != nil && ctx.Err() == nil:
		o.failTask(taskCtx, task, obj.Name, services.Wrap(services.ErrTimeout, "migration", "transfer",
			fmt.Sprintf("transfer exceeded %s", o.timeout), err))
		return
	case ctx.Err() != nil:
		// Shutdown between chunks: hand the task back untouched.
		if returnErr := o.store.ReturnTask(context.WithoutCancel(taskCtx), task.ID); returnErr != nil {
			log.Error("return task on shutdown", logging.Error(returnErr))
		} else {
			log.Info("migration re-queued for shutdown", logging.String("object", obj.Name))
		}
		return
	default:
		o.failTask(taskCtx, task, obj.Name, services.Wrap(services.ErrTransient, "migration", "transfer",
			"transfer failed", err))
		return
	}

	if err := o.verifier.VerifyAfterTransfer(taskCtx, obj); err != nil {
		o.failTask(taskCtx, task, obj.Name, err)
		return
	}

	newCost := o.pricing.MonthlyCost(task.TargetTier, obj.SizeGB())
	savings := o.pricing.MonthlyCost(task.SourceTier, obj.SizeGB()) - newCost
	err = o.store.WithObjectLock(obj.ID, func() error {
		if err := o.verifier.CommitMove(taskCtx, obj, task.SourceLocation, task.TargetLocation); err != nil {
			return err
		}
		if err := o.store.UpdateObjectPlacement(taskCtx, obj.ID, task.TargetTier, task.TargetLocation, newCost); err != nil {
			return err
		}
		return o.store.CompleteTask(taskCtx, task.ID)
	})
	if err != nil {
		o.failTask(taskCtx, task, obj.Name, err)
		return
	}

	log.Info("migration completed",
		logging.String("object", obj.Name),
		logging.String(logging.FieldTier, string(task.TargetTier)),
		logging.Float64("monthly_savings", savings))
	if err := o.notifier.NotifyMigrationCompleted(taskCtx, obj.Name, task.TargetTier, savings); err != nil {
		log.Warn("migration completed notification", logging.Error(err))
	}
}

func (o *Orchestrator) failTask(ctx context.Context, task *store.Task, objectName string, cause error) {
	ctx = context.WithoutCancel(ctx)
	log := logging.WithContext(ctx, o.logger)

	if err := o.store.FailTask(ctx, task.ID, cause.Error()); err != nil {
		log.Error("mark task failed", logging.Error(err))
	}

	willRetry := services.IsTransient(cause) && task.RetryCount < o.maxRetries
	if willRetry {
		if err := o.store.RequeueTask(ctx, task.ID); err != nil {
			log.Error("requeue task", logging.Error(err))
			willRetry = false
		} else {
			o.Wake()
		}
	}

	log.Error("migration failed",
		logging.String("object", objectName),
		logging.Bool("will_retry", willRetry),
		logging.Int("retry_count", task.RetryCount),
		logging.Error(cause))
	if err := o.notifier.NotifyMigrationFailed(ctx, objectName, cause.Error(), willRetry); err != nil {
		log.Warn("migration failed notification", logging.Error(err))
	}
}

// Submit validates and enqueues a migration. An object with an active task
// gets that task back instead of a new one.
func (o *Orchestrator) Submit(ctx context.Context, objectID int64, target tier.Tier) (*store.Task, error) {
	if !target.IsValid() {
		return nil, services.Wrap(services.ErrValidation, "migration", "submit",
			fmt.Sprintf("unknown target tier %q", target), nil)
	}
	obj, err := o.store.GetObject(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if obj.CurrentTier == target {
		return nil, services.Wrap(services.ErrValidation, "migration", "submit",
			fmt.Sprintf("object %q already resides in the %s tier", obj.Name, target), nil)
	}

	var task *store.Task
	err = o.store.WithObjectLock(objectID, func() error {
		existing, err := o.store.ActiveTaskForObject(ctx, objectID)
		if err != nil {
			return err
		}
		if existing != nil {
			task = existing
			return nil
		}
		task = &store.Task{
			ObjectID:       obj.ID,
			SourceTier:     obj.CurrentTier,
			TargetTier:     target,
			SourceLocation: obj.Location,
			TargetLocation: tier.ResolveLocation(target, o.provider).String(),
			TotalBytes:     obj.SizeBytes,
		}
		return o.store.CreateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	o.Wake()
	return task, nil
}

// Retry re-queues a failed task that still has retries left.
func (o *Orchestrator) Retry(ctx context.Context, taskID int64) (*store.Task, error) {
	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != store.StatusFailed {
		return nil, services.Wrap(services.ErrNotRetryable, "migration", "retry",
			fmt.Sprintf("task %d is %s, only failed tasks can be retried", taskID, task.Status), nil)
	}
	if task.RetryCount >= o.maxRetries {
		return nil, services.Wrap(services.ErrNotRetryable, "migration", "retry",
			fmt.Sprintf("task %d exhausted its %d retries", taskID, o.maxRetries), nil)
	}
	if err := o.store.RequeueTask(ctx, taskID); err != nil {
		return nil, err
	}
	o.Wake()
	return o.store.GetTask(ctx, taskID)
}

// GetStatus returns the persisted state of one task.
func (o *Orchestrator) GetStatus(ctx context.Context, taskID int64) (*store.Task, error) {
	return o.store.GetTask(ctx, taskID)
}

// MaxRetries exposes the retry budget for status surfaces.
func (o *Orchestrator) MaxRetries() int {
	return o.maxRetries
}
