package migration_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"strata/internal/config"
	"strata/internal/consistency"
	"strata/internal/migration"
	"strata/internal/notifications"
	"strata/internal/services"
	"strata/internal/store"
	"strata/internal/testsupport"
	"strata/internal/tier"
)

func newOrchestrator(t *testing.T, cfg *config.Config, st *store.Store, transfer migration.Transfer) *migration.Orchestrator {
	t.Helper()
	verifier := consistency.NewVerifier(st, cfg, nil)
	notifier := notifications.NewService(cfg)
	return migration.NewOrchestrator(st, cfg, verifier, notifier, transfer, nil)
}

func startOrchestrator(t *testing.T, o *migration.Orchestrator) {
	t.Helper()
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start orchestrator: %v", err)
	}
	t.Cleanup(o.Stop)
}

func waitForStatus(t *testing.T, st *store.Store, taskID int64, want store.TaskStatus) *store.Task {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		task, err := st.GetTask(context.Background(), taskID)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if task.Status == want {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	task, _ := st.GetTask(context.Background(), taskID)
	t.Fatalf("task %d never reached %s, last state %+v", taskID, want, task)
	return nil
}

func TestSubmitValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	o := newOrchestrator(t, cfg, st, nil)
	ctx := context.Background()

	if _, err := o.Submit(ctx, 42, tier.Cold); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing object: got %v", err)
	}

	obj := testsupport.SeedObject(t, st, "v.bin", 1<<20, tier.Warm)
	if _, err := o.Submit(ctx, obj.ID, tier.Tier("glacial")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("bad tier: got %v", err)
	}
	if _, err := o.Submit(ctx, obj.ID, tier.Warm); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("same tier: got %v", err)
	}
}

func TestSubmitDuplicateReturnsExistingTask(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	o := newOrchestrator(t, cfg, st, nil)
	ctx := context.Background()

	obj := testsupport.SeedObject(t, st, "dup.bin", 1<<20, tier.Hot)

	first, err := o.Submit(ctx, obj.ID, tier.Cold)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := o.Submit(ctx, obj.ID, tier.Cold)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("duplicate submit created task %d, want existing %d", second.ID, first.ID)
	}
}

func TestMigrationEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	o := newOrchestrator(t, cfg, st, nil)
	ctx := context.Background()

	obj := testsupport.SeedObject(t, st, "big-archive.tar", 1<<30, tier.Hot)

	startOrchestrator(t, o)
	task, err := o.Submit(ctx, obj.ID, tier.Cold)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	done := waitForStatus(t, st, task.ID, store.StatusCompleted)
	if done.ProgressPercent != 100 || done.CompletedAt == nil {
		t.Fatalf("unexpected completed task: %+v", done)
	}

	moved, err := st.GetObject(ctx, obj.ID)
	if err != nil {
		t.Fatalf("get object: %v", err)
	}
	if moved.CurrentTier != tier.Cold {
		t.Fatalf("object tier = %s, want cold", moved.CurrentTier)
	}
	wantLocation := tier.ResolveLocation(tier.Cold, cfg.Migration.DefaultProvider).String()
	if moved.Location != wantLocation {
		t.Fatalf("location = %q, want %q", moved.Location, wantLocation)
	}
	wantCost := cfg.Tiers.Cold.CostPerGB * moved.SizeGB()
	if diff := moved.MonthlyCost - wantCost; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("monthly cost = %v, want %v", moved.MonthlyCost, wantCost)
	}

	record, err := st.ConsistencyRecordFor(ctx, obj.ID)
	if err != nil {
		t.Fatalf("consistency record: %v", err)
	}
	if record == nil || len(record.Replicas) < cfg.Consistency.MinReplicas {
		t.Fatalf("replica floor violated after migration: %+v", record)
	}
}

func TestTransientFailureRetriesThenTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	transfer := migration.NewSimulatedTransfer(float64(cfg.Migration.ThroughputMBps))
	transfer.FailChunk = func(chunk int) error {
		return fmt.Errorf("link reset by peer")
	}
	o := newOrchestrator(t, cfg, st, transfer)
	ctx := context.Background()

	obj := testsupport.SeedObject(t, st, "doomed.bin", 1<<20, tier.Hot)

	startOrchestrator(t, o)
	task, err := o.Submit(ctx, obj.ID, tier.Cold)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	var final *store.Task
	for time.Now().Before(deadline) {
		current, err := st.GetTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if current.Status == store.StatusFailed && current.RetryCount >= cfg.Migration.MaxRetries {
			final = current
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if final == nil {
		t.Fatal("task never exhausted its retries")
	}
	if final.RetryCount != cfg.Migration.MaxRetries {
		t.Fatalf("retry count = %d, want %d", final.RetryCount, cfg.Migration.MaxRetries)
	}
	if final.LastError == "" {
		t.Fatal("terminal task should preserve the failure cause")
	}

	// Object placement must be untouched.
	unchanged, err := st.GetObject(ctx, obj.ID)
	if err != nil {
		t.Fatalf("get object: %v", err)
	}
	if unchanged.CurrentTier != tier.Hot {
		t.Fatalf("failed migration moved the object to %s", unchanged.CurrentTier)
	}
}

func TestFlakyTransferEventuallySucceeds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	var attempts atomic.Int32
	transfer := migration.NewSimulatedTransfer(float64(cfg.Migration.ThroughputMBps))
	transfer.FailChunk = func(chunk int) error {
		if attempts.Add(1) <= 2 {
			return fmt.Errorf("transient stall")
		}
		return nil
	}
	o := newOrchestrator(t, cfg, st, transfer)

	obj := testsupport.SeedObject(t, st, "flaky.bin", 1<<20, tier.Hot)

	startOrchestrator(t, o)
	task, err := o.Submit(context.Background(), obj.ID, tier.Warm)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	done := waitForStatus(t, st, task.ID, store.StatusCompleted)
	if done.RetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", done.RetryCount)
	}
}

func TestTimeoutConsumesRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Migration.TimeoutSeconds = 1
	cfg.Migration.ThroughputMBps = 1
	cfg.Migration.ChunkSizeMB = 1
	st := testsupport.MustOpenStore(t, cfg)
	o := newOrchestrator(t, cfg, st, nil)
	ctx := context.Background()

	// 10 MB at 1 MB/s cannot finish inside a 1s timeout.
	obj := testsupport.SeedObject(t, st, "slow.bin", 10<<20, tier.Hot)

	startOrchestrator(t, o)
	task, err := o.Submit(ctx, obj.ID, tier.Cold)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		current, err := st.GetTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if current.RetryCount >= 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timeout never consumed a retry")
}

func TestRetryRejectsNonFailedTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	o := newOrchestrator(t, cfg, st, nil)
	ctx := context.Background()

	obj := testsupport.SeedObject(t, st, "pending.bin", 1<<20, tier.Hot)
	task, err := o.Submit(ctx, obj.ID, tier.Cold)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := o.Retry(ctx, task.ID); !errors.Is(err, services.ErrNotRetryable) {
		t.Fatalf("retry of pending task: got %v", err)
	}
}

type countingTransfer struct {
	mu     sync.Mutex
	order  []int64
	active atomic.Int32
	peak   atomic.Int32
	delay  time.Duration
}

func (c *countingTransfer) Run(ctx context.Context, req migration.TransferRequest, progress func(float64)) error {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	c.mu.Lock()
	c.order = append(c.order, req.Object.ID)
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.delay):
	}
	progress(100)
	return nil
}

func TestConcurrencyBoundAndFIFO(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Migration.MaxConcurrent = 2
	st := testsupport.MustOpenStore(t, cfg)

	transfer := &countingTransfer{delay: 30 * time.Millisecond}
	o := newOrchestrator(t, cfg, st, transfer)
	ctx := context.Background()

	var tasks []*store.Task
	var objects []*store.DataObject
	for i := 0; i < 6; i++ {
		obj := testsupport.SeedObject(t, st, fmt.Sprintf("bulk-%d.bin", i), 1<<20, tier.Hot)
		objects = append(objects, obj)
	}
	for _, obj := range objects {
		task, err := o.Submit(ctx, obj.ID, tier.Cold)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		tasks = append(tasks, task)
	}

	startOrchestrator(t, o)
	for _, task := range tasks {
		waitForStatus(t, st, task.ID, store.StatusCompleted)
	}

	if peak := transfer.peak.Load(); peak > 2 {
		t.Fatalf("observed %d concurrent transfers, bound is 2", peak)
	}

	transfer.mu.Lock()
	defer transfer.mu.Unlock()
	if len(transfer.order) != 6 {
		t.Fatalf("ran %d transfers, want 6", len(transfer.order))
	}
	// With two lanes, the first two claims must be the two oldest tasks.
	firstTwo := map[int64]bool{transfer.order[0]: true, transfer.order[1]: true}
	if !firstTwo[objects[0].ID] || !firstTwo[objects[1].ID] {
		t.Fatalf("claims not FIFO: %v", transfer.order)
	}
}

func TestStopRequeuesInFlightWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Migration.ThroughputMBps = 1
	cfg.Migration.ChunkSizeMB = 1
	cfg.Migration.TimeoutSeconds = 600
	st := testsupport.MustOpenStore(t, cfg)
	o := newOrchestrator(t, cfg, st, nil)
	ctx := context.Background()

	// Long enough that shutdown lands mid-transfer.
	obj := testsupport.SeedObject(t, st, "inflight.bin", 50<<20, tier.Hot)

	startOrchestrator(t, o)
	task, err := o.Submit(ctx, obj.ID, tier.Cold)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForStatus(t, st, task.ID, store.StatusInProgress)

	o.Stop()

	returned, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if returned.Status != store.StatusPending {
		t.Fatalf("status after shutdown = %s, want pending", returned.Status)
	}
	if returned.RetryCount != 0 {
		t.Fatalf("shutdown consumed a retry: %+v", returned)
	}
}
