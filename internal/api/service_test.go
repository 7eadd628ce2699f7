package api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"strata/internal/api"
	"strata/internal/config"
	"strata/internal/consistency"
	"strata/internal/migration"
	"strata/internal/notifications"
	"strata/internal/placement"
	"strata/internal/predictor"
	"strata/internal/services"
	"strata/internal/store"
	"strata/internal/testsupport"
	"strata/internal/tier"
)

func newService(t *testing.T, cfg *config.Config, st *store.Store) *api.Service {
	t.Helper()
	engine := placement.NewEngine(st, cfg, nil)
	pred := predictor.New(st, cfg, nil)
	verifier := consistency.NewVerifier(st, cfg, nil)
	notifier := notifications.NewService(cfg)
	orch := migration.NewOrchestrator(st, cfg, verifier, notifier, nil, nil)
	return api.NewService(st, cfg, engine, pred, orch, notifier, nil)
}

func TestCreateObjectResolvesPlacement(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)

	obj, err := svc.CreateObject(context.Background(), api.CreateObjectParams{
		Name:        "db/users.sqlite",
		SizeBytes:   10 << 30,
		Tier:        "Hot",
		ContentType: "application/vnd.sqlite3",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if obj.CurrentTier != tier.Hot {
		t.Fatalf("tier = %s", obj.CurrentTier)
	}
	if obj.Location != tier.ResolveLocation(tier.Hot, cfg.Migration.DefaultProvider).String() {
		t.Fatalf("location = %q", obj.Location)
	}
	if obj.MonthlyCost != cfg.Tiers.Hot.CostPerGB*10 {
		t.Fatalf("monthly cost = %v", obj.MonthlyCost)
	}
}

func TestCreateObjectValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	if _, err := svc.CreateObject(ctx, api.CreateObjectParams{Name: "x", SizeBytes: 1, Tier: "plasma"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("bad tier: %v", err)
	}
	if _, err := svc.CreateObject(ctx, api.CreateObjectParams{Name: "x", SizeBytes: 0, Tier: "hot"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("zero size: %v", err)
	}
}

func TestStatusAggregates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	testsupport.SeedObject(t, st, "a.bin", 1<<30, tier.Hot)
	testsupport.SeedObject(t, st, "b.bin", 1<<30, tier.Cold)
	testsupport.SeedObject(t, st, "c.bin", 1<<30, tier.Cold)

	status, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Objects != 3 {
		t.Fatalf("objects = %d", status.Objects)
	}
	if status.ObjectsByTier[tier.Cold] != 2 || status.ObjectsByTier[tier.Hot] != 1 {
		t.Fatalf("tier counts: %+v", status.ObjectsByTier)
	}
	if status.PredictorTrained {
		t.Fatal("predictor should start untrained")
	}
	if status.Queue.Total != 0 {
		t.Fatalf("queue should be empty: %+v", status.Queue)
	}
}

func TestRecordAccessThroughService(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	obj := testsupport.SeedObject(t, st, "touched.bin", 1<<20, tier.Warm)
	if err := svc.RecordAccess(ctx, obj.ID, store.AccessRead, 12); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.RecordAccess(ctx, obj.ID, store.AccessKind("peek"), 1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("bad kind: %v", err)
	}

	loaded, err := svc.GetObject(ctx, obj.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.AccessCount != 1 {
		t.Fatalf("access count = %d", loaded.AccessCount)
	}
}

func TestSweepSubmitsOnlyQualifyingObjects(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	// Idle in hot with real size: migrates. Busy in hot: stays.
	idle := testsupport.SeedObject(t, st, "idle.tar", 4<<30, tier.Hot)
	busy := testsupport.SeedObject(t, st, "busy.db", 1<<30, tier.Hot)
	testsupport.SeedAccess(t, st, busy.ID, 3500, 12*time.Hour)

	result, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Evaluated != 2 {
		t.Fatalf("evaluated = %d", result.Evaluated)
	}
	if len(result.Submitted) != 1 || result.Submitted[0].ObjectID != idle.ID {
		t.Fatalf("unexpected submissions: %+v", result.Submitted)
	}

	// A second pass finds the active task and does not duplicate it.
	again, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(again.Submitted) != 1 || again.Submitted[0].ID != result.Submitted[0].ID {
		t.Fatalf("sweep duplicated a task: %+v", again.Submitted)
	}

	tasks, err := svc.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("task count = %d, want 1", len(tasks))
	}
}

func TestMigrationHistoryLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	obj := testsupport.SeedObject(t, st, "hist.bin", 1<<20, tier.Hot)
	for i := 0; i < 3; i++ {
		task, err := svc.SubmitMigration(ctx, obj.ID, tier.Cold)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if err := st.CompleteTask(ctx, task.ID); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	history, err := svc.MigrationHistory(ctx, obj.ID, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].ID < history[1].ID {
		t.Fatalf("history not newest-first: %d before %d", history[0].ID, history[1].ID)
	}
}
