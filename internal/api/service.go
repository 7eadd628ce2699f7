// Package api is the service layer shared by the HTTP handlers and the CLI.
// It composes the store, scoring engine, predictor, and orchestrator behind
// one façade so both surfaces expose identical semantics.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"strata/internal/config"
	"strata/internal/logging"
	"strata/internal/migration"
	"strata/internal/notifications"
	"strata/internal/placement"
	"strata/internal/predictor"
	"strata/internal/services"
	"strata/internal/store"
	"strata/internal/tier"
)

// Service exposes every operation the daemon and CLI surfaces need.
type Service struct {
	store        *store.Store
	engine       *placement.Engine
	predictor    *predictor.Predictor
	orchestrator *migration.Orchestrator
	notifier     notifications.Service
	provider     string
	logger       *slog.Logger
}

// NewService assembles the service layer. The orchestrator may be idle (not
// started); submissions then wait in the queue until a daemon drains them.
func NewService(
	st *store.Store,
	cfg *config.Config,
	engine *placement.Engine,
	pred *predictor.Predictor,
	orch *migration.Orchestrator,
	notifier notifications.Service,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:        st,
		engine:       engine,
		predictor:    pred,
		orchestrator: orch,
		notifier:     notifier,
		provider:     cfg.Migration.DefaultProvider,
		logger:       logging.NewComponentLogger(logger, "api"),
	}
}

// Status summarizes the system for the status surfaces.
type Status struct {
	Objects          int
	ObjectsByTier    map[tier.Tier]int
	TotalMonthlyCost float64
	Queue            *store.QueueSummary
	PredictorTrained bool
	LastTraining     *predictor.TrainingReport
}

// Status aggregates object, queue, and predictor state.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	objects, err := s.store.ListObjects(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := s.store.Summary(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Objects:          len(objects),
		ObjectsByTier:    make(map[tier.Tier]int, 3),
		Queue:            summary,
		PredictorTrained: s.predictor.Trained(),
		LastTraining:     s.predictor.LastReport(),
	}
	for _, obj := range objects {
		status.ObjectsByTier[obj.CurrentTier]++
		status.TotalMonthlyCost += obj.MonthlyCost
	}
	return status, nil
}

// CreateObjectParams carries the user-supplied fields for a new object.
type CreateObjectParams struct {
	Name        string
	SizeBytes   int64
	Tier        string
	ContentType string
}

// CreateObject registers an object in the requested tier with its resolved
// location and monthly cost.
func (s *Service) CreateObject(ctx context.Context, params CreateObjectParams) (*store.DataObject, error) {
	placed, err := tier.Parse(params.Tier)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "api", "create-object", "invalid tier", err)
	}
	if params.SizeBytes <= 0 {
		return nil, services.Wrap(services.ErrValidation, "api", "create-object", "size must be positive", nil)
	}

	obj := &store.DataObject{
		Name:        strings.TrimSpace(params.Name),
		SizeBytes:   params.SizeBytes,
		CurrentTier: placed,
		Location:    tier.ResolveLocation(placed, s.provider).String(),
		ContentType: strings.TrimSpace(params.ContentType),
	}
	obj.MonthlyCost = s.engine.Pricing().MonthlyCost(placed, obj.SizeGB())
	if err := s.store.CreateObject(ctx, obj); err != nil {
		return nil, err
	}
	s.logger.Info("object registered",
		logging.Int64(logging.FieldObjectID, obj.ID),
		logging.String("name", obj.Name),
		logging.String(logging.FieldTier, string(placed)))
	return obj, nil
}

// ListObjects returns all objects.
func (s *Service) ListObjects(ctx context.Context) ([]*store.DataObject, error) {
	return s.store.ListObjects(ctx)
}

// GetObject loads one object by id.
func (s *Service) GetObject(ctx context.Context, id int64) (*store.DataObject, error) {
	return s.store.GetObject(ctx, id)
}

// GetObjectByName loads one object by name.
func (s *Service) GetObjectByName(ctx context.Context, name string) (*store.DataObject, error) {
	return s.store.GetObjectByName(ctx, name)
}

// RecordAccess logs one access event against an object.
func (s *Service) RecordAccess(ctx context.Context, objectID int64, kind store.AccessKind, latencyMS float64) error {
	return s.store.RecordAccess(ctx, &store.AccessEvent{
		ObjectID:  objectID,
		Kind:      kind,
		LatencyMS: latencyMS,
	})
}

// Evaluate scores one object's placement.
func (s *Service) Evaluate(ctx context.Context, objectID int64) (*placement.Recommendation, error) {
	return s.engine.Evaluate(ctx, objectID)
}

// EvaluateAll scores every object.
func (s *Service) EvaluateAll(ctx context.Context) ([]*placement.Recommendation, error) {
	objects, err := s.store.ListObjects(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(objects))
	for _, obj := range objects {
		ids = append(ids, obj.ID)
	}
	return s.engine.BatchEvaluate(ctx, ids)
}

// Predict classifies one object with the trained model.
func (s *Service) Predict(ctx context.Context, objectID int64) (*store.Prediction, error) {
	prediction, err := s.predictor.Predict(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if obj, getErr := s.store.GetObject(ctx, objectID); getErr == nil {
		if notifyErr := s.notifier.NotifyPredictionComplete(ctx, obj.Name, prediction.PredictedTier,
			prediction.Confidence(prediction.PredictedTier)); notifyErr != nil {
			s.logger.Warn("prediction notification", logging.Error(notifyErr))
		}
	}
	return prediction, nil
}

// Train fits a fresh model on the current fleet.
func (s *Service) Train(ctx context.Context) (*predictor.TrainingReport, error) {
	report, err := s.predictor.Train(ctx)
	if err != nil {
		return nil, err
	}
	if notifyErr := s.notifier.NotifyTrainingComplete(ctx, report.ModelVersion, report.TestAccuracy); notifyErr != nil {
		s.logger.Warn("training notification", logging.Error(notifyErr))
	}
	return report, nil
}

// SubmitMigration queues a migration to the target tier.
func (s *Service) SubmitMigration(ctx context.Context, objectID int64, target tier.Tier) (*store.Task, error) {
	return s.orchestrator.Submit(ctx, objectID, target)
}

// GetTask returns one migration task.
func (s *Service) GetTask(ctx context.Context, taskID int64) (*store.Task, error) {
	return s.orchestrator.GetStatus(ctx, taskID)
}

// ListTasks returns tasks, optionally filtered by status.
func (s *Service) ListTasks(ctx context.Context, statuses ...store.TaskStatus) ([]*store.Task, error) {
	return s.store.ListTasks(ctx, statuses...)
}

// RetryTask re-queues a failed migration with retries left.
func (s *Service) RetryTask(ctx context.Context, taskID int64) (*store.Task, error) {
	return s.orchestrator.Retry(ctx, taskID)
}

// MigrationHistory returns the most recent tasks for one object.
func (s *Service) MigrationHistory(ctx context.Context, objectID int64, limit int) ([]*store.Task, error) {
	tasks, err := s.store.TasksForObject(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// SweepResult reports one auto-optimize pass.
type SweepResult struct {
	Evaluated int
	Submitted []*store.Task
}

// Sweep batch-evaluates the fleet and submits migrations wherever the
// decision rule fires. Manual submissions are unaffected by the rule.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	recommendations, err := s.EvaluateAll(ctx)
	if err != nil {
		return nil, err
	}
	result := &SweepResult{Evaluated: len(recommendations)}
	for _, rec := range recommendations {
		if !rec.ShouldMigrate {
			continue
		}
		task, err := s.orchestrator.Submit(ctx, rec.ObjectID, rec.RecommendedTier)
		if err != nil {
			s.logger.Warn("sweep submission failed",
				logging.Int64(logging.FieldObjectID, rec.ObjectID),
				logging.Error(err))
			continue
		}
		result.Submitted = append(result.Submitted, task)
	}
	return result, nil
}

// seedArchetype describes one demo object shape.
type seedArchetype struct {
	name      string
	sizeBytes int64
	placed    tier.Tier
	accesses  int
	window    time.Duration
}

// Seed populates demo objects with synthetic access patterns so evaluation,
// training, and migration can be exercised end to end.
func (s *Service) Seed(ctx context.Context) ([]*store.DataObject, error) {
	archetypes := []seedArchetype{
		{"hot/session-cache.db", 2 << 30, tier.Hot, 3600, 24 * time.Hour},
		{"hot/api-index.bin", 1 << 30, tier.Hot, 3100, 20 * time.Hour},
		{"hot/stale-scratch.tmp", 4 << 30, tier.Hot, 0, 0},
		{"warm/reports-2026q2.parquet", 8 << 30, tier.Warm, 420, 5 * 24 * time.Hour},
		{"warm/media-thumbnails.tar", 3 << 30, tier.Warm, 380, 6 * 24 * time.Hour},
		{"warm/idle-export.csv", 6 << 30, tier.Warm, 2, 20 * 24 * time.Hour},
		{"cold/backup-2025.tar.zst", 40 << 30, tier.Cold, 0, 0},
		{"cold/audit-logs-2024.tar", 25 << 30, tier.Cold, 1, 25 * 24 * time.Hour},
		{"cold/raw-footage.mkv", 60 << 30, tier.Cold, 0, 0},
		{"cold/suddenly-hot.mp4", 5 << 30, tier.Cold, 3200, 18 * time.Hour},
	}

	created := make([]*store.DataObject, 0, len(archetypes))
	for _, arch := range archetypes {
		obj, err := s.CreateObject(ctx, CreateObjectParams{
			Name:        arch.name,
			SizeBytes:   arch.sizeBytes,
			Tier:        string(arch.placed),
			ContentType: "application/octet-stream",
		})
		if err != nil {
			return created, services.Wrap(services.ErrValidation, "api", "seed",
				fmt.Sprintf("seed object %q", arch.name), err)
		}
		if arch.accesses > 0 {
			now := time.Now().UTC()
			step := arch.window / time.Duration(arch.accesses)
			for i := 0; i < arch.accesses; i++ {
				event := &store.AccessEvent{
					ObjectID:   obj.ID,
					Kind:       store.AccessRead,
					LatencyMS:  float64(5 + i%20),
					AccessedAt: now.Add(-time.Duration(i) * step),
				}
				if err := s.store.RecordAccess(ctx, event); err != nil {
					return created, err
				}
			}
		}
		created = append(created, obj)
	}
	s.logger.Info("seeded demo objects", logging.Int("count", len(created)))
	return created, nil
}
