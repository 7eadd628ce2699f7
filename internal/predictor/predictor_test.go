package predictor_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"strata/internal/predictor"
	"strata/internal/services"
	"strata/internal/store"
	"strata/internal/testsupport"
	"strata/internal/tier"
)

func seedFleet(t *testing.T, st *store.Store) (coldIDs, warmIDs []int64) {
	t.Helper()
	for i := 0; i < 7; i++ {
		obj := testsupport.SeedObject(t, st, fmt.Sprintf("cold-%d.tar", i), int64(i+1)<<30, tier.Cold)
		coldIDs = append(coldIDs, obj.ID)
	}
	for i := 0; i < 3; i++ {
		obj := testsupport.SeedObject(t, st, fmt.Sprintf("warm-%d.db", i), 1<<30, tier.Warm)
		testsupport.SeedAccess(t, st, obj.ID, 350, 100*time.Hour)
		warmIDs = append(warmIDs, obj.ID)
	}
	return coldIDs, warmIDs
}

func TestTrainRequiresMinimumSamples(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	p := predictor.New(st, cfg, nil)

	testsupport.SeedObject(t, st, "lonely.bin", 1<<20, tier.Cold)

	_, err := p.Train(context.Background())
	if !errors.Is(err, services.ErrInsufficientData) {
		t.Fatalf("expected insufficient-data error, got %v", err)
	}
}

func TestPredictRequiresTrainedModel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	p := predictor.New(st, cfg, nil)

	obj := testsupport.SeedObject(t, st, "x.bin", 1<<20, tier.Cold)
	_, err := p.Predict(context.Background(), obj.ID)
	if !errors.Is(err, services.ErrModelNotTrained) {
		t.Fatalf("expected model-not-trained error, got %v", err)
	}
}

func TestTrainAndPredict(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	p := predictor.New(st, cfg, nil)
	ctx := context.Background()

	coldIDs, warmIDs := seedFleet(t, st)

	report, err := p.Train(ctx)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if report.ModelVersion != "v1" {
		t.Fatalf("version = %s, want v1", report.ModelVersion)
	}
	if report.TrainSamples+report.TestSamples != 10 {
		t.Fatalf("samples = %d+%d, want 10 total", report.TrainSamples, report.TestSamples)
	}
	if report.TrainAccuracy < 0 || report.TrainAccuracy > 1 {
		t.Fatalf("train accuracy = %v", report.TrainAccuracy)
	}
	if !p.Trained() {
		t.Fatal("predictor should report trained")
	}

	pred, err := p.Predict(ctx, coldIDs[0])
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.PredictedTier != tier.Cold {
		t.Fatalf("idle object predicted %s, want cold (%s)", pred.PredictedTier, pred.Reasoning)
	}
	sum := pred.ConfidenceHot + pred.ConfidenceWarm + pred.ConfidenceCold
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("confidences sum to %v, want 1", sum)
	}
	if pred.ModelVersion != "v1" || pred.Reasoning == "" {
		t.Fatalf("unexpected prediction: %+v", pred)
	}

	warmPred, err := p.Predict(ctx, warmIDs[0])
	if err != nil {
		t.Fatalf("predict warm: %v", err)
	}
	if warmPred.PredictedTier != tier.Warm {
		t.Fatalf("active object predicted %s, want warm (%s)", warmPred.PredictedTier, warmPred.Reasoning)
	}

	// Predictions are persisted.
	latest, err := st.LatestPrediction(ctx, warmIDs[0])
	if err != nil {
		t.Fatalf("latest prediction: %v", err)
	}
	if latest == nil || latest.PredictedTier != tier.Warm {
		t.Fatalf("prediction not persisted: %+v", latest)
	}
}

func TestRetrainBumpsVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	p := predictor.New(st, cfg, nil)
	ctx := context.Background()

	seedFleet(t, st)

	if _, err := p.Train(ctx); err != nil {
		t.Fatalf("first train: %v", err)
	}
	report, err := p.Train(ctx)
	if err != nil {
		t.Fatalf("second train: %v", err)
	}
	if report.ModelVersion != "v2" {
		t.Fatalf("version = %s, want v2", report.ModelVersion)
	}
}

func TestTrainingIsDeterministic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	p := predictor.New(st, cfg, nil)
	ctx := context.Background()

	coldIDs, _ := seedFleet(t, st)

	if _, err := p.Train(ctx); err != nil {
		t.Fatalf("train: %v", err)
	}
	first, err := p.Predict(ctx, coldIDs[1])
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	if _, err := p.Train(ctx); err != nil {
		t.Fatalf("retrain: %v", err)
	}
	second, err := p.Predict(ctx, coldIDs[1])
	if err != nil {
		t.Fatalf("predict again: %v", err)
	}

	if first.PredictedTier != second.PredictedTier {
		t.Fatalf("retrain on identical data changed prediction: %s vs %s",
			first.PredictedTier, second.PredictedTier)
	}
	if math.Abs(first.ConfidenceCold-second.ConfidenceCold) > 1e-3 {
		t.Fatalf("confidence drifted: %v vs %v", first.ConfidenceCold, second.ConfidenceCold)
	}
}
