// Package predictor trains a tier classifier from recorded access patterns
// and predicts future placement for individual objects.
package predictor

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"strata/internal/access"
	"strata/internal/config"
	"strata/internal/logging"
	"strata/internal/services"
	"strata/internal/store"
	"strata/internal/tier"
)

// TrainingReport summarizes one training run.
type TrainingReport struct {
	ModelVersion  string
	TrainedAt     time.Time
	TrainSamples  int
	TestSamples   int
	TrainAccuracy float64
	TestAccuracy  float64
}

// Predictor owns the classifier lifecycle. Training runs are serialized;
// Predict reads the current model without blocking trainers.
type Predictor struct {
	store        *store.Store
	model        *access.Model
	minSamples   int
	testFraction float64
	logger       *slog.Logger

	trainMu  sync.Mutex
	current  atomic.Pointer[model]
	versions atomic.Int64
}

// New builds a predictor from configuration.
func New(st *store.Store, cfg *config.Config, logger *slog.Logger) *Predictor {
	return &Predictor{
		store:        st,
		model:        access.NewModel(st),
		minSamples:   cfg.Predictor.MinSamples,
		testFraction: cfg.Predictor.TestFraction,
		logger:       logging.NewComponentLogger(logger, "predictor"),
	}
}

// Trained reports whether a model is available for prediction.
func (p *Predictor) Trained() bool {
	return p.current.Load() != nil
}

// LastReport returns the report of the current model, or nil before the
// first successful training run.
func (p *Predictor) LastReport() *TrainingReport {
	m := p.current.Load()
	if m == nil {
		return nil
	}
	return &TrainingReport{
		ModelVersion:  m.version,
		TrainedAt:     m.trainedAt,
		TrainSamples:  m.trainSamples,
		TestSamples:   m.testSamples,
		TrainAccuracy: m.trainAccuracy,
		TestAccuracy:  m.testAccuracy,
	}
}

// Train fits a fresh model on all stored objects, labeling each with the
// access heuristic applied retrospectively. The previous model keeps serving
// predictions until the new one is swapped in.
func (p *Predictor) Train(ctx context.Context) (*TrainingReport, error) {
	p.trainMu.Lock()
	defer p.trainMu.Unlock()

	objects, err := p.store.ListObjects(ctx)
	if err != nil {
		return nil, err
	}
	if len(objects) < p.minSamples {
		return nil, services.Wrap(services.ErrInsufficientData, "predictor", "train",
			fmt.Sprintf("need at least %d objects to train, have %d", p.minSamples, len(objects)), nil)
	}

	now := time.Now().UTC()
	samples := make([]sample, 0, len(objects))
	for _, obj := range objects {
		metrics, err := p.model.MetricsFor(ctx, obj.ID)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample{
			features: featuresFor(obj, metrics, now),
			label:    access.Classify(metrics),
		})
	}

	train, test := splitSamples(objects, samples, p.testFraction)
	if len(train) == 0 {
		train, test = samples, nil
	}

	version := fmt.Sprintf("v%d", p.versions.Add(1))
	fitted := fit(train, version, now)
	fitted.trainAccuracy = fitted.accuracy(train)
	fitted.testAccuracy = fitted.accuracy(test)
	fitted.testSamples = len(test)

	p.current.Store(fitted)
	p.logger.Info("model trained",
		logging.String("model_version", version),
		logging.Int("train_samples", len(train)),
		logging.Int("test_samples", len(test)),
		logging.Float64("train_accuracy", fitted.trainAccuracy),
		logging.Float64("test_accuracy", fitted.testAccuracy))

	report := p.LastReport()
	return report, nil
}

// splitSamples deterministically assigns each object to train or test by
// hashing its name, so repeated runs over the same data produce the same
// split.
func splitSamples(objects []*store.DataObject, samples []sample, testFraction float64) (train, test []sample) {
	if testFraction <= 0 || testFraction >= 1 {
		return samples, nil
	}
	bound := uint32(testFraction * math.MaxUint32)
	for i, obj := range objects {
		h := fnv.New32a()
		h.Write([]byte(obj.Name))
		if h.Sum32() <= bound {
			test = append(test, samples[i])
		} else {
			train = append(train, samples[i])
		}
	}
	return train, test
}

// Predict classifies one object with the current model and persists the
// outcome.
func (p *Predictor) Predict(ctx context.Context, objectID int64) (*store.Prediction, error) {
	m := p.current.Load()
	if m == nil {
		return nil, services.Wrap(services.ErrModelNotTrained, "predictor", "predict",
			"no trained model available, run training first", nil)
	}

	obj, err := p.store.GetObject(ctx, objectID)
	if err != nil {
		return nil, err
	}
	metrics, err := p.model.MetricsFor(ctx, objectID)
	if err != nil {
		return nil, err
	}

	features := featuresFor(obj, metrics, time.Now().UTC())
	predicted, confidences := m.predict(features)

	prediction := &store.Prediction{
		ObjectID:       obj.ID,
		PredictedTier:  predicted,
		ConfidenceHot:  confidences[tier.Hot],
		ConfidenceWarm: confidences[tier.Warm],
		ConfidenceCold: confidences[tier.Cold],
		ModelVersion:   m.version,
		Reasoning:      m.reasoning(predicted, confidences, features),
	}
	if err := p.store.SavePrediction(ctx, prediction); err != nil {
		return nil, err
	}
	p.logger.Debug("prediction saved",
		logging.Int64(logging.FieldObjectID, obj.ID),
		logging.String(logging.FieldTier, string(predicted)),
		logging.String("model_version", m.version))
	return prediction, nil
}

// reasoning names the feature that dominated the decision: the one whose
// standardized magnitude is largest.
func (m *model) reasoning(predicted tier.Tier, confidences map[tier.Tier]float64, features featureVector) string {
	x := m.standardize(features)
	dominant := 0
	for i := 1; i < featureCount; i++ {
		if math.Abs(x[i]) > math.Abs(x[dominant]) {
			dominant = i
		}
	}
	return fmt.Sprintf("predicted %s with %.1f%% confidence, driven mostly by %s (%.2f)",
		predicted, confidences[predicted]*100, featureNames[dominant], features[dominant])
}
