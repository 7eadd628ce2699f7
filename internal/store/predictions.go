package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"strata/internal/services"
	"strata/internal/tier"
)

const predictionColumns = `id, object_id, predicted_tier, confidence_hot, confidence_warm, confidence_cold, model_version, reasoning, predicted_at`

func scanPrediction(scanner rowScanner) (*Prediction, error) {
	var (
		pred          Prediction
		predictedTier string
		predictedAt   string
	)
	if err := scanner.Scan(
		&pred.ID,
		&pred.ObjectID,
		&predictedTier,
		&pred.ConfidenceHot,
		&pred.ConfidenceWarm,
		&pred.ConfidenceCold,
		&pred.ModelVersion,
		&pred.Reasoning,
		&predictedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if pred.PredictedTier, err = tier.Parse(predictedTier); err != nil {
		return nil, fmt.Errorf("prediction %d: %w", pred.ID, err)
	}
	if pred.PredictedAt, err = parseTimestamp(predictedAt); err != nil {
		return nil, err
	}
	return &pred, nil
}

// SavePrediction persists a tier prediction.
func (s *Store) SavePrediction(ctx context.Context, pred *Prediction) error {
	if pred == nil {
		return services.Wrap(services.ErrValidation, "store", "save-prediction", "prediction is required", nil)
	}
	if !pred.PredictedTier.IsValid() {
		return services.Wrap(services.ErrValidation, "store", "save-prediction",
			fmt.Sprintf("unknown tier %q", pred.PredictedTier), nil)
	}
	if pred.PredictedAt.IsZero() {
		pred.PredictedAt = time.Now().UTC()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO tier_predictions (object_id, predicted_tier, confidence_hot, confidence_warm, confidence_cold, model_version, reasoning, predicted_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			pred.ObjectID, string(pred.PredictedTier),
			pred.ConfidenceHot, pred.ConfidenceWarm, pred.ConfidenceCold,
			pred.ModelVersion, pred.Reasoning, timestamp(pred.PredictedAt))
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "save-prediction", "insert prediction", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "save-prediction", "read insert id", err)
		}
		pred.ID = id
		return nil
	})
}

// LatestPrediction returns the most recent prediction for an object, or nil
// if none has been made.
func (s *Store) LatestPrediction(ctx context.Context, objectID int64) (*Prediction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+predictionColumns+` FROM tier_predictions
		 WHERE object_id = ? ORDER BY predicted_at DESC, id DESC LIMIT 1`, objectID)
	pred, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "latest-prediction", "query prediction", err)
	}
	return pred, nil
}
