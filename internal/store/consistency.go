package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"strata/internal/services"
)

// SaveConsistencyRecord upserts checksum and replica bookkeeping for an
// object. Replicas are stored as a JSON array of location strings.
func (s *Store) SaveConsistencyRecord(ctx context.Context, record *ConsistencyRecord) error {
	if record == nil {
		return services.Wrap(services.ErrValidation, "store", "save-consistency", "record is required", nil)
	}
	if record.Checksum == "" {
		return services.Wrap(services.ErrValidation, "store", "save-consistency", "checksum is required", nil)
	}
	if record.VerifiedAt.IsZero() {
		record.VerifiedAt = time.Now().UTC()
	}
	replicas := record.Replicas
	if replicas == nil {
		replicas = []string{}
	}
	encoded, err := json.Marshal(replicas)
	if err != nil {
		return services.Wrap(services.ErrTransient, "store", "save-consistency", "encode replicas", err)
	}

	return s.execWithRetry(ctx,
		`INSERT INTO consistency_records (object_id, checksum, replicas, min_replicas, verified_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(object_id) DO UPDATE SET
		     checksum = excluded.checksum,
		     replicas = excluded.replicas,
		     min_replicas = excluded.min_replicas,
		     verified_at = excluded.verified_at`,
		record.ObjectID, record.Checksum, string(encoded), record.MinReplicas, timestamp(record.VerifiedAt))
}

// ConsistencyRecordFor returns the record for an object, or nil if the object
// has never been verified.
func (s *Store) ConsistencyRecordFor(ctx context.Context, objectID int64) (*ConsistencyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT object_id, checksum, replicas, min_replicas, verified_at
		 FROM consistency_records WHERE object_id = ?`, objectID)

	var (
		record     ConsistencyRecord
		replicas   string
		verifiedAt string
	)
	err := row.Scan(&record.ObjectID, &record.Checksum, &replicas, &record.MinReplicas, &verifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "get-consistency", "query record", err)
	}
	if err := json.Unmarshal([]byte(replicas), &record.Replicas); err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "get-consistency", "decode replicas", err)
	}
	if record.VerifiedAt, err = parseTimestamp(verifiedAt); err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "get-consistency", "parse verified time", err)
	}
	return &record, nil
}
