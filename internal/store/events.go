package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"strata/internal/services"
)

// RecordAccess appends an access event and bumps the owning object's counter
// in the same transaction.
func (s *Store) RecordAccess(ctx context.Context, event *AccessEvent) error {
	if event == nil {
		return services.Wrap(services.ErrValidation, "store", "record-access", "event is required", nil)
	}
	if event.Kind != AccessRead && event.Kind != AccessWrite {
		return services.Wrap(services.ErrValidation, "store", "record-access",
			fmt.Sprintf("unknown access kind %q", event.Kind), nil)
	}
	if event.AccessedAt.IsZero() {
		event.AccessedAt = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE data_objects SET access_count = access_count + 1, updated_at = ? WHERE id = ?`,
			timestamp(event.AccessedAt), event.ObjectID)
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "record-access", "bump access count", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "record-access", "read rows affected", err)
		}
		if affected == 0 {
			return services.Wrap(services.ErrNotFound, "store", "record-access",
				fmt.Sprintf("object %d not found", event.ObjectID), nil)
		}

		inserted, err := tx.ExecContext(ctx,
			`INSERT INTO access_events (object_id, kind, latency_ms, accessed_at) VALUES (?, ?, ?, ?)`,
			event.ObjectID, string(event.Kind), event.LatencyMS, timestamp(event.AccessedAt))
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "record-access", "insert event", err)
		}
		id, err := inserted.LastInsertId()
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "record-access", "read insert id", err)
		}
		event.ID = id
		return nil
	})
}

// AccessStats summarizes access history for one object inside a window.
type AccessStats struct {
	ObjectID    int64
	WindowStart time.Time
	Count       int64
	LastAccess  *time.Time
}

// AccessStatsSince counts accesses at or after the cutoff and reports the
// most recent access regardless of window.
func (s *Store) AccessStatsSince(ctx context.Context, objectID int64, cutoff time.Time) (*AccessStats, error) {
	stats := &AccessStats{ObjectID: objectID, WindowStart: cutoff.UTC()}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM access_events WHERE object_id = ? AND accessed_at >= ?`,
		objectID, timestamp(cutoff))
	if err := row.Scan(&stats.Count); err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "access-stats", "count events", err)
	}

	var last sql.NullString
	row = s.db.QueryRowContext(ctx,
		`SELECT MAX(accessed_at) FROM access_events WHERE object_id = ?`, objectID)
	if err := row.Scan(&last); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrTransient, "store", "access-stats", "query last access", err)
	}
	lastAccess, err := scanNullableTimestamp(last)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "access-stats", "parse last access", err)
	}
	stats.LastAccess = lastAccess
	return stats, nil
}

// ListAccessEvents returns events for one object, most recent first, capped
// at limit. A limit of zero or less means no cap.
func (s *Store) ListAccessEvents(ctx context.Context, objectID int64, limit int) ([]*AccessEvent, error) {
	query := `SELECT id, object_id, kind, latency_ms, accessed_at FROM access_events WHERE object_id = ? ORDER BY accessed_at DESC, id DESC`
	args := []any{objectID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "list-events", "query events", err)
	}
	defer rows.Close()

	var events []*AccessEvent
	for rows.Next() {
		var (
			event      AccessEvent
			kind       string
			accessedAt string
		)
		if err := rows.Scan(&event.ID, &event.ObjectID, &kind, &event.LatencyMS, &accessedAt); err != nil {
			return nil, services.Wrap(services.ErrTransient, "store", "list-events", "scan event", err)
		}
		event.Kind = AccessKind(kind)
		if event.AccessedAt, err = parseTimestamp(accessedAt); err != nil {
			return nil, services.Wrap(services.ErrTransient, "store", "list-events", "parse event time", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "list-events", "iterate events", err)
	}
	return events, nil
}
