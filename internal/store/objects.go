package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"strata/internal/services"
	"strata/internal/tier"
)

const objectColumns = `id, name, size_bytes, current_tier, location, access_count, monthly_cost, content_type, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(scanner rowScanner) (*DataObject, error) {
	var (
		obj         DataObject
		tierName    string
		createdAt   string
		updatedAt   string
		contentType sql.NullString
	)
	if err := scanner.Scan(
		&obj.ID,
		&obj.Name,
		&obj.SizeBytes,
		&tierName,
		&obj.Location,
		&obj.AccessCount,
		&obj.MonthlyCost,
		&contentType,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	parsedTier, err := tier.Parse(tierName)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", obj.ID, err)
	}
	obj.CurrentTier = parsedTier
	obj.ContentType = contentType.String
	if obj.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if obj.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &obj, nil
}

// CreateObject registers a new data object. Name must be unique.
func (s *Store) CreateObject(ctx context.Context, obj *DataObject) error {
	if obj == nil {
		return services.Wrap(services.ErrValidation, "store", "create-object", "object is required", nil)
	}
	if strings.TrimSpace(obj.Name) == "" {
		return services.Wrap(services.ErrValidation, "store", "create-object", "object name is required", nil)
	}
	if obj.SizeBytes < 0 {
		return services.Wrap(services.ErrValidation, "store", "create-object", "object size must not be negative", nil)
	}
	if !obj.CurrentTier.IsValid() {
		return services.Wrap(services.ErrValidation, "store", "create-object",
			fmt.Sprintf("unknown tier %q", obj.CurrentTier), nil)
	}

	now := time.Now().UTC()
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = now
	}
	obj.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO data_objects (name, size_bytes, current_tier, location, access_count, monthly_cost, content_type, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			obj.Name, obj.SizeBytes, string(obj.CurrentTier), obj.Location,
			obj.AccessCount, obj.MonthlyCost, obj.ContentType,
			timestamp(obj.CreatedAt), timestamp(obj.UpdatedAt),
		)
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "create-object", "insert object", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "create-object", "read insert id", err)
		}
		obj.ID = id
		return nil
	})
}

// GetObject loads a single object by id.
func (s *Store) GetObject(ctx context.Context, id int64) (*DataObject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+objectColumns+` FROM data_objects WHERE id = ?`, id)
	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-object",
			fmt.Sprintf("object %d not found", id), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "get-object", "query object", err)
	}
	return obj, nil
}

// GetObjectByName loads a single object by its unique name.
func (s *Store) GetObjectByName(ctx context.Context, name string) (*DataObject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+objectColumns+` FROM data_objects WHERE name = ?`, name)
	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-object",
			fmt.Sprintf("object %q not found", name), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "get-object", "query object", err)
	}
	return obj, nil
}

// ListObjects returns all objects ordered by id.
func (s *Store) ListObjects(ctx context.Context) ([]*DataObject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+objectColumns+` FROM data_objects ORDER BY id ASC`)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "list-objects", "query objects", err)
	}
	defer rows.Close()

	var objects []*DataObject
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "store", "list-objects", "scan object", err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "list-objects", "iterate objects", err)
	}
	return objects, nil
}

// ListObjectsByTier returns all objects currently placed in the given tier.
func (s *Store) ListObjectsByTier(ctx context.Context, t tier.Tier) ([]*DataObject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+objectColumns+` FROM data_objects WHERE current_tier = ? ORDER BY id ASC`, string(t))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "list-objects", "query objects by tier", err)
	}
	defer rows.Close()

	var objects []*DataObject
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "store", "list-objects", "scan object", err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "list-objects", "iterate objects", err)
	}
	return objects, nil
}

// UpdateObjectPlacement moves an object to a new tier, location, and monthly
// cost in one write. Called on migration completion.
func (s *Store) UpdateObjectPlacement(ctx context.Context, id int64, newTier tier.Tier, location string, monthlyCost float64) error {
	if !newTier.IsValid() {
		return services.Wrap(services.ErrValidation, "store", "update-placement",
			fmt.Sprintf("unknown tier %q", newTier), nil)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE data_objects SET current_tier = ?, location = ?, monthly_cost = ?, updated_at = ? WHERE id = ?`,
			string(newTier), location, monthlyCost, timestamp(time.Now()), id)
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "update-placement", "update object", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "update-placement", "read rows affected", err)
		}
		if affected == 0 {
			return services.Wrap(services.ErrNotFound, "store", "update-placement",
				fmt.Sprintf("object %d not found", id), nil)
		}
		return nil
	})
}

// DeleteObject removes an object and, via cascade, its events, tasks,
// predictions, and consistency record.
func (s *Store) DeleteObject(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM data_objects WHERE id = ?`, id)
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "delete-object", "delete object", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "delete-object", "read rows affected", err)
		}
		if affected == 0 {
			return services.Wrap(services.ErrNotFound, "store", "delete-object",
				fmt.Sprintf("object %d not found", id), nil)
		}
		return nil
	})
}
