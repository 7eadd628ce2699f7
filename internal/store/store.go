package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"strata/internal/config"
	"strata/internal/services"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

const busyRetryAttempts = 5

// Store wraps the SQLite database holding objects, access history,
// migration tasks, predictions, and consistency records.
type Store struct {
	db   *sql.DB
	path string

	locks sync.Map // object id -> *sync.Mutex
}

// Open initializes the database under cfg.Paths.DataDir and applies the
// schema. Callers own the returned store and must Close it.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrValidation, "store", "open", "configuration is required", nil)
	}
	dbPath := filepath.Join(cfg.Paths.DataDir, "strata.db")
	return OpenPath(ctx, dbPath)
}

// OpenPath initializes the database at an explicit path.
func OpenPath(ctx context.Context, dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "open", "database path is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "open", "create database directory", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "open", "open sqlite database", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	if err := s.execWithRetry(ctx, schemaSQL); err != nil {
		return services.Wrap(services.ErrTransient, "store", "init", "apply schema", err)
	}

	var current sql.NullInt64
	row := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`)
	if err := row.Scan(&current); err != nil {
		return services.Wrap(services.ErrTransient, "store", "init", "read schema version", err)
	}
	switch {
	case !current.Valid:
		if err := s.execWithRetry(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return services.Wrap(services.ErrTransient, "store", "init", "record schema version", err)
		}
	case current.Int64 > schemaVersion:
		return services.Wrap(services.ErrValidation, "store", "init",
			fmt.Sprintf("database schema version %d is newer than supported version %d", current.Int64, schemaVersion), nil)
	}
	return nil
}

// WithObjectLock serializes mutations to a single object. Migration
// execution and consistency repair for the same object must not overlap.
func (s *Store) WithObjectLock(objectID int64, fn func() error) error {
	value, _ := s.locks.LoadOrStore(objectID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}
		_, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Store) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return parsed, nil
}

func nullableTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timestamp(*t)
}

func scanNullableTimestamp(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	parsed, err := parseTimestamp(value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
