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

const taskColumns = `id, object_id, source_tier, target_tier, source_location, target_location, status, progress_percent, total_bytes, retry_count, last_error, created_at, updated_at, started_at, completed_at`

func scanTask(scanner rowScanner) (*Task, error) {
	var (
		task        Task
		sourceTier  string
		targetTier  string
		status      string
		lastError   sql.NullString
		createdAt   string
		updatedAt   string
		startedAt   sql.NullString
		completedAt sql.NullString
	)
	if err := scanner.Scan(
		&task.ID,
		&task.ObjectID,
		&sourceTier,
		&targetTier,
		&task.SourceLocation,
		&task.TargetLocation,
		&status,
		&task.ProgressPercent,
		&task.TotalBytes,
		&task.RetryCount,
		&lastError,
		&createdAt,
		&updatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if task.SourceTier, err = tier.Parse(sourceTier); err != nil {
		return nil, fmt.Errorf("task %d: %w", task.ID, err)
	}
	if task.TargetTier, err = tier.Parse(targetTier); err != nil {
		return nil, fmt.Errorf("task %d: %w", task.ID, err)
	}
	parsedStatus, ok := ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("task %d: unknown status %q", task.ID, status)
	}
	task.Status = parsedStatus
	task.LastError = lastError.String
	if task.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	if task.StartedAt, err = scanNullableTimestamp(startedAt); err != nil {
		return nil, err
	}
	if task.CompletedAt, err = scanNullableTimestamp(completedAt); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask enqueues a pending migration task.
func (s *Store) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return services.Wrap(services.ErrValidation, "store", "create-task", "task is required", nil)
	}
	if !task.SourceTier.IsValid() || !task.TargetTier.IsValid() {
		return services.Wrap(services.ErrValidation, "store", "create-task", "source and target tiers are required", nil)
	}
	if task.SourceTier == task.TargetTier {
		return services.Wrap(services.ErrValidation, "store", "create-task",
			fmt.Sprintf("object already resides in tier %s", task.SourceTier), nil)
	}

	now := time.Now().UTC()
	task.Status = StatusPending
	task.CreatedAt = now
	task.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO migration_tasks (object_id, source_tier, target_tier, source_location, target_location, status, progress_percent, total_bytes, retry_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, ?, 0, ?, ?)`,
			task.ObjectID, string(task.SourceTier), string(task.TargetTier),
			task.SourceLocation, task.TargetLocation, string(StatusPending),
			task.TotalBytes, timestamp(task.CreatedAt), timestamp(task.UpdatedAt),
		)
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "create-task", "insert task", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "create-task", "read insert id", err)
		}
		task.ID = id
		return nil
	})
}

// GetTask loads a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM migration_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-task",
			fmt.Sprintf("task %d not found", id), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "get-task", "query task", err)
	}
	return task, nil
}

// ActiveTaskForObject returns the pending or in-progress task for an object,
// or nil if none exists. Submitting a duplicate migration returns this task
// instead of queuing another.
func (s *Store) ActiveTaskForObject(ctx context.Context, objectID int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM migration_tasks
		 WHERE object_id = ? AND status IN (?, ?)
		 ORDER BY created_at ASC, id ASC LIMIT 1`,
		objectID, string(StatusPending), string(StatusInProgress))
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "active-task", "query active task", err)
	}
	return task, nil
}

// ClaimNextPending atomically claims the oldest pending task and marks it
// in progress. Returns nil when the queue is empty.
func (s *Store) ClaimNextPending(ctx context.Context) (*Task, error) {
	var claimed *Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM migration_tasks
			 WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1`,
			string(StatusPending))
		task, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "claim-task", "query pending task", err)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE migration_tasks SET status = ?, started_at = ?, updated_at = ? WHERE id = ?`,
			string(StatusInProgress), timestamp(now), timestamp(now), task.ID); err != nil {
			return services.Wrap(services.ErrTransient, "store", "claim-task", "mark task in progress", err)
		}
		task.Status = StatusInProgress
		task.StartedAt = &now
		task.UpdatedAt = now
		claimed = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// UpdateTaskProgress records transfer progress as a 0-100 percentage.
func (s *Store) UpdateTaskProgress(ctx context.Context, id int64, percent float64) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return s.execWithRetry(ctx,
		`UPDATE migration_tasks SET progress_percent = ?, updated_at = ? WHERE id = ?`,
		percent, timestamp(time.Now()), id)
}

// CompleteTask marks a task completed with full progress.
func (s *Store) CompleteTask(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	return s.execWithRetry(ctx,
		`UPDATE migration_tasks SET status = ?, progress_percent = 100, last_error = NULL, completed_at = ?, updated_at = ? WHERE id = ?`,
		string(StatusCompleted), timestamp(now), timestamp(now), id)
}

// FailTask marks a task failed and records the error message.
func (s *Store) FailTask(ctx context.Context, id int64, message string) error {
	now := time.Now().UTC()
	return s.execWithRetry(ctx,
		`UPDATE migration_tasks SET status = ?, last_error = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		string(StatusFailed), message, timestamp(now), timestamp(now), id)
}

// RequeueTask returns a failed or in-progress task to pending with the retry
// counter bumped. Progress resets; transfers restart from the beginning.
func (s *Store) RequeueTask(ctx context.Context, id int64) error {
	return s.execWithRetry(ctx,
		`UPDATE migration_tasks SET status = ?, progress_percent = 0, retry_count = retry_count + 1, started_at = NULL, completed_at = NULL, updated_at = ? WHERE id = ?`,
		string(StatusPending), timestamp(time.Now()), id)
}

// ReturnTask puts one in-progress task back to pending without consuming a
// retry. Used when a worker shuts down between chunks.
func (s *Store) ReturnTask(ctx context.Context, id int64) error {
	return s.execWithRetry(ctx,
		`UPDATE migration_tasks SET status = ?, progress_percent = 0, started_at = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		string(StatusPending), timestamp(time.Now()), id, string(StatusInProgress))
}

// ResetStalledTasks returns any in-progress tasks to pending. Run at daemon
// startup to recover work interrupted by a crash. Does not consume a retry.
func (s *Store) ResetStalledTasks(ctx context.Context) (int64, error) {
	var affected int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE migration_tasks SET status = ?, progress_percent = 0, started_at = NULL, updated_at = ? WHERE status = ?`,
			string(StatusPending), timestamp(time.Now()), string(StatusInProgress))
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "reset-stalled", "reset tasks", err)
		}
		affected, err = result.RowsAffected()
		if err != nil {
			return services.Wrap(services.ErrTransient, "store", "reset-stalled", "read rows affected", err)
		}
		return nil
	})
	return affected, err
}

// ListTasks returns tasks filtered by status. An empty filter returns all
// tasks in submission order.
func (s *Store) ListTasks(ctx context.Context, statuses ...TaskStatus) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM migration_tasks`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (`
		for i, status := range statuses {
			if i > 0 {
				query += `, `
			}
			query += `?`
			args = append(args, string(status))
		}
		query += `)`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "list-tasks", "query tasks", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "store", "list-tasks", "scan task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "list-tasks", "iterate tasks", err)
	}
	return tasks, nil
}

// TasksForObject returns the full migration history for one object, most
// recent first.
func (s *Store) TasksForObject(ctx context.Context, objectID int64) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM migration_tasks WHERE object_id = ? ORDER BY created_at DESC, id DESC`,
		objectID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "task-history", "query tasks", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "store", "task-history", "scan task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "task-history", "iterate tasks", err)
	}
	return tasks, nil
}

// Summary aggregates task counts across lifecycle states.
func (s *Store) Summary(ctx context.Context) (*QueueSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM migration_tasks GROUP BY status`)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "summary", "query counts", err)
	}
	defer rows.Close()

	summary := &QueueSummary{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, services.Wrap(services.ErrTransient, "store", "summary", "scan count", err)
		}
		summary.Total += count
		switch TaskStatus(status) {
		case StatusPending:
			summary.Pending = count
		case StatusInProgress:
			summary.InProgress = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "summary", "iterate counts", err)
	}
	return summary, nil
}
