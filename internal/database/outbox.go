package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salonbook/internal/models"
)

const taskColumns = `id, task_type, event_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateTask(ctx context.Context, task *models.NotificationTask) error {
	query := `INSERT INTO notification_queue (task_type, event_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.EventID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now

	return nil
}

func (db *DB) GetTask(ctx context.Context, id int64) (*models.NotificationTask, error) {
	row := db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM notification_queue WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification task %d: %w", id, err)
	}
	return t, nil
}

// GetPendingTasks returns due pending/retry tasks, oldest first.
func (db *DB) GetPendingTasks(ctx context.Context, limit int) ([]models.NotificationTask, error) {
	query := `SELECT ` + taskColumns + `
              FROM notification_queue
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending notification tasks: %w", err)
	}
	return collectTasks(rows)
}

// UpdateTaskStatus moves a task to status. "retry" bumps retry_count;
// terminal statuses stamp processed_at.
func (db *DB) UpdateTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now().UTC()

	var lastErr *string
	if errMsg != "" {
		lastErr = &errMsg
	}
	if nextRetryAt != nil {
		utc := nextRetryAt.UTC()
		nextRetryAt = &utc
	}

	switch status {
	case models.TaskStatusRetry:
		query = `UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, lastErr, nextRetryAt, id}
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		query = `UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, lastErr, nextRetryAt, now, id}
	default:
		query = `UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, lastErr, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update notification task status: %w", err)
	}
	return nil
}

func (db *DB) GetFailedTasks(ctx context.Context) ([]models.NotificationTask, error) {
	query := `SELECT ` + taskColumns + ` FROM notification_queue WHERE status = 'failed' ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed notification tasks: %w", err)
	}
	return collectTasks(rows)
}

// RequeueFailed gives every failed task a fresh retry budget.
func (db *DB) RequeueFailed(ctx context.Context) (int64, error) {
	query := `UPDATE notification_queue
		SET status = ?, retry_count = 0, next_retry_at = NULL, processed_at = NULL
		WHERE status = ?`
	res, err := db.ExecContext(ctx, query, models.TaskStatusPending, models.TaskStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue notification tasks: %w", err)
	}
	return res.RowsAffected()
}

// CountByStatus reports the outbox size per status.
func (db *DB) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM notification_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count notification tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(s rowScanner) (*models.NotificationTask, error) {
	var t models.NotificationTask
	var lastErr sql.NullString
	var processedAt, nextRetryAt sql.NullTime
	err := s.Scan(
		&t.ID, &t.TaskType, &t.EventID, &t.Payload, &t.Status, &t.RetryCount, &lastErr, &t.CreatedAt, &processedAt, &nextRetryAt,
	)
	if err != nil {
		return nil, err
	}
	if lastErr.Valid {
		t.LastError = &lastErr.String
	}
	if processedAt.Valid {
		t.ProcessedAt = &processedAt.Time
	}
	if nextRetryAt.Valid {
		t.NextRetryAt = &nextRetryAt.Time
	}
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]models.NotificationTask, error) {
	defer rows.Close()

	var tasks []models.NotificationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
