package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/intake/internal/core/outbox"
	"github.com/example/intake/internal/ports/secondary"
)

// outboxTimeLayout is fixed width so stored times compare correctly as text.
const outboxTimeLayout = "2006-01-02 15:04:05.000000"

func formatOutboxTime(t time.Time) string {
	return t.UTC().Format(outboxTimeLayout)
}

// OutboxRepository implements secondary.OutboxRepository with SQLite.
type OutboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository creates a new SQLite outbox repository.
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

const outboxSelect = `SELECT id, kind, instruction_ref, payload, status, attempts, max_attempts,
	next_attempt_at, dedupe_key, last_error, created_at, updated_at FROM outbox_tasks`

// Enqueue persists a queued task unless a live task shares its dedupe key.
// The task must have ID pre-populated by the caller.
func (r *OutboxRepository) Enqueue(ctx context.Context, task *secondary.OutboxTask) (bool, error) {
	if task.ID == "" {
		return false, fmt.Errorf("outbox task ID must be pre-populated")
	}
	if task.MaxAttempts < 1 {
		task.MaxAttempts = 1
	}
	if task.NextAttemptAt.IsZero() {
		task.NextAttemptAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin enqueue: %w", err)
	}
	defer tx.Rollback()

	var dedupe sql.NullString
	if task.DedupeKey != "" {
		dedupe = sql.NullString{String: task.DedupeKey, Valid: true}

		var live int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM outbox_tasks WHERE dedupe_key = ? AND status IN (?, ?)",
			task.DedupeKey, outbox.StatusQueued, outbox.StatusSending,
		).Scan(&live)
		if err != nil {
			return false, fmt.Errorf("failed to check dedupe key: %w", err)
		}
		if live > 0 {
			return false, nil
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_tasks (id, kind, instruction_ref, payload, status, attempts, max_attempts, next_attempt_at, dedupe_key)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		task.ID, task.Kind, task.InstructionRef, string(task.Payload), outbox.StatusQueued,
		task.MaxAttempts, formatOutboxTime(task.NextAttemptAt), dedupe,
	)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue outbox task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit enqueue: %w", err)
	}

	task.Status = outbox.StatusQueued
	return true, nil
}

// ClaimDue marks due queued tasks as sending and returns them, oldest first.
// Each claim counts as an attempt.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*secondary.OutboxTask, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		outboxSelect+" WHERE status = ? AND next_attempt_at <= ? ORDER BY next_attempt_at, created_at LIMIT ?",
		outbox.StatusQueued, formatOutboxTime(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}
	tasks, err := scanOutboxTasks(rows)
	if err != nil {
		return nil, err
	}

	lockedAt := formatOutboxTime(now)
	for _, task := range tasks {
		_, err := tx.ExecContext(ctx,
			"UPDATE outbox_tasks SET status = ?, attempts = attempts + 1, locked_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			outbox.StatusSending, lockedAt, task.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to claim task %s: %w", task.ID, err)
		}
		task.Status = outbox.StatusSending
		task.Attempts++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return tasks, nil
}

// MarkSent records a successful attempt.
func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.finish(ctx, id,
		"UPDATE outbox_tasks SET status = ?, locked_at = NULL, last_error = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		outbox.StatusSent, id,
	)
}

// Fail records a failed attempt and either schedules a retry or fails the task.
func (r *OutboxRepository) Fail(ctx context.Context, id string, lastErr string, next *time.Time) error {
	if next == nil {
		return r.finish(ctx, id,
			"UPDATE outbox_tasks SET status = ?, locked_at = NULL, last_error = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			outbox.StatusFailed, lastErr, id,
		)
	}
	return r.finish(ctx, id,
		"UPDATE outbox_tasks SET status = ?, locked_at = NULL, last_error = ?, next_attempt_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		outbox.StatusQueued, lastErr, formatOutboxTime(*next), id,
	)
}

func (r *OutboxRepository) finish(ctx context.Context, id string, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update outbox task: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("outbox task %s: %w", id, secondary.ErrNotFound)
	}
	return nil
}

// RequeueStale returns tasks stuck in sending since before the cutoff to queued.
func (r *OutboxRepository) RequeueStale(ctx context.Context, before time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE outbox_tasks SET status = ?, locked_at = NULL, updated_at = CURRENT_TIMESTAMP WHERE status = ? AND locked_at < ?",
		outbox.StatusQueued, outbox.StatusSending, formatOutboxTime(before),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale tasks: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

// List retrieves tasks matching the given filters, newest first.
func (r *OutboxRepository) List(ctx context.Context, filters secondary.OutboxFilters) ([]*secondary.OutboxTask, error) {
	query := outboxSelect + " WHERE 1=1"
	args := []any{}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	if filters.InstructionRef != "" {
		query += " AND instruction_ref = ?"
		args = append(args, filters.InstructionRef)
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox tasks: %w", err)
	}
	return scanOutboxTasks(rows)
}

// scanOutboxTasks reads and closes rows.
func scanOutboxTasks(rows *sql.Rows) ([]*secondary.OutboxTask, error) {
	defer rows.Close()

	var tasks []*secondary.OutboxTask
	for rows.Next() {
		var (
			payload   string
			status    string
			nextAt    string
			dedupe    sql.NullString
			lastErr   sql.NullString
			createdAt time.Time
			updatedAt sql.NullTime
		)

		task := &secondary.OutboxTask{}
		err := rows.Scan(&task.ID, &task.Kind, &task.InstructionRef, &payload, &status, &task.Attempts,
			&task.MaxAttempts, &nextAt, &dedupe, &lastErr, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox task: %w", err)
		}

		task.Payload = []byte(payload)
		task.Status = outbox.Status(status)
		task.DedupeKey = dedupe.String
		task.LastError = lastErr.String
		if t, err := time.Parse(outboxTimeLayout, nextAt); err == nil {
			task.NextAttemptAt = t
		}
		task.CreatedAt = createdAt.Format(time.RFC3339)
		if updatedAt.Valid {
			task.UpdatedAt = updatedAt.Time.Format(time.RFC3339)
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox tasks: %w", err)
	}
	return tasks, nil
}

// Ensure OutboxRepository implements the interface
var _ secondary.OutboxRepository = (*OutboxRepository)(nil)
