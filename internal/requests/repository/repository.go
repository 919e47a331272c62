// Package repository persists Request Records and their append-only step
// events in Postgres.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"prospect_intake_backend/internal/requests/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("request record not found")
	// ErrTerminalState is returned when a status update targets a record
	// already in a terminal state. Terminal states are absorbing.
	ErrTerminalState = errors.New("request record is in a terminal state")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a fresh record in the "received" state.
func (r *Repository) Create(ctx context.Context, whatsapp string) (domain.Record, error) {
	var rec domain.Record
	err := r.pool.QueryRow(ctx, `
		INSERT INTO form_requests (whatsapp, status)
		VALUES ($1, $2)
		RETURNING id, whatsapp, status, created_at, updated_at
	`, whatsapp, domain.StatusReceived).Scan(&rec.ID, &rec.Whatsapp, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return domain.Record{}, fmt.Errorf("create request record: %w", err)
	}
	return rec, nil
}

// AppendStep adds one immutable step event to the record's history.
// Steps are never updated or deleted; ordering is the bigserial seq.
func (r *Repository) AppendStep(ctx context.Context, requestID uuid.UUID, step domain.Step) error {
	var payload any
	if len(step.Payload) > 0 {
		payload = step.Payload
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO request_steps (request_id, kind, ok, message, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, requestID, step.Kind, step.OK, step.Message, payload)
	if err != nil {
		return fmt.Errorf("append step %s: %w", step.Kind, err)
	}
	return nil
}

// SetStatus moves the record to a new status. The update is guarded in SQL:
// a record already in a terminal state is left untouched and
// ErrTerminalState is returned, enforcing the absorbing-state invariant even
// across racing flows.
func (r *Repository) SetStatus(ctx context.Context, requestID uuid.UUID, to domain.Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE form_requests
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status <> ALL($3)
	`, requestID, to, domain.TerminalStatuses())
	if err != nil {
		return fmt.Errorf("set status %s: %w", to, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM form_requests WHERE id = $1)`, requestID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrTerminalState
	}
	return nil
}

// Transition appends a step and sets the status in one call. The step is
// written first so the audit trail survives even if the status update is
// rejected by the terminal-state guard.
func (r *Repository) Transition(ctx context.Context, requestID uuid.UUID, step domain.Step, to domain.Status) error {
	if err := r.AppendStep(ctx, requestID, step); err != nil {
		return err
	}
	return r.SetStatus(ctx, requestID, to)
}

// SetTaskID stores the external job identifier once kickoff succeeds.
func (r *Repository) SetTaskID(ctx context.Context, requestID uuid.UUID, taskID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE form_requests SET task_id = $2, updated_at = now() WHERE id = $1
	`, requestID, taskID)
	if err != nil {
		return fmt.Errorf("set task id: %w", err)
	}
	return nil
}

// SetTaskResult caches the raw task payload on the record for inspection.
func (r *Repository) SetTaskResult(ctx context.Context, requestID uuid.UUID, result json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE form_requests SET task_result = $2, updated_at = now() WHERE id = $1
	`, requestID, result)
	if err != nil {
		return fmt.Errorf("set task result: %w", err)
	}
	return nil
}

// SetMessages persists the final outbound message list and count.
func (r *Repository) SetMessages(ctx context.Context, requestID uuid.UUID, messages []string, usedFallback bool) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE form_requests
		SET messages = $2, message_count = $3, used_fallback = $4, updated_at = now()
		WHERE id = $1
	`, requestID, data, len(messages), usedFallback)
	if err != nil {
		return fmt.Errorf("set messages: %w", err)
	}
	return nil
}

// Get returns one record without its steps.
func (r *Repository) Get(ctx context.Context, requestID uuid.UUID) (domain.Record, error) {
	rec, err := r.scanRecord(r.pool.QueryRow(ctx, `
		SELECT id, whatsapp, status, task_id, task_result, messages, message_count, used_fallback, created_at, updated_at
		FROM form_requests
		WHERE id = $1
	`, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, ErrNotFound
	}
	return rec, err
}

// GetWithSteps returns one record with its full ordered step history.
func (r *Repository) GetWithSteps(ctx context.Context, requestID uuid.UUID) (domain.Record, error) {
	rec, err := r.Get(ctx, requestID)
	if err != nil {
		return domain.Record{}, err
	}

	steps, err := r.ListSteps(ctx, requestID)
	if err != nil {
		return domain.Record{}, err
	}
	rec.Steps = steps
	return rec, nil
}

// ListSteps returns the record's step events in append order.
func (r *Repository) ListSteps(ctx context.Context, requestID uuid.UUID) ([]domain.Step, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seq, kind, ok, message, payload, created_at
		FROM request_steps
		WHERE request_id = $1
		ORDER BY seq ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := make([]domain.Step, 0)
	for rows.Next() {
		var step domain.Step
		var payload []byte
		if err := rows.Scan(&step.Seq, &step.Kind, &step.OK, &step.Message, &payload, &step.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			step.Payload = json.RawMessage(payload)
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Status   domain.Status
	Whatsapp string
	TaskID   string
	Limit    int
	Offset   int
}

// List returns records matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]domain.Record, error) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Whatsapp != "" {
		args = append(args, filter.Whatsapp)
		conditions = append(conditions, fmt.Sprintf("whatsapp = $%d", len(args)))
	}
	if filter.TaskID != "" {
		args = append(args, filter.TaskID)
		conditions = append(conditions, fmt.Sprintf("task_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	limitClause := fmt.Sprintf("LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	offsetClause := fmt.Sprintf("OFFSET $%d", len(args))

	query := fmt.Sprintf(`
		SELECT id, whatsapp, status, task_id, task_result, messages, message_count, used_fallback, created_at, updated_at
		FROM form_requests
		%s
		ORDER BY created_at DESC
		%s %s
	`, where, limitClause, offsetClause)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.Record, 0)
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountByStatus aggregates record counts per status tag.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM form_requests GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanRecord(row rowScanner) (domain.Record, error) {
	var rec domain.Record
	var taskResult, messages []byte
	var updatedAt time.Time

	err := row.Scan(&rec.ID, &rec.Whatsapp, &rec.Status, &rec.TaskID, &taskResult,
		&messages, &rec.MessageCount, &rec.UsedFallback, &rec.CreatedAt, &updatedAt)
	if err != nil {
		return domain.Record{}, err
	}
	rec.UpdatedAt = updatedAt

	if len(taskResult) > 0 {
		rec.TaskResult = json.RawMessage(taskResult)
	}
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &rec.Messages); err != nil {
			return domain.Record{}, fmt.Errorf("decode messages: %w", err)
		}
	}

	return rec, nil
}
