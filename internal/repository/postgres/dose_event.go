package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/internal/repository"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

const dueContextColumns = `
	e.id, e.medication_id, e.scheduled_time, e.status, e.resolution_ref,
	e.reminded_at, e.overdue_notified_at, e.created_at, e.updated_at,
	m.name AS medication_name, m.dosage, m.timezone,
	p.name AS pet_name,
	u.id AS user_id, u.email AS user_email, u.notify_channel
`

const dueContextJoins = `
	FROM dose_events e
	JOIN medications m ON m.id = e.medication_id
	JOIN pets p ON p.id = m.pet_id
	JOIN users u ON u.id = p.user_id
`

type doseEventRepository struct {
	db *sqlx.DB
}

func NewDoseEventRepository(db *sqlx.DB) repository.DoseEventRepository {
	return &doseEventRepository{db: db}
}

// InsertIfAbsent relies on the unique (medication_id, scheduled_time)
// constraint: concurrent materializers racing on the same occurrence
// resolve at the database, not with a read-then-write check.
func (r *doseEventRepository) InsertIfAbsent(ctx context.Context, event *model.DoseEvent) (bool, error) {
	query := `
		INSERT INTO dose_events (
			id, medication_id, scheduled_time, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (medication_id, scheduled_time) DO NOTHING
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.MedicationID,
		event.ScheduledTime,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert dose event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *doseEventRepository) Create(ctx context.Context, event *model.DoseEvent) error {
	query := `
		INSERT INTO dose_events (
			id, medication_id, scheduled_time, status, resolution_ref,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.MedicationID,
		event.ScheduledTime,
		event.Status,
		event.ResolutionRef,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create dose event: %w", err)
	}
	return nil
}

func (r *doseEventRepository) Get(ctx context.Context, id uuid.UUID) (*model.DoseEvent, error) {
	query := `
		SELECT id, medication_id, scheduled_time, status, resolution_ref,
			   reminded_at, overdue_notified_at, created_at, updated_at
		FROM dose_events
		WHERE id = $1
	`
	var event model.DoseEvent
	err := r.db.GetContext(ctx, &event, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dose event: %w", err)
	}
	return &event, nil
}

func (r *doseEventRepository) FindByMedicationAndTime(ctx context.Context, medicationID uuid.UUID, scheduledTime time.Time) (*model.DoseEvent, error) {
	query := `
		SELECT id, medication_id, scheduled_time, status, resolution_ref,
			   reminded_at, overdue_notified_at, created_at, updated_at
		FROM dose_events
		WHERE medication_id = $1 AND scheduled_time = $2
	`
	var event model.DoseEvent
	err := r.db.GetContext(ctx, &event, query, medicationID, scheduledTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find dose event: %w", err)
	}
	return &event, nil
}

func (r *doseEventRepository) FindNearestDue(ctx context.Context, medicationID uuid.UUID, around time.Time, tolerance time.Duration) (*model.DoseEvent, error) {
	query := `
		SELECT id, medication_id, scheduled_time, status, resolution_ref,
			   reminded_at, overdue_notified_at, created_at, updated_at
		FROM dose_events
		WHERE medication_id = $1
		  AND status = 'due'
		  AND scheduled_time BETWEEN $2 AND $3
		ORDER BY ABS(EXTRACT(EPOCH FROM (scheduled_time - $4::timestamptz))) ASC
		LIMIT 1
	`
	var event model.DoseEvent
	err := r.db.GetContext(ctx, &event, query,
		medicationID,
		around.Add(-tolerance),
		around.Add(tolerance),
		around,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find nearest due event: %w", err)
	}
	return &event, nil
}

func (r *doseEventRepository) ListUpcoming(ctx context.Context, from, to time.Time) ([]*model.DueEventContext, error) {
	query := `SELECT ` + dueContextColumns + dueContextJoins + `
		WHERE e.status = 'due'
		  AND e.reminded_at IS NULL
		  AND e.scheduled_time BETWEEN $1 AND $2
		ORDER BY e.scheduled_time ASC
	`
	var events []*model.DueEventContext
	if err := r.db.SelectContext(ctx, &events, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to list upcoming dose events: %w", err)
	}
	return events, nil
}

func (r *doseEventRepository) ListOverdue(ctx context.Context, before time.Time) ([]*model.DueEventContext, error) {
	query := `SELECT ` + dueContextColumns + dueContextJoins + `
		WHERE e.status = 'due'
		  AND e.overdue_notified_at IS NULL
		  AND e.scheduled_time < $1
		ORDER BY e.scheduled_time ASC
	`
	var events []*model.DueEventContext
	if err := r.db.SelectContext(ctx, &events, query, before); err != nil {
		return nil, fmt.Errorf("failed to list overdue dose events: %w", err)
	}
	return events, nil
}

func (r *doseEventRepository) ListAgenda(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*model.DueEventContext, error) {
	query := `SELECT ` + dueContextColumns + dueContextJoins + `
		WHERE u.id = $1
		  AND e.status = 'due'
		  AND e.scheduled_time BETWEEN $2 AND $3
		ORDER BY e.scheduled_time ASC
	`
	var events []*model.DueEventContext
	if err := r.db.SelectContext(ctx, &events, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list agenda: %w", err)
	}
	return events, nil
}

// UpdateStatus is guarded on the current status being due, so a resolved
// event can never be overwritten by a late caller.
func (r *doseEventRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to model.DoseStatus, resolutionRef *uuid.UUID) error {
	query := `
		UPDATE dose_events
		SET status = $2, resolution_ref = $3, updated_at = $4
		WHERE id = $1 AND status = 'due'
	`
	result, err := r.db.ExecContext(ctx, query, id, to, resolutionRef, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update dose event status: %w", err)
	}
	return r.checkGuarded(ctx, result, id)
}

func (r *doseEventRepository) Reschedule(ctx context.Context, id uuid.UUID, newTime time.Time) error {
	query := `
		UPDATE dose_events
		SET scheduled_time = $2, reminded_at = NULL, overdue_notified_at = NULL, updated_at = $3
		WHERE id = $1 AND status = 'due'
	`
	result, err := r.db.ExecContext(ctx, query, id, newTime, time.Now())
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to reschedule dose event: %w", err)
	}
	return r.checkGuarded(ctx, result, id)
}

func (r *doseEventRepository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE dose_events
		SET reminded_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'due' AND reminded_at IS NULL
	`
	return r.flag(ctx, query, id, at)
}

func (r *doseEventRepository) ClearReminded(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE dose_events SET reminded_at = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now()); err != nil {
		return fmt.Errorf("failed to clear reminded flag: %w", err)
	}
	return nil
}

func (r *doseEventRepository) MarkOverdueNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE dose_events
		SET overdue_notified_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'due' AND overdue_notified_at IS NULL
	`
	return r.flag(ctx, query, id, at)
}

func (r *doseEventRepository) ClearOverdueNotified(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE dose_events SET overdue_notified_at = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now()); err != nil {
		return fmt.Errorf("failed to clear overdue flag: %w", err)
	}
	return nil
}

func (r *doseEventRepository) flag(ctx context.Context, query string, id uuid.UUID, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to flag dose event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// checkGuarded distinguishes a missing row from one whose status guard
// rejected the update.
func (r *doseEventRepository) checkGuarded(ctx context.Context, result sql.Result, id uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var status model.DoseStatus
	err = r.db.GetContext(ctx, &status, `SELECT status FROM dose_events WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check dose event status: %w", err)
	}
	return repository.ErrNotDue
}
