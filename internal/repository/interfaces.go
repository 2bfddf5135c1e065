package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pawdose/medtrack-api/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotDue is returned when a guarded update targets an event whose
	// status is no longer due.
	ErrNotDue = errors.New("dose event is not due")
	// ErrConflict is returned when a write would land on an occupied
	// (medication_id, scheduled_time) slot.
	ErrConflict = errors.New("dose event instant already occupied")
)

// DoseEventRepository is the abstract store for materialized dose events.
//
// InsertIfAbsent must be upsert-or-ignore on the (medication_id,
// scheduled_time) unique key, never read-then-write: concurrent sweeps race
// to materialize the same occurrence and the constraint is the backstop.
type DoseEventRepository interface {
	InsertIfAbsent(ctx context.Context, event *model.DoseEvent) (bool, error)
	Create(ctx context.Context, event *model.DoseEvent) error
	Get(ctx context.Context, id uuid.UUID) (*model.DoseEvent, error)
	FindByMedicationAndTime(ctx context.Context, medicationID uuid.UUID, scheduledTime time.Time) (*model.DoseEvent, error)

	// FindNearestDue returns the unresolved due event closest in time to
	// the given instant, within the tolerance window.
	FindNearestDue(ctx context.Context, medicationID uuid.UUID, around time.Time, tolerance time.Duration) (*model.DoseEvent, error)

	// ListUpcoming returns due, not-yet-reminded events scheduled in
	// [from, to], joined with notification context.
	ListUpcoming(ctx context.Context, from, to time.Time) ([]*model.DueEventContext, error)
	// ListOverdue returns due, not-yet-overdue-notified events scheduled
	// before the cutoff, joined with notification context.
	ListOverdue(ctx context.Context, before time.Time) ([]*model.DueEventContext, error)
	// ListAgenda returns a user's due events scheduled in [from, to].
	ListAgenda(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*model.DueEventContext, error)

	// UpdateStatus transitions a due event to a terminal status. It fails
	// with ErrNotDue when the event has already been resolved.
	UpdateStatus(ctx context.Context, id uuid.UUID, to model.DoseStatus, resolutionRef *uuid.UUID) error
	// Reschedule advances a due event's scheduled time and re-arms both
	// notification thresholds. Fails with ErrNotDue on terminal events and
	// ErrConflict when the new instant is already occupied.
	Reschedule(ctx context.Context, id uuid.UUID, newTime time.Time) error

	// MarkReminded / MarkOverdueNotified flag a threshold crossing. They
	// report false when another sweep already claimed the event.
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ClearReminded(ctx context.Context, id uuid.UUID) error
	MarkOverdueNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ClearOverdueNotified(ctx context.Context, id uuid.UUID) error
}

// MedicationRepository is read access to medications and their schedules.
// The dose engine never mutates medications.
type MedicationRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Medication, error)
	ListActive(ctx context.Context) ([]*model.Medication, error)
}
