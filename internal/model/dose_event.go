package model

import (
	"time"

	"github.com/google/uuid"
)

type DoseStatus string

const (
	DoseStatusDue     DoseStatus = "due"
	DoseStatusTaken   DoseStatus = "taken"
	DoseStatusSkipped DoseStatus = "skipped"
)

// Terminal reports whether the status admits no further transitions.
func (s DoseStatus) Terminal() bool {
	return s == DoseStatusTaken || s == DoseStatusSkipped
}

// CanTransitionTo encodes the dose-event state machine:
// due -> taken | skipped, nothing out of a terminal state. A snooze is a
// due -> due self-transition and is handled by CanSnooze.
func (s DoseStatus) CanTransitionTo(to DoseStatus) bool {
	if s != DoseStatusDue {
		return false
	}
	return to == DoseStatusTaken || to == DoseStatusSkipped
}

// DoseEvent is one materialized administration instant for a medication.
// (MedicationID, ScheduledTime) is unique; the storage layer enforces it
// with a constraint so racing materializers cannot duplicate an instant.
type DoseEvent struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	MedicationID  uuid.UUID  `db:"medication_id" json:"medication_id"`
	ScheduledTime time.Time  `db:"scheduled_time" json:"scheduled_time"`
	Status        DoseStatus `db:"status" json:"status"`
	// ResolutionRef points at the medication-log entry that resolved this
	// event. Set together with the transition to taken.
	ResolutionRef *uuid.UUID `db:"resolution_ref" json:"resolution_ref,omitempty"`
	// RemindedAt and OverdueNotifiedAt record threshold crossings so each
	// fires at most once per event. A snooze clears both.
	RemindedAt        *time.Time `db:"reminded_at" json:"reminded_at,omitempty"`
	OverdueNotifiedAt *time.Time `db:"overdue_notified_at" json:"overdue_notified_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// CanSnooze reports whether the event may have its scheduled time advanced.
func (e *DoseEvent) CanSnooze() bool {
	return e.Status == DoseStatusDue
}

// DueEventContext is a dose event joined with the medication, pet and user
// rows a notification needs. Produced by the store's due queries; never
// written back.
type DueEventContext struct {
	DoseEvent
	MedicationName string    `db:"medication_name" json:"medication_name"`
	Dosage         string    `db:"dosage" json:"dosage,omitempty"`
	PetName        string    `db:"pet_name" json:"pet_name"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	UserEmail      string    `db:"user_email" json:"-"`
	NotifyChannel  string    `db:"notify_channel" json:"-"`
	Timezone       string    `db:"timezone" json:"timezone"`
}
