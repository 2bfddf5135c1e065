package model

import (
	"time"

	"github.com/google/uuid"
)

// Medication is read-only from the dose engine's perspective: CRUD lives in
// the external route layer. The engine reads the schedule and the active
// flag, and writes dose events only.
type Medication struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PetID     uuid.UUID `db:"pet_id" json:"pet_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Dosage    string    `db:"dosage" json:"dosage,omitempty"`
	Active    bool      `db:"active" json:"active"`
	Timezone  string    `db:"timezone" json:"timezone"`
	Schedule  Schedule  `json:"schedule"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Location resolves the owner's timezone, falling back to UTC when the
// stored name is empty or unknown.
func (m *Medication) Location() *time.Location {
	if m.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
