// Package memory provides in-memory implementations of the store
// interfaces. They mirror the postgres guards (status checks, the unique
// (medication_id, scheduled_time) key) closely enough that the engine's
// behavior can be tested without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/internal/repository"
)

type instantKey struct {
	medicationID uuid.UUID
	scheduledAt  int64
}

type DoseEventRepository struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*model.DoseEvent
	byInstant map[instantKey]uuid.UUID

	// Context rows for the joined queries, keyed by medication.
	contexts map[uuid.UUID]NotifyContext
}

// NotifyContext is the slice of medication/pet/user data the joined due
// queries attach to each event.
type NotifyContext struct {
	MedicationName string
	Dosage         string
	PetName        string
	UserID         uuid.UUID
	UserEmail      string
	NotifyChannel  string
	Timezone       string
}

func NewDoseEventRepository() *DoseEventRepository {
	return &DoseEventRepository{
		byID:      make(map[uuid.UUID]*model.DoseEvent),
		byInstant: make(map[instantKey]uuid.UUID),
		contexts:  make(map[uuid.UUID]NotifyContext),
	}
}

// SetContext registers the join context for a medication's events.
func (r *DoseEventRepository) SetContext(medicationID uuid.UUID, ctx NotifyContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[medicationID] = ctx
}

func key(medicationID uuid.UUID, t time.Time) instantKey {
	return instantKey{medicationID: medicationID, scheduledAt: t.UnixNano()}
}

func (r *DoseEventRepository) InsertIfAbsent(_ context.Context, event *model.DoseEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(event.MedicationID, event.ScheduledTime)
	if _, exists := r.byInstant[k]; exists {
		return false, nil
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	cp := *event
	r.byID[cp.ID] = &cp
	r.byInstant[k] = cp.ID
	return true, nil
}

func (r *DoseEventRepository) Create(_ context.Context, event *model.DoseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byInstant[key(event.MedicationID, event.ScheduledTime)]; exists {
		return repository.ErrConflict
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	cp := *event
	r.byID[cp.ID] = &cp
	r.byInstant[key(cp.MedicationID, cp.ScheduledTime)] = cp.ID
	return nil
}

func (r *DoseEventRepository) Get(_ context.Context, id uuid.UUID) (*model.DoseEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *event
	return &cp, nil
}

func (r *DoseEventRepository) FindByMedicationAndTime(_ context.Context, medicationID uuid.UUID, scheduledTime time.Time) (*model.DoseEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byInstant[key(medicationID, scheduledTime)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *DoseEventRepository) FindNearestDue(_ context.Context, medicationID uuid.UUID, around time.Time, tolerance time.Duration) (*model.DoseEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *model.DoseEvent
	var bestDist time.Duration
	for _, event := range r.byID {
		if event.MedicationID != medicationID || event.Status != model.DoseStatusDue {
			continue
		}
		dist := event.ScheduledTime.Sub(around)
		if dist < 0 {
			dist = -dist
		}
		if dist > tolerance {
			continue
		}
		if best == nil || dist < bestDist {
			best = event
			bestDist = dist
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *DoseEventRepository) ListUpcoming(_ context.Context, from, to time.Time) ([]*model.DueEventContext, error) {
	return r.listDue(func(e *model.DoseEvent) bool {
		return e.RemindedAt == nil && !e.ScheduledTime.Before(from) && !e.ScheduledTime.After(to)
	})
}

func (r *DoseEventRepository) ListOverdue(_ context.Context, before time.Time) ([]*model.DueEventContext, error) {
	return r.listDue(func(e *model.DoseEvent) bool {
		return e.OverdueNotifiedAt == nil && e.ScheduledTime.Before(before)
	})
}

func (r *DoseEventRepository) ListAgenda(_ context.Context, userID uuid.UUID, from, to time.Time) ([]*model.DueEventContext, error) {
	r.mu.Lock()
	contexts := make(map[uuid.UUID]NotifyContext, len(r.contexts))
	for k, v := range r.contexts {
		contexts[k] = v
	}
	r.mu.Unlock()

	return r.listDue(func(e *model.DoseEvent) bool {
		nc, ok := contexts[e.MedicationID]
		if !ok || nc.UserID != userID {
			return false
		}
		return !e.ScheduledTime.Before(from) && !e.ScheduledTime.After(to)
	})
}

func (r *DoseEventRepository) listDue(match func(*model.DoseEvent) bool) ([]*model.DueEventContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.DueEventContext
	for _, event := range r.byID {
		if event.Status != model.DoseStatusDue || !match(event) {
			continue
		}
		nc := r.contexts[event.MedicationID]
		out = append(out, &model.DueEventContext{
			DoseEvent:      *event,
			MedicationName: nc.MedicationName,
			Dosage:         nc.Dosage,
			PetName:        nc.PetName,
			UserID:         nc.UserID,
			UserEmail:      nc.UserEmail,
			NotifyChannel:  nc.NotifyChannel,
			Timezone:       nc.Timezone,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out, nil
}

func (r *DoseEventRepository) UpdateStatus(_ context.Context, id uuid.UUID, to model.DoseStatus, resolutionRef *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if event.Status != model.DoseStatusDue {
		return repository.ErrNotDue
	}
	event.Status = to
	event.ResolutionRef = resolutionRef
	event.UpdatedAt = time.Now()
	return nil
}

func (r *DoseEventRepository) Reschedule(_ context.Context, id uuid.UUID, newTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if event.Status != model.DoseStatusDue {
		return repository.ErrNotDue
	}
	if other, exists := r.byInstant[key(event.MedicationID, newTime)]; exists && other != id {
		return repository.ErrConflict
	}
	delete(r.byInstant, key(event.MedicationID, event.ScheduledTime))
	event.ScheduledTime = newTime
	event.RemindedAt = nil
	event.OverdueNotifiedAt = nil
	event.UpdatedAt = time.Now()
	r.byInstant[key(event.MedicationID, event.ScheduledTime)] = event.ID
	return nil
}

func (r *DoseEventRepository) MarkReminded(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.byID[id]
	if !ok || event.Status != model.DoseStatusDue || event.RemindedAt != nil {
		return false, nil
	}
	event.RemindedAt = &at
	event.UpdatedAt = at
	return true, nil
}

func (r *DoseEventRepository) ClearReminded(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event, ok := r.byID[id]; ok {
		event.RemindedAt = nil
	}
	return nil
}

func (r *DoseEventRepository) MarkOverdueNotified(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.byID[id]
	if !ok || event.Status != model.DoseStatusDue || event.OverdueNotifiedAt != nil {
		return false, nil
	}
	event.OverdueNotifiedAt = &at
	event.UpdatedAt = at
	return true, nil
}

func (r *DoseEventRepository) ClearOverdueNotified(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event, ok := r.byID[id]; ok {
		event.OverdueNotifiedAt = nil
	}
	return nil
}

// All returns a snapshot of every stored event, for assertions.
func (r *DoseEventRepository) All() []*model.DoseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.DoseEvent, 0, len(r.byID))
	for _, event := range r.byID {
		cp := *event
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out
}
