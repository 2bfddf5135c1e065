package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/internal/repository"
)

type MedicationRepository struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Medication
}

func NewMedicationRepository() *MedicationRepository {
	return &MedicationRepository{byID: make(map[uuid.UUID]*model.Medication)}
}

// Put stores or replaces a medication.
func (r *MedicationRepository) Put(med *model.Medication) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *med
	r.byID[cp.ID] = &cp
}

func (r *MedicationRepository) Get(_ context.Context, id uuid.UUID) (*model.Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	med, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *med
	return &cp, nil
}

func (r *MedicationRepository) ListActive(_ context.Context) ([]*model.Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Medication
	for _, med := range r.byID {
		if !med.Active {
			continue
		}
		cp := *med
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
