// Package materializer persists generated occurrences as dose events.
package materializer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/internal/repository"
	"github.com/pawdose/medtrack-api/internal/schedule"
	"github.com/pawdose/medtrack-api/pkg/errors"
	"github.com/pawdose/medtrack-api/pkg/logger"
)

type Service struct {
	events repository.DoseEventRepository
	meds   repository.MedicationRepository
	logger *logger.Logger
}

func NewService(events repository.DoseEventRepository, meds repository.MedicationRepository, logger *logger.Logger) *Service {
	return &Service{
		events: events,
		meds:   meds,
		logger: logger,
	}
}

// Materialize inserts a due dose event for every occurrence the schedule
// generates in [windowStart, windowEnd] that is not already persisted.
// Safe to call repeatedly and concurrently for the same medication: the
// insert is ignore-on-conflict and the store's unique key on
// (medication_id, scheduled_time) is the backstop against races.
//
// An inactive medication materializes nothing; events already created
// before deactivation are left alone.
func (s *Service) Materialize(ctx context.Context, med *model.Medication, windowStart, windowEnd time.Time) (int, error) {
	if !med.Active {
		return 0, nil
	}

	seq, err := schedule.Generate(&med.Schedule, med.Location(), windowStart, windowEnd)
	if err != nil {
		return 0, err
	}

	created := 0
	for it := seq.Iter(); ; {
		occurrence, ok := it.Next()
		if !ok {
			break
		}
		inserted, err := s.events.InsertIfAbsent(ctx, &model.DoseEvent{
			MedicationID:  med.ID,
			ScheduledTime: occurrence,
			Status:        model.DoseStatusDue,
		})
		if err != nil {
			return created, errors.StoreUnavailable(err)
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

// MaterializeByID is the manual trigger exposed to the route layer.
func (s *Service) MaterializeByID(ctx context.Context, medicationID uuid.UUID, windowStart, windowEnd time.Time) (int, error) {
	med, err := s.meds.Get(ctx, medicationID)
	if err != nil {
		if err == repository.ErrNotFound {
			return 0, errors.NotFound("medication", err)
		}
		return 0, errors.StoreUnavailable(err)
	}
	return s.Materialize(ctx, med, windowStart, windowEnd)
}

// MaterializeAll runs the rolling-window sweep over every active
// medication. One medication's failure is logged and skipped; it never
// aborts the others.
func (s *Service) MaterializeAll(ctx context.Context, now time.Time, horizon time.Duration) (int, error) {
	medications, err := s.meds.ListActive(ctx)
	if err != nil {
		return 0, errors.StoreUnavailable(err)
	}

	total := 0
	for _, med := range medications {
		created, err := s.Materialize(ctx, med, now, now.Add(horizon))
		if err != nil {
			s.logger.Error(err, "materialization failed for medication",
				"medication_id", med.ID.String())
			continue
		}
		total += created
	}
	return total, nil
}
