// Package dosing owns the dose-event status transitions: logging a dose,
// skipping it, and snoozing. It is the only writer of terminal statuses.
package dosing

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/internal/repository"
	"github.com/pawdose/medtrack-api/pkg/errors"
	"github.com/pawdose/medtrack-api/pkg/logger"
)

type Config struct {
	// SnoozeDelay is how far a snooze pushes a due event forward.
	SnoozeDelay time.Duration
	// LogMatchTolerance bounds the search for the due event a log entry
	// resolves; a dose administered further than this from any scheduled
	// instant is recorded as an ad-hoc event instead.
	LogMatchTolerance time.Duration
}

type Service struct {
	events repository.DoseEventRepository
	meds   repository.MedicationRepository
	config Config
	logger *logger.Logger
}

func NewService(events repository.DoseEventRepository, meds repository.MedicationRepository, config Config, logger *logger.Logger) *Service {
	if config.SnoozeDelay <= 0 {
		config.SnoozeDelay = 15 * time.Minute
	}
	if config.LogMatchTolerance <= 0 {
		config.LogMatchTolerance = 6 * time.Hour
	}
	return &Service{
		events: events,
		meds:   meds,
		config: config,
		logger: logger,
	}
}

// LogDose resolves a due dose event to taken and stamps the medication-log
// reference. When the caller does not name an event, the nearest due event
// by time proximity is matched; with no match inside the tolerance window
// the dose is recorded as an ad-hoc taken event (the only way PRN
// medications get dose events at all).
func (s *Service) LogDose(ctx context.Context, medicationID uuid.UUID, doseEventID *uuid.UUID, logEntryID uuid.UUID, administeredAt time.Time) (*model.DoseEvent, error) {
	if doseEventID != nil {
		return s.resolve(ctx, *doseEventID, logEntryID)
	}

	match, err := s.events.FindNearestDue(ctx, medicationID, administeredAt, s.config.LogMatchTolerance)
	if err == nil {
		return s.resolve(ctx, match.ID, logEntryID)
	}
	if !stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.StoreUnavailable(err)
	}

	// no scheduled event nearby: record the administration as its own event
	if _, err := s.meds.Get(ctx, medicationID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("medication", err)
		}
		return nil, errors.StoreUnavailable(err)
	}

	event := &model.DoseEvent{
		MedicationID:  medicationID,
		ScheduledTime: administeredAt,
		Status:        model.DoseStatusTaken,
		ResolutionRef: &logEntryID,
	}
	if err := s.events.Create(ctx, event); err != nil {
		if stderrors.Is(err, repository.ErrConflict) {
			return nil, errors.IllegalTransition("a dose is already recorded at this time")
		}
		return nil, errors.StoreUnavailable(err)
	}
	return event, nil
}

func (s *Service) resolve(ctx context.Context, doseEventID, logEntryID uuid.UUID) (*model.DoseEvent, error) {
	err := s.events.UpdateStatus(ctx, doseEventID, model.DoseStatusTaken, &logEntryID)
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return nil, errors.NotFound("dose event", err)
	case stderrors.Is(err, repository.ErrNotDue):
		return nil, errors.IllegalTransition("dose was already recorded")
	case err != nil:
		return nil, errors.StoreUnavailable(err)
	}
	return s.events.Get(ctx, doseEventID)
}

// SkipDose marks a due event skipped.
func (s *Service) SkipDose(ctx context.Context, doseEventID uuid.UUID) (*model.DoseEvent, error) {
	err := s.events.UpdateStatus(ctx, doseEventID, model.DoseStatusSkipped, nil)
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return nil, errors.NotFound("dose event", err)
	case stderrors.Is(err, repository.ErrNotDue):
		return nil, errors.IllegalTransition("dose was already recorded")
	case err != nil:
		return nil, errors.StoreUnavailable(err)
	}
	return s.events.Get(ctx, doseEventID)
}

// SnoozeDose advances a due event's scheduled time by the configured delay
// and re-arms both notification thresholds. Snoozing a resolved event is
// rejected, not silently ignored, so the caller can surface it.
func (s *Service) SnoozeDose(ctx context.Context, doseEventID uuid.UUID) (*model.DoseEvent, error) {
	event, err := s.events.Get(ctx, doseEventID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NotFound("dose event", err)
	}
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	if !event.CanSnooze() {
		return nil, errors.IllegalTransition("only due doses can be snoozed")
	}

	err = s.events.Reschedule(ctx, doseEventID, event.ScheduledTime.Add(s.config.SnoozeDelay))
	switch {
	case stderrors.Is(err, repository.ErrNotDue):
		// lost a race with a concurrent log/skip
		return nil, errors.IllegalTransition("only due doses can be snoozed")
	case stderrors.Is(err, repository.ErrConflict):
		return nil, errors.IllegalTransition("the next dose is already scheduled at the snoozed time")
	case stderrors.Is(err, repository.ErrNotFound):
		return nil, errors.NotFound("dose event", err)
	case err != nil:
		return nil, errors.StoreUnavailable(err)
	}
	return s.events.Get(ctx, doseEventID)
}
