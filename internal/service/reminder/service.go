// Package reminder scans persisted dose events for threshold crossings
// and dispatches notifications.
package reminder

import (
	"context"
	"time"

	"github.com/pawdose/medtrack-api/internal/notifier"
	"github.com/pawdose/medtrack-api/internal/repository"
	"github.com/pawdose/medtrack-api/pkg/errors"
	"github.com/pawdose/medtrack-api/pkg/logger"
	"github.com/pawdose/medtrack-api/pkg/metrics"
)

type Config struct {
	// ReminderLeadTime is how far ahead of the scheduled instant the
	// upcoming reminder fires.
	ReminderLeadTime time.Duration
	// OverdueGrace is how long past the scheduled instant before a dose
	// counts as overdue.
	OverdueGrace time.Duration
}

type Service struct {
	events   repository.DoseEventRepository
	notifier notifier.Notifier
	config   Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(events repository.DoseEventRepository, n notifier.Notifier, config Config, logger *logger.Logger, m *metrics.Metrics) *Service {
	if config.ReminderLeadTime <= 0 {
		config.ReminderLeadTime = 15 * time.Minute
	}
	if config.OverdueGrace <= 0 {
		config.OverdueGrace = 30 * time.Minute
	}
	return &Service{
		events:   events,
		notifier: n,
		config:   config,
		logger:   logger,
		metrics:  m,
	}
}

// SweepUpcoming notifies every due event entering the reminder lead window
// that has not been reminded yet. The event is flagged before dispatch so
// a concurrent sweep cannot claim it twice; on transport failure the flag
// is rolled back and the next sweep retries. A single event's failure
// never aborts the rest of the sweep.
func (s *Service) SweepUpcoming(ctx context.Context, now time.Time) (int, error) {
	events, err := s.events.ListUpcoming(ctx, now, now.Add(s.config.ReminderLeadTime))
	if err != nil {
		s.metrics.DatabaseOperations.WithLabelValues("list_upcoming", "error").Inc()
		return 0, errors.StoreUnavailable(err)
	}
	s.metrics.DatabaseOperations.WithLabelValues("list_upcoming", "success").Inc()
	s.metrics.SweepEventsExamined.WithLabelValues("reminder").Add(float64(len(events)))

	sent := 0
	for _, event := range events {
		claimed, err := s.events.MarkReminded(ctx, event.DoseEvent.ID, now)
		if err != nil {
			s.logger.Error(err, "failed to claim dose event for reminder",
				"dose_event_id", event.DoseEvent.ID.String())
			continue
		}
		if !claimed {
			continue
		}

		if err := s.notifier.SendReminder(ctx, event); err != nil {
			s.metrics.DispatchFailures.WithLabelValues("reminder").Inc()
			s.logger.Error(errors.NotificationDispatch(err), "reminder dispatch failed",
				"dose_event_id", event.DoseEvent.ID.String(),
				"user_id", event.UserID.String())
			if clearErr := s.events.ClearReminded(ctx, event.DoseEvent.ID); clearErr != nil {
				s.logger.Error(clearErr, "failed to re-arm reminder flag",
					"dose_event_id", event.DoseEvent.ID.String())
			}
			continue
		}
		sent++
	}
	return sent, nil
}

// SweepOverdue notifies every due event past the grace cutoff that has not
// been overdue-notified yet. Same claim/rollback discipline as
// SweepUpcoming.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	events, err := s.events.ListOverdue(ctx, now.Add(-s.config.OverdueGrace))
	if err != nil {
		s.metrics.DatabaseOperations.WithLabelValues("list_overdue", "error").Inc()
		return 0, errors.StoreUnavailable(err)
	}
	s.metrics.DatabaseOperations.WithLabelValues("list_overdue", "success").Inc()
	s.metrics.SweepEventsExamined.WithLabelValues("overdue").Add(float64(len(events)))

	sent := 0
	for _, event := range events {
		claimed, err := s.events.MarkOverdueNotified(ctx, event.DoseEvent.ID, now)
		if err != nil {
			s.logger.Error(err, "failed to claim dose event for overdue notice",
				"dose_event_id", event.DoseEvent.ID.String())
			continue
		}
		if !claimed {
			continue
		}

		if err := s.notifier.SendOverdue(ctx, event); err != nil {
			s.metrics.DispatchFailures.WithLabelValues("overdue").Inc()
			s.logger.Error(errors.NotificationDispatch(err), "overdue dispatch failed",
				"dose_event_id", event.DoseEvent.ID.String(),
				"user_id", event.UserID.String())
			if clearErr := s.events.ClearOverdueNotified(ctx, event.DoseEvent.ID); clearErr != nil {
				s.logger.Error(clearErr, "failed to re-arm overdue flag",
					"dose_event_id", event.DoseEvent.ID.String())
			}
			continue
		}
		sent++
	}
	return sent, nil
}
