package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pawdose/medtrack-api/internal/service/reminder"
	"github.com/pawdose/medtrack-api/pkg/logger"
	"github.com/pawdose/medtrack-api/pkg/metrics"
)

// ReminderWorker runs the upcoming-dose sweep on a short cadence.
type ReminderWorker struct {
	svc      *reminder.Service
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewReminderWorker(svc *reminder.Service, interval time.Duration, logger *logger.Logger, m *metrics.Metrics) *ReminderWorker {
	return &ReminderWorker{
		svc:      svc,
		interval: interval,
		logger:   logger,
		metrics:  m,
	}
}

func (w *ReminderWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("starting reminder worker", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down reminder worker")
			return
		case <-ticker.C:
			timer := prometheus.NewTimer(w.metrics.SweepDuration.WithLabelValues("reminder"))
			sent, err := w.svc.SweepUpcoming(ctx, time.Now())
			timer.ObserveDuration()
			if err != nil {
				w.logger.Error(err, "reminder sweep failed")
				continue
			}
			w.metrics.RemindersSent.Add(float64(sent))
		}
	}
}

// OverdueWorker runs the overdue-dose sweep on a slower cadence.
type OverdueWorker struct {
	svc      *reminder.Service
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewOverdueWorker(svc *reminder.Service, interval time.Duration, logger *logger.Logger, m *metrics.Metrics) *OverdueWorker {
	return &OverdueWorker{
		svc:      svc,
		interval: interval,
		logger:   logger,
		metrics:  m,
	}
}

func (w *OverdueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("starting overdue worker", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down overdue worker")
			return
		case <-ticker.C:
			timer := prometheus.NewTimer(w.metrics.SweepDuration.WithLabelValues("overdue"))
			sent, err := w.svc.SweepOverdue(ctx, time.Now())
			timer.ObserveDuration()
			if err != nil {
				w.logger.Error(err, "overdue sweep failed")
				continue
			}
			w.metrics.OverdueNoticesSent.Add(float64(sent))
		}
	}
}
