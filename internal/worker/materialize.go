package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pawdose/medtrack-api/internal/service/materializer"
	"github.com/pawdose/medtrack-api/pkg/logger"
	"github.com/pawdose/medtrack-api/pkg/metrics"
)

// MaterializeWorker runs the daily materialization sweep: every active
// medication gets its agenda extended to now + horizon.
type MaterializeWorker struct {
	svc      *materializer.Service
	interval time.Duration
	horizon  time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewMaterializeWorker(svc *materializer.Service, interval, horizon time.Duration, logger *logger.Logger, m *metrics.Metrics) *MaterializeWorker {
	return &MaterializeWorker{
		svc:      svc,
		interval: interval,
		horizon:  horizon,
		logger:   logger,
		metrics:  m,
	}
}

func (w *MaterializeWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("starting materialization worker",
		"interval", w.interval.String(), "horizon", w.horizon.String())

	// run once at startup so a fresh deployment has an agenda immediately
	w.run(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down materialization worker")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *MaterializeWorker) run(ctx context.Context) {
	timer := prometheus.NewTimer(w.metrics.MaterializeDuration)
	defer timer.ObserveDuration()

	created, err := w.svc.MaterializeAll(ctx, time.Now(), w.horizon)
	if err != nil {
		// transient store failure: the next scheduled run supersedes this one
		w.metrics.MaterializeFailures.WithLabelValues("store").Inc()
		w.logger.Error(err, "materialization sweep failed")
		return
	}

	w.metrics.DoseEventsMaterialized.Add(float64(created))
	if created > 0 {
		w.logger.Info("materialization sweep complete", "events_created", created)
	}
}
