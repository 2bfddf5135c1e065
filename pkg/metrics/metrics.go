package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Materialization metrics
	DoseEventsMaterialized prometheus.Counter
	MaterializeFailures    *prometheus.CounterVec
	MaterializeDuration    prometheus.Histogram

	// Reminder metrics
	RemindersSent       prometheus.Counter
	OverdueNoticesSent  prometheus.Counter
	DispatchFailures    *prometheus.CounterVec
	SweepDuration       *prometheus.HistogramVec
	SweepEventsExamined *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates and registers all application metrics
func New(namespace string) *Metrics {
	return &Metrics{
		DoseEventsMaterialized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dose_events_materialized_total",
			Help:      "Total number of dose events created by materialization",
		}),
		MaterializeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "materialize_failures_total",
			Help:      "Total number of per-medication materialization failures",
		}, []string{"reason"}),
		MaterializeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "materialize_duration_seconds",
			Help:      "Time spent in a materialization sweep",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		RemindersSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Total number of upcoming-dose reminders dispatched",
		}),
		OverdueNoticesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overdue_notices_sent_total",
			Help:      "Total number of overdue-dose notices dispatched",
		}),
		DispatchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_dispatch_failures_total",
			Help:      "Total number of failed notification dispatches",
		}, []string{"kind"}),
		SweepDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of reminder and overdue sweeps",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"sweep"}),
		SweepEventsExamined: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_events_examined_total",
			Help:      "Total number of dose events examined by sweeps",
		}, []string{"sweep"}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}
