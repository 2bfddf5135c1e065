package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/pawdose/medtrack-api/internal/config"
	"github.com/pawdose/medtrack-api/internal/notifier"
	emailNotifier "github.com/pawdose/medtrack-api/internal/notifier/email"
	pushNotifier "github.com/pawdose/medtrack-api/internal/notifier/push"
	"github.com/pawdose/medtrack-api/internal/repository/postgres"
	"github.com/pawdose/medtrack-api/internal/service/materializer"
	"github.com/pawdose/medtrack-api/internal/service/medication"
	"github.com/pawdose/medtrack-api/internal/service/reminder"
	"github.com/pawdose/medtrack-api/internal/worker"
	"github.com/pawdose/medtrack-api/pkg/logger"
	"github.com/pawdose/medtrack-api/pkg/messaging/redis"
	"github.com/pawdose/medtrack-api/pkg/metrics"
)

func setupHealthCheck(appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.Fatal(err, "health check server failed")
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	// Repositories
	eventRepo := postgres.NewDoseEventRepository(db)
	medicationRepo := postgres.NewMedicationRepository(db)
	medProvider := medication.NewProvider(medicationRepo, cfg.Scheduler.MedicationCacheTTL)

	// Notification channels: push over the broker, email as opt-in
	dispatcher := notifier.NewDispatcher(appLogger)
	dispatcher.Register(notifier.ChannelPush, pushNotifier.New(broker))
	if cfg.SMTP.Host != "" {
		dispatcher.Register(notifier.ChannelEmail, emailNotifier.New(cfg.SMTP))
	}

	m := metrics.New("medtrack")

	// Services
	materializeSvc := materializer.NewService(eventRepo, medProvider, appLogger)
	reminderSvc := reminder.NewService(eventRepo, dispatcher, reminder.Config{
		ReminderLeadTime: cfg.Scheduler.ReminderLeadTime,
		OverdueGrace:     cfg.Scheduler.OverdueGrace,
	}, appLogger, m)

	setupHealthCheck(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("shutting down workers")
		cancel()
	}()

	// The three sweeps share no in-memory state; they coordinate only
	// through the store's unique constraint on dose events.
	var wg sync.WaitGroup
	workers := []interface{ Start(context.Context) }{
		worker.NewReminderWorker(reminderSvc, cfg.Scheduler.ReminderInterval, appLogger, m),
		worker.NewOverdueWorker(reminderSvc, cfg.Scheduler.OverdueInterval, appLogger, m),
		worker.NewMaterializeWorker(materializeSvc, cfg.Scheduler.MaterializeInterval, cfg.Scheduler.MaterializeHorizon, appLogger, m),
	}
	for _, w := range workers {
		wg.Add(1)
		go func(w interface{ Start(context.Context) }) {
			defer wg.Done()
			w.Start(ctx)
		}(w)
	}
	wg.Wait()
}
