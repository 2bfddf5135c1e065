package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pawdose/medtrack-api/internal/config"
	"github.com/pawdose/medtrack-api/internal/handler"
	doseHandler "github.com/pawdose/medtrack-api/internal/handler/dose"
	"github.com/pawdose/medtrack-api/internal/middleware"
	"github.com/pawdose/medtrack-api/internal/repository/postgres"
	"github.com/pawdose/medtrack-api/internal/router"
	"github.com/pawdose/medtrack-api/internal/service/dosing"
	"github.com/pawdose/medtrack-api/internal/service/materializer"
	"github.com/pawdose/medtrack-api/internal/service/medication"
	"github.com/pawdose/medtrack-api/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	eventRepo := postgres.NewDoseEventRepository(db)
	medicationRepo := postgres.NewMedicationRepository(db)
	medProvider := medication.NewProvider(medicationRepo, cfg.Scheduler.MedicationCacheTTL)

	// Services
	materializeSvc := materializer.NewService(eventRepo, medProvider, appLogger)
	dosingSvc := dosing.NewService(eventRepo, medProvider, dosing.Config{
		SnoozeDelay:       cfg.Scheduler.SnoozeDelay,
		LogMatchTolerance: cfg.Scheduler.LogMatchTolerance,
	}, appLogger)

	// Handlers
	h := handler.NewHandler(db)
	doseH := doseHandler.NewHandler(dosingSvc, materializeSvc, eventRepo, cfg.Scheduler.MaterializeHorizon)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	r := router.NewRouter(authMiddleware, doseH, h, router.Config{
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	appLogger.Info("server started", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error(err, "forced shutdown")
	}
}
