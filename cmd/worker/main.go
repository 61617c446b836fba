// Package main provides the entrypoint for the consent console worker. The
// worker sweeps overdue DSAR requests on a schedule, or on demand when jobs
// arrive over Pub/Sub.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/consentdesk/console/internal/api/middleware"
	"github.com/consentdesk/console/internal/api/response"
	"github.com/consentdesk/console/internal/app"
	"github.com/consentdesk/console/internal/config"
	"github.com/consentdesk/console/internal/dsar"
	"github.com/consentdesk/console/internal/logging"
	"github.com/consentdesk/console/internal/telemetry"
	"github.com/consentdesk/console/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "consent-console-worker"

	cfg, err := config.Load(os.Getenv(config.EnvPrefix + "_CONFIG_FILE"))
	if err != nil {
		log := logging.New(config.LogConfig{}, serviceName, Version)
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(cfg.Log, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Bool("sweep_enabled", cfg.Worker.Sweep.Enabled).
		Bool("pubsub_enabled", cfg.Worker.PubSub.Enabled).
		Msg("starting consent console worker")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceName = serviceName
	telemetryCfg.ServiceVersion = Version
	telemetryCfg.Environment = cfg.Environment

	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	consoleApp, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize console")
	}
	defer consoleApp.Close()

	// Validated by config.Load.
	minUrgency, _ := dsar.ParseUrgency(cfg.Worker.Sweep.MinUrgency)

	sweep := worker.NewSweepJob(worker.SweepJobConfig{
		Config: worker.SweepConfig{
			Enabled:     cfg.Worker.Sweep.Enabled,
			MinUrgency:  minUrgency,
			Concurrency: cfg.Worker.Sweep.Concurrency,
			Timeout:     cfg.Worker.Sweep.Timeout,
		},
		Board:  consoleApp.Board,
		Logger: log,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Worker.Port),
		Handler:      healthRouter(log, sweep),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start health check server
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.Worker.PubSub.Enabled {
		dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
			Sweep:  sweep,
			Views:  consoleApp.Views(),
			Health: consoleApp.Board,
			Logger: log,
		})
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.PubSub.ProjectID,
			SubscriptionName: cfg.Worker.PubSub.Subscription,
			Dispatcher:       dispatcher,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close pubsub handler")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		go sweep.Schedule(ctx, cfg.Worker.Sweep.Interval)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// healthRouter serves the liveness probe with the sweep counters.
func healthRouter(log zerolog.Logger, sweep *worker.SweepJob) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"sweep":   sweep.MetricsSnapshot(),
		})
	})
	return r
}
