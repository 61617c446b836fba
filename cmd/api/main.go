// Package main provides the entrypoint for the consent console API server.
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

	"github.com/consentdesk/console/internal/api"
	"github.com/consentdesk/console/internal/api/middleware"
	"github.com/consentdesk/console/internal/app"
	"github.com/consentdesk/console/internal/auth"
	"github.com/consentdesk/console/internal/config"
	"github.com/consentdesk/console/internal/logging"
	"github.com/consentdesk/console/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "consent-console-api"

	cfg, err := config.Load(os.Getenv(config.EnvPrefix + "_CONFIG_FILE"))
	if err != nil {
		// The logger depends on config; fall back to defaults to report this.
		log := logging.New(config.LogConfig{}, serviceName, Version)
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(cfg.Log, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting consent console API")

	if err := cfg.RequireOperatorAuth(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	// Initialize OpenTelemetry
	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceName = serviceName
	telemetryCfg.ServiceVersion = Version
	telemetryCfg.Environment = cfg.Environment

	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	consoleApp, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize console")
	}
	defer consoleApp.Close()

	// A failed first load is reported through the views; the API still starts.
	if err := consoleApp.LoadAll(ctx); err != nil {
		log.Warn().Err(err).Msg("initial load incomplete")
	}
	consoleApp.StartAutoRefresh()

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		JWT:             jwtService,
		Board:           consoleApp.Board,
		Tables:          consoleApp.Tables,
		Inbox:           consoleApp.Inbox,
		Audit:           consoleApp.Audit,
		Registry:        consoleApp.Registry,
		RateLimit:       cfg.Server.RateLimit,
		ActionRateLimit: cfg.Server.ActionRateLimit,
		RequireTLS:      cfg.Server.RequireTLS,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
