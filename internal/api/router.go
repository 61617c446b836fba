// Package api provides the HTTP API for the consent console.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/consentdesk/console/internal/api/handler"
	"github.com/consentdesk/console/internal/api/middleware"
	"github.com/consentdesk/console/internal/audit"
	"github.com/consentdesk/console/internal/auth"
	"github.com/consentdesk/console/internal/console"
	"github.com/consentdesk/console/internal/dsar"
	"github.com/consentdesk/console/internal/notify"
	"github.com/consentdesk/console/internal/resilience"
	"github.com/consentdesk/console/internal/view"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	JWT         *auth.JWTService

	Board    *dsar.Board
	Tables   *console.Tables
	Inbox    *notify.Inbox
	Audit    audit.Repository
	Registry *resilience.Registry

	// RateLimit and ActionRateLimit are requests per minute per operator.
	// Zero selects the defaults.
	RateLimit       int
	ActionRateLimit int

	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "consent-console-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	var views []view.StatusReporter
	if cfg.Board != nil {
		views = append(views, cfg.Board)
	}
	if cfg.Tables != nil {
		views = append(views, cfg.Tables.Views()...)
	}

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, views)

	authMiddleware := middleware.Auth(cfg.JWT)
	standardRateLimit := middleware.RateLimitByOperator(middleware.PerMinute(cfg.RateLimit, middleware.StandardRateLimit))
	actionRateLimit := middleware.RateLimitByOperator(middleware.PerMinute(cfg.ActionRateLimit, middleware.ActionRateLimit))
	requireOperator := middleware.RequireRole(auth.RoleAdmin, auth.RoleService)

	// mutating restricts r to operators allowed to change data, applies the
	// stricter action rate limit and requires JSON bodies.
	mutating := func(r chi.Router) chi.Router {
		return r.With(requireOperator, actionRateLimit, middleware.RequireJSON)
	}

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public, limited per client IP)
		r.Route("/ops", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(middleware.OpsRateLimit))
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Everything else is authenticated and rate limited per operator
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)

			if cfg.Board != nil {
				dsarHandler := handler.NewDSARHandler(cfg.Board, cfg.Logger)
				r.Route("/dsar", func(r chi.Router) {
					r.Get("/requests", dsarHandler.ListRequests)
					r.Get("/recommendations", dsarHandler.ListRecommendations)
					r.Get("/stats", dsarHandler.Stats)
					r.With(actionRateLimit).Post("/refresh", dsarHandler.Refresh)

					m := mutating(r)
					m.Post("/requests/{id}/auto-process", dsarHandler.AutoProcess)
					m.Put("/requests/{id}/status", dsarHandler.UpdateStatus)
				})
			}

			if cfg.Tables != nil {
				r.Route("/resources", func(r chi.Router) {
					mountResource(r, handler.NewResourceHandler(cfg.Tables.Rules, cfg.Logger), mutating)
					mountResource(r, handler.NewResourceHandler(cfg.Tables.Customers, cfg.Logger), mutating)
					mountResource(r, handler.NewResourceHandler(cfg.Tables.GuardianConsents, cfg.Logger), mutating)
					mountResource(r, handler.NewResourceHandler(cfg.Tables.PrivacyNotices, cfg.Logger), mutating)
					mountResource(r, handler.NewResourceHandler(cfg.Tables.TopicPreferences, cfg.Logger), mutating)
				})
			}

			if cfg.Inbox != nil {
				notificationHandler := handler.NewNotificationHandler(cfg.Inbox)
				r.Get("/notifications", notificationHandler.List)
			}

			if cfg.Audit != nil {
				auditHandler := handler.NewAuditHandler(cfg.Audit, cfg.Logger)
				r.With(middleware.RequireRole(auth.RoleAdmin)).Get("/audit", auditHandler.List)
			}
		})
	})

	return r
}

// resourceRoutes is implemented by every handler.ResourceHandler.
type resourceRoutes interface {
	Kind() string
	Routes(r chi.Router, mutating func(chi.Router) chi.Router)
}

func mountResource(r chi.Router, h resourceRoutes, mutating func(chi.Router) chi.Router) {
	r.Route("/"+h.Kind(), func(r chi.Router) {
		h.Routes(r, mutating)
	})
}
