// Package app assembles the console components from configuration. Every
// binary builds its dependencies through New so that the API, the worker
// and the CLI share one view of the backend.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/consentdesk/console/internal/audit"
	"github.com/consentdesk/console/internal/auth"
	"github.com/consentdesk/console/internal/backend"
	"github.com/consentdesk/console/internal/config"
	"github.com/consentdesk/console/internal/console"
	"github.com/consentdesk/console/internal/database"
	"github.com/consentdesk/console/internal/dsar"
	"github.com/consentdesk/console/internal/notify"
	"github.com/consentdesk/console/internal/resilience"
	"github.com/consentdesk/console/internal/view"
)

// App holds the wired console components.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *resilience.Registry
	Backend  *backend.Client
	Board    *dsar.Board
	Tables   *console.Tables
	Inbox    *notify.Inbox
	Audit    audit.Repository

	closers []func()
}

// Options adjusts how New wires the components.
type Options struct {
	// Notifier is added to the inbox and log notifiers, e.g. a terminal
	// printer for the CLI.
	Notifier notify.Notifier

	// DisablePubSub skips the Pub/Sub notifier even when configured.
	DisablePubSub bool
}

// New wires every component from cfg. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	if err := cfg.RequireBackendCredentials(); err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: resilience.NewRegistry(),
		Inbox:    notify.NewInbox(cfg.Notifications.InboxSize),
	}

	client, err := backend.NewClient(backend.ClientConfig{
		BaseURL:     cfg.Backend.BaseURL,
		Credentials: credentials(cfg.Backend),
		HTTPClient:  a.httpClient(cfg.Backend),
		Registry:    a.Registry,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}
	a.Backend = client

	notifier, err := a.notifier(ctx, opts)
	if err != nil {
		a.Close()
		return nil, err
	}

	repo, err := a.auditRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Audit = repo

	metrics, err := view.NewMetrics()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating view metrics: %w", err)
	}

	viewCfg := view.Config{
		RefreshInterval: cfg.Views.RefreshInterval,
		ReloadDelay:     cfg.Views.ReloadDelay,
		LoadTimeout:     cfg.Views.LoadTimeout,
		Notifier:        notifier,
		Audit:           repo,
		Metrics:         metrics,
		Logger:          logger,
	}

	requests := backend.NewDSAR(client)
	a.Board = dsar.NewBoard(dsar.BoardConfig{
		Source:    requests,
		Processor: requests,
		View:      viewCfg,
		Logger:    logger,
	})

	resources := backend.NewConsole(client)
	a.Tables = console.NewTables(console.Stores{
		Rules:            resources.Rules,
		Customers:        resources.Customers,
		GuardianConsents: resources.GuardianConsents,
		PrivacyNotices:   resources.PrivacyNotices,
		TopicPreferences: resources.TopicPreferences,
	}, viewCfg)

	return a, nil
}

func credentials(cfg config.BackendConfig) backend.Credentials {
	if cfg.ServiceToken.Enabled() {
		issuer := auth.NewJWTService(auth.JWTConfig{
			SigningKey: cfg.ServiceToken.SigningKey,
			Issuer:     cfg.ServiceToken.Issuer,
			Audience:   cfg.ServiceToken.Audience,
			TTL:        cfg.ServiceToken.TTL,
		})
		return auth.NewServiceTokenSource(issuer, cfg.ServiceToken.Subject)
	}
	return backend.StaticToken(cfg.Token)
}

func (a *App) httpClient(cfg config.BackendConfig) *resilience.Client {
	clientCfg := resilience.DefaultClientConfig("backend")
	clientCfg.Timeout = cfg.Timeout
	clientCfg.MaxRetries = cfg.ReadRetries
	if cfg.BreakerTimeout > 0 {
		clientCfg.CircuitBreaker.Timeout = cfg.BreakerTimeout
	}
	clientCfg.CircuitBreaker.OnStateChange = func(name string, from, to gobreaker.State) {
		a.Logger.Warn().
			Str("breaker", name).
			Str("from", resilience.StateName(from)).
			Str("to", resilience.StateName(to)).
			Msg("circuit breaker state changed")
	}
	return resilience.NewClient(clientCfg)
}

func (a *App) notifier(ctx context.Context, opts Options) (notify.Notifier, error) {
	notifiers := []notify.Notifier{a.Inbox, notify.NewLogNotifier(a.Logger), opts.Notifier}

	ps := a.Config.Notifications.PubSub
	if ps.Enabled && !opts.DisablePubSub {
		publisher, err := notify.NewTopicPublisher(ctx, ps.ProjectID, ps.Topic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := publisher.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("failed to close notification publisher")
			}
		})
		notifiers = append(notifiers, notify.NewPubSubNotifier(notify.PubSubNotifierConfig{
			Publisher: publisher,
			Logger:    a.Logger,
		}))
		a.Logger.Info().Str("topic", ps.Topic).Msg("publishing notifications to pubsub")
	}

	return notify.Multi(notifiers...), nil
}

func (a *App) auditRepository(ctx context.Context) (audit.Repository, error) {
	if !a.Config.Database.Enabled {
		a.Logger.Info().Msg("keeping audit trail in memory")
		return audit.NewInMemoryRepository(), nil
	}

	pool, err := database.Connect(ctx, a.Config.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting audit database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	repo := audit.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	a.Logger.Info().
		Str("host", a.Config.Database.Host).
		Str("database", a.Config.Database.Database).
		Msg("audit database connected")
	return repo, nil
}

// Views returns the DSAR board followed by the resource tables.
func (a *App) Views() []view.StatusReporter {
	return append([]view.StatusReporter{a.Board}, a.Tables.Views()...)
}

// StartAutoRefresh starts every view's refresh loop when enabled in config.
func (a *App) StartAutoRefresh() {
	if !a.Config.Views.AutoRefresh {
		return
	}
	a.Board.StartAutoRefresh(0)
	a.Tables.StartAutoRefresh(0)
}

// LoadAll loads every view once and returns the first error.
func (a *App) LoadAll(ctx context.Context) error {
	var firstErr error
	for _, v := range a.Views() {
		if err := v.Load(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("loading %s: %w", v.Name(), err)
		}
	}
	return firstErr
}

// Close stops the views and releases connections in reverse order.
func (a *App) Close() {
	if a.Board != nil {
		a.Board.Close()
	}
	if a.Tables != nil {
		a.Tables.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
