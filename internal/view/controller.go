// Package view keeps a local copy of one backend collection fresh for an
// operator view and guards per-record actions against duplicate submission.
//
// A Controller owns the cached items, the last load error, and the set of
// record ids with an action outstanding. Loads replace the cache wholesale
// on success and keep the last good copy on failure. Overlapping loads are
// not sequenced: the last response to arrive wins.
package view

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/consentdesk/console/internal/audit"
	"github.com/consentdesk/console/internal/notify"
)

// Predefined errors for view operations.
var (
	// ErrActionInFlight is returned when an action is triggered for a record
	// that already has one outstanding.
	ErrActionInFlight = errors.New("action already in flight for record")

	// ErrPanic wraps a panic recovered from a source or an action.
	ErrPanic = errors.New("recovered panic")
)

const (
	// DefaultRefreshInterval is the auto refresh period.
	DefaultRefreshInterval = 30 * time.Second

	// DefaultReloadDelay is how long after a successful action the
	// collection is reloaded.
	DefaultReloadDelay = 1000 * time.Millisecond
)

// Source reads a full collection from the backend.
type Source[T any] interface {
	List(ctx context.Context) ([]T, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc[T any] func(ctx context.Context) ([]T, error)

// List calls f(ctx).
func (f SourceFunc[T]) List(ctx context.Context) ([]T, error) {
	return f(ctx)
}

// ActionFunc performs one mutating backend call.
type ActionFunc func(ctx context.Context) error

// Config configures a Controller.
type Config struct {
	// Name identifies the view in notifications, logs, metrics and audit entries.
	Name string

	// RefreshInterval is used by StartAutoRefresh when called with zero.
	// Default: 30 seconds
	RefreshInterval time.Duration

	// ReloadDelay is the delay between a successful action and the reload.
	// Default: 1 second
	ReloadDelay time.Duration

	// LoadTimeout bounds each load. Zero disables the bound.
	LoadTimeout time.Duration

	// Notifier receives load and action notifications. Default: discard.
	Notifier notify.Notifier

	// Audit records action outcomes when set.
	Audit audit.Repository

	// Metrics records load and action metrics when set.
	Metrics *Metrics

	Logger zerolog.Logger
}

// State is a point-in-time copy of a controller's state.
type State[T any] struct {
	Name     string     `json:"name"`
	Items    []T        `json:"items"`
	Error    string     `json:"error,omitempty"`
	Loading  bool       `json:"loading"`
	Loaded   bool       `json:"loaded"`
	LoadedAt *time.Time `json:"loadedAt,omitempty"`
	InFlight []string   `json:"inFlight"`
}

// Controller caches one collection for a view.
type Controller[T any] struct {
	name            string
	source          Source[T]
	refreshInterval time.Duration
	reloadDelay     time.Duration
	loadTimeout     time.Duration
	notifier        notify.Notifier
	audit           audit.Repository
	metrics         *Metrics
	logger          zerolog.Logger

	mu       sync.RWMutex
	items    []T
	lastErr  error
	loading  int
	loaded   bool
	loadedAt time.Time
	inFlight map[string]struct{}

	// lifeMu guards the auto refresh loop and deferred reloads.
	lifeMu     sync.Mutex
	closed     bool
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	reloads    map[*time.Timer]struct{}
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewController creates a controller reading from source.
func NewController[T any](source Source[T], cfg Config) *Controller[T] {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.ReloadDelay <= 0 {
		cfg.ReloadDelay = DefaultReloadDelay
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	return &Controller[T]{
		name:            cfg.Name,
		source:          source,
		refreshInterval: cfg.RefreshInterval,
		reloadDelay:     cfg.ReloadDelay,
		loadTimeout:     cfg.LoadTimeout,
		notifier:        cfg.Notifier,
		audit:           cfg.Audit,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger.With().Str("view", cfg.Name).Logger(),
		items:           []T{},
		inFlight:        make(map[string]struct{}),
		reloads:         make(map[*time.Timer]struct{}),
		baseCtx:         baseCtx,
		baseCancel:      baseCancel,
	}
}

// Name returns the view name.
func (c *Controller[T]) Name() string {
	return c.name
}

// Load reads the collection. On success the cache is replaced and the error
// cleared; on failure the previous items are kept and the error recorded.
// The returned error mirrors the recorded state.
func (c *Controller[T]) Load(ctx context.Context) error {
	return c.load(ctx, false)
}

// load runs one read. Background loads (ticker, deferred reload) pass
// background=true: when their context is cancelled by teardown the result
// is dropped instead of being recorded as a failure.
func (c *Controller[T]) load(ctx context.Context, background bool) error {
	if c.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.loadTimeout)
		defer cancel()
	}

	c.mu.Lock()
	c.loading++
	c.mu.Unlock()

	start := time.Now()
	items, err := c.list(ctx)
	duration := time.Since(start)

	if err != nil && background && errors.Is(ctx.Err(), context.Canceled) {
		c.mu.Lock()
		c.loading--
		c.mu.Unlock()
		c.logger.Debug().Err(err).Msg("background load abandoned")
		return err
	}

	c.metrics.recordLoad(c.name, duration, err)

	c.mu.Lock()
	c.loading--
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()

		c.logger.Warn().Err(err).Dur("duration", duration).Msg("load failed, keeping previous items")
		c.notifier.Notify(ctx, notify.New(notify.LevelUrgent, c.name,
			fmt.Sprintf("Failed to load %s", c.name), err.Error()))
		return err
	}

	if items == nil {
		items = []T{}
	}
	c.items = items
	c.lastErr = nil
	c.loaded = true
	c.loadedAt = time.Now()
	c.mu.Unlock()

	c.logger.Debug().Int("count", len(items)).Dur("duration", duration).Msg("load completed")
	c.notifier.Notify(ctx, notify.New(notify.LevelInfo, c.name,
		fmt.Sprintf("Loaded %s", c.name), fmt.Sprintf("Loaded %d %s", len(items), c.name)))
	return nil
}

func (c *Controller[T]) list(ctx context.Context) (items []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: loading %s: %v", ErrPanic, c.name, r)
		}
	}()
	return c.source.List(ctx)
}

// StartAutoRefresh loads the collection every interval until stopped. Zero
// uses the configured refresh interval. Calling it again replaces the
// running loop, so at most one loop is active.
func (c *Controller[T]) StartAutoRefresh(interval time.Duration) {
	if interval <= 0 {
		interval = c.refreshInterval
	}

	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.closed {
		return
	}
	c.stopLoopLocked()

	ctx, cancel := context.WithCancel(c.baseCtx)
	done := make(chan struct{})
	c.loopCancel = cancel
	c.loopDone = done

	go c.refreshLoop(ctx, interval, done)

	c.logger.Info().Dur("interval", interval).Msg("auto refresh started")
}

func (c *Controller[T]) refreshLoop(ctx context.Context, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.load(ctx, true)
		}
	}
}

// StopAutoRefresh stops the auto refresh loop. It is safe to call when no
// loop is running.
func (c *Controller[T]) StopAutoRefresh() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	c.stopLoopLocked()
}

func (c *Controller[T]) stopLoopLocked() {
	if c.loopCancel == nil {
		return
	}
	c.loopCancel()
	<-c.loopDone
	c.loopCancel = nil
	c.loopDone = nil

	c.logger.Info().Msg("auto refresh stopped")
}

// AutoRefreshing reports whether an auto refresh loop is running.
func (c *Controller[T]) AutoRefreshing() bool {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	return c.loopCancel != nil
}

// Close tears the view down: it stops auto refresh and cancels deferred
// reloads. Nothing is scheduled after Close returns.
func (c *Controller[T]) Close() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.stopLoopLocked()
	for t := range c.reloads {
		t.Stop()
	}
	c.reloads = nil
	c.baseCancel()
}

// TriggerAction runs fn for the record id unless an action for id is
// already outstanding, in which case it returns ErrActionInFlight without
// calling fn. The id is released on every path. On success a reload is
// scheduled after the reload delay; on failure nothing is reloaded and the
// error is returned. fn is never retried.
func (c *Controller[T]) TriggerAction(ctx context.Context, id, action string, fn ActionFunc) error {
	if !c.acquire(id) {
		c.logger.Debug().Str("record_id", id).Str("action", action).Msg("action already in flight")
		return ErrActionInFlight
	}
	defer c.release(id)

	err := c.run(ctx, id, action, fn)

	c.metrics.recordAction(c.name, action, err)
	c.recordAudit(ctx, id, action, err)

	if err != nil {
		c.logger.Error().Err(err).Str("record_id", id).Str("action", action).Msg("action failed")
		c.notifier.Notify(ctx, notify.New(notify.LevelBlocking, c.name,
			fmt.Sprintf("%s failed", action), fmt.Sprintf("%s %s: %s", action, id, err.Error())))
		return err
	}

	c.logger.Info().Str("record_id", id).Str("action", action).Msg("action succeeded")
	c.notifier.Notify(ctx, notify.New(notify.LevelInfo, c.name,
		fmt.Sprintf("%s succeeded", action), fmt.Sprintf("%s completed for %s", action, id)))
	c.scheduleReload()
	return nil
}

func (c *Controller[T]) run(ctx context.Context, id, action string, fn ActionFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s %s: %v", ErrPanic, action, id, r)
		}
	}()
	return fn(ctx)
}

func (c *Controller[T]) acquire(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inFlight[id]; busy {
		return false
	}
	c.inFlight[id] = struct{}{}
	c.metrics.addInFlight(c.name, 1)
	return true
}

func (c *Controller[T]) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, id)
	c.metrics.addInFlight(c.name, -1)
}

func (c *Controller[T]) recordAudit(ctx context.Context, id, action string, actionErr error) {
	if c.audit == nil {
		return
	}
	entry := audit.NewEntry(ctx, c.name, id, action, actionErr)
	if err := c.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		c.logger.Warn().Err(err).Str("record_id", id).Msg("failed to record audit entry")
	}
}

func (c *Controller[T]) scheduleReload() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.closed {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(c.reloadDelay, func() {
		c.lifeMu.Lock()
		if c.closed {
			c.lifeMu.Unlock()
			return
		}
		delete(c.reloads, timer)
		ctx := c.baseCtx
		c.lifeMu.Unlock()

		_ = c.load(ctx, true)
	})
	c.reloads[timer] = struct{}{}
}

// PendingReloads returns the number of scheduled reloads that have not fired.
func (c *Controller[T]) PendingReloads() int {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	return len(c.reloads)
}

// InFlight reports whether an action is outstanding for id.
func (c *Controller[T]) InFlight(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.inFlight[id]
	return ok
}

// Items returns a copy of the cached items.
func (c *Controller[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Visible returns the cached items matching q. The cache is not modified.
func (c *Controller[T]) Visible(q Query[T]) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Filter(c.items, q)
}

// Err returns the error of the last load, or nil if it succeeded.
func (c *Controller[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Snapshot returns a copy of the controller state.
func (c *Controller[T]) Snapshot() State[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := State[T]{
		Name:     c.name,
		Items:    make([]T, len(c.items)),
		Loading:  c.loading > 0,
		Loaded:   c.loaded,
		InFlight: make([]string, 0, len(c.inFlight)),
	}
	copy(state.Items, c.items)
	if c.lastErr != nil {
		state.Error = c.lastErr.Error()
	}
	if c.loaded {
		at := c.loadedAt
		state.LoadedAt = &at
	}
	for id := range c.inFlight {
		state.InFlight = append(state.InFlight, id)
	}
	sort.Strings(state.InFlight)
	return state
}

// Status summarises a controller without its items.
type Status struct {
	Name           string     `json:"name"`
	Count          int        `json:"count"`
	Error          string     `json:"error,omitempty"`
	Loading        bool       `json:"loading"`
	Loaded         bool       `json:"loaded"`
	LoadedAt       *time.Time `json:"loadedAt,omitempty"`
	InFlight       int        `json:"inFlight"`
	AutoRefreshing bool       `json:"autoRefreshing"`
}

// Status returns the controller summary.
func (c *Controller[T]) Status() Status {
	auto := c.AutoRefreshing()

	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{
		Name:           c.name,
		Count:          len(c.items),
		Loading:        c.loading > 0,
		Loaded:         c.loaded,
		InFlight:       len(c.inFlight),
		AutoRefreshing: auto,
	}
	if c.lastErr != nil {
		s.Error = c.lastErr.Error()
	}
	if c.loaded {
		at := c.loadedAt
		s.LoadedAt = &at
	}
	return s
}

// StatusReporter is implemented by every Controller regardless of its item type.
type StatusReporter interface {
	Name() string
	Status() Status
	Load(ctx context.Context) error
}
