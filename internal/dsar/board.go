package dsar

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/consentdesk/console/internal/view"
)

// ViewName names the DSAR view in notifications and audit entries.
const ViewName = "dsar"

// Action names recorded for DSAR mutations.
const (
	ActionAutoProcess = "auto-process"
	actionStatus      = "status:"
)

// Processor performs DSAR mutations against the backend.
type Processor interface {
	AutoProcess(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// BoardConfig configures a Board.
type BoardConfig struct {
	Source    view.Source[Request]
	Processor Processor
	View      view.Config

	// Now returns the current time for recommendations. Default: time.Now.
	Now func() time.Time

	Logger zerolog.Logger
}

// Board is the DSAR automation dashboard: a refreshed request collection
// with recommendations computed on every read.
type Board struct {
	*view.Controller[Request]

	processor Processor
	now       func() time.Time
	logger    zerolog.Logger
}

// NewBoard creates a board. Records violating the request invariants are
// logged and kept as served.
func NewBoard(cfg BoardConfig) *Board {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.View.Name == "" {
		cfg.View.Name = ViewName
	}
	cfg.View.Logger = cfg.Logger

	logger := cfg.Logger.With().Str("component", "dsar_board").Logger()
	source := checkedSource{source: cfg.Source, logger: logger}

	return &Board{
		Controller: view.NewController[Request](source, cfg.View),
		processor:  cfg.Processor,
		now:        cfg.Now,
		logger:     logger,
	}
}

// checkedSource logs records that violate the request invariants.
type checkedSource struct {
	source view.Source[Request]
	logger zerolog.Logger
}

func (s checkedSource) List(ctx context.Context) ([]Request, error) {
	reqs, err := s.source.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		if verr := req.Validate(); verr != nil {
			s.logger.Warn().Err(verr).Str("request_id", req.ID).Msg("backend returned inconsistent request")
		}
	}
	return reqs, nil
}

// Now returns the board's current time.
func (b *Board) Now() time.Time {
	return b.now()
}

// Find returns the cached request with the given id.
func (b *Board) Find(id string) (Request, bool) {
	for _, req := range b.Items() {
		if req.ID == id {
			return req, true
		}
	}
	return Request{}, false
}

// Query builds a filter over requests by free text and status.
func Query(search, status string) view.Query[Request] {
	return view.Match[Request](search, status)
}

// Entries returns the visible requests with their recommendations.
func (b *Board) Entries(q view.Query[Request]) []Entry {
	return Annotate(b.Visible(q), b.now())
}

// Recommendations returns recommendations for the cached requests.
func (b *Board) Recommendations() []Entry {
	return Recommendations(b.Items(), b.now())
}

// Stats summarises the cached requests.
func (b *Board) Stats() Stats {
	return Summarize(b.Items(), b.now())
}

// Process auto-processes a request. Only one action per request runs at a
// time; a duplicate returns view.ErrActionInFlight.
func (b *Board) Process(ctx context.Context, id string) error {
	return b.TriggerAction(ctx, id, ActionAutoProcess, func(ctx context.Context) error {
		return b.processor.AutoProcess(ctx, id)
	})
}

// Transition requests a status change. The transition is checked against
// the cached record before anything is sent to the backend.
func (b *Board) Transition(ctx context.Context, id string, to Status) error {
	req, ok := b.Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	if !CanTransition(req.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, to)
	}

	return b.TriggerAction(ctx, id, actionStatus+string(to), func(ctx context.Context) error {
		return b.processor.UpdateStatus(ctx, id, to)
	})
}

// Candidates returns pending requests whose recommendation is at least
// minUrgency, in collection order.
func (b *Board) Candidates(minUrgency Urgency) []Entry {
	out := make([]Entry, 0)
	for _, entry := range b.Recommendations() {
		if entry.Recommendation.Urgency.Rank() >= minUrgency.Rank() {
			out = append(out, entry)
		}
	}
	return out
}
