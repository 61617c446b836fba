package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/consentdesk/console/internal/view"
)

// Job types accepted on the worker subscription.
const (
	JobSweep       = "dsar_sweep"
	JobRefresh     = "refresh"
	JobHealthCheck = "health_check"
)

// ErrUnknownJob is returned by Dispatch for unrecognised job types.
var ErrUnknownJob = errors.New("unknown job type")

// JobMessage is the payload of a worker job message.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// Dispatcher runs jobs by type.
type Dispatcher struct {
	sweep  *SweepJob
	views  []view.StatusReporter
	health view.StatusReporter
	logger zerolog.Logger
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Sweep *SweepJob

	// Views are reloaded by refresh jobs.
	Views []view.StatusReporter

	// Health is loaded by health checks to verify backend connectivity.
	Health view.StatusReporter

	Logger zerolog.Logger
}

// NewDispatcher creates a job dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		sweep:  cfg.Sweep,
		views:  cfg.Views,
		health: cfg.Health,
		logger: cfg.Logger,
	}
}

// Handle decodes and runs a job. It reports whether the message should be
// acknowledged: malformed payloads and failed jobs are retried, unknown job
// types are dropped.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) (ack bool, err error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return false, fmt.Errorf("parsing job message: %w", err)
	}

	err = d.Dispatch(ctx, msg.JobType)
	switch {
	case errors.Is(err, ErrUnknownJob):
		return true, err
	case err != nil:
		return false, err
	}
	return true, nil
}

// Dispatch runs a single job.
func (d *Dispatcher) Dispatch(ctx context.Context, jobType string) error {
	switch jobType {
	case JobSweep:
		return d.runSweep(ctx)
	case JobRefresh:
		return d.refresh(ctx)
	case JobHealthCheck:
		return d.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, jobType)
	}
}

func (d *Dispatcher) runSweep(ctx context.Context) error {
	if d.sweep == nil {
		return errors.New("sweep job not configured")
	}

	result := d.sweep.Run(ctx)
	if result.LoadError != nil {
		return fmt.Errorf("sweep load failed: %w", result.LoadError)
	}
	if result.Failed > result.Processed {
		return fmt.Errorf("too many sweep failures: %d/%d", result.Failed, result.Candidates)
	}
	return nil
}

func (d *Dispatcher) refresh(ctx context.Context) error {
	var errs []error
	for _, v := range d.views {
		if err := v.Load(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) healthCheck(ctx context.Context) error {
	if d.health == nil {
		return nil
	}

	d.logger.Debug().Msg("running health check")

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := d.health.Load(checkCtx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler feeds Pub/Sub messages to a Dispatcher.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Sweeps hold messages for a while; keep few outstanding.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	ack, err := h.dispatcher.Handle(ctx, msg.Data)
	switch {
	case err != nil && ack:
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
		return
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	msg.Ack()
}
