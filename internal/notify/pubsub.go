package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Publisher sends one encoded notification to a message bus.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) error
}

// PubSubNotifier publishes notifications as JSON messages so that other
// services (paging, chat bridges) can react to them.
type PubSubNotifier struct {
	publisher Publisher
	timeout   time.Duration
	logger    zerolog.Logger
}

// PubSubNotifierConfig configures a PubSubNotifier.
type PubSubNotifierConfig struct {
	Publisher Publisher

	// Timeout bounds each publish. Default: 5 seconds.
	Timeout time.Duration

	Logger zerolog.Logger
}

// NewPubSubNotifier creates a notifier publishing through p.
func NewPubSubNotifier(cfg PubSubNotifierConfig) *PubSubNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &PubSubNotifier{
		publisher: cfg.Publisher,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
}

// Notify publishes n. Failures are logged; notifications are best effort.
func (p *PubSubNotifier) Notify(ctx context.Context, n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		p.logger.Error().Err(err).Str("notification_id", n.ID).Msg("failed to encode notification")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	attrs := map[string]string{
		"level":  string(n.Level),
		"source": n.Source,
	}
	if err := p.publisher.Publish(ctx, data, attrs); err != nil {
		p.logger.Warn().Err(err).
			Str("notification_id", n.ID).
			Str("level", string(n.Level)).
			Msg("failed to publish notification")
	}
}

// TopicPublisher publishes to a Google Cloud Pub/Sub topic.
type TopicPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
}

// NewTopicPublisher connects to Pub/Sub and binds a publisher to topic.
func NewTopicPublisher(ctx context.Context, projectID, topic string) (*TopicPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &TopicPublisher{
		client:    client,
		publisher: client.Publisher(topic),
		topic:     topic,
	}, nil
}

// Publish sends data and waits for the server to acknowledge it.
func (t *TopicPublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	result := t.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attributes,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing to %s: %w", t.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (t *TopicPublisher) Close() error {
	t.publisher.Stop()
	return t.client.Close()
}
