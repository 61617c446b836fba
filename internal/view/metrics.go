package view

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/consentdesk/console/internal/view"

// Metrics holds the OpenTelemetry instruments shared by all views.
// A nil *Metrics records nothing.
type Metrics struct {
	loadDuration    metric.Float64Histogram
	loadTotal       metric.Int64Counter
	actionTotal     metric.Int64Counter
	actionsInFlight metric.Int64UpDownCounter
}

// NewMetrics creates view metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	loadDuration, err := meter.Float64Histogram(
		"console.view.load.duration",
		metric.WithDescription("Duration of view collection loads in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	loadTotal, err := meter.Int64Counter(
		"console.view.load.total",
		metric.WithDescription("Total number of view collection loads"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	actionTotal, err := meter.Int64Counter(
		"console.view.action.total",
		metric.WithDescription("Total number of record actions triggered from views"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}

	actionsInFlight, err := meter.Int64UpDownCounter(
		"console.view.actions_in_flight",
		metric.WithDescription("Number of record actions currently outstanding"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		loadDuration:    loadDuration,
		loadTotal:       loadTotal,
		actionTotal:     actionTotal,
		actionsInFlight: actionsInFlight,
	}, nil
}

func outcome(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("outcome", "failure")
	}
	return attribute.String("outcome", "success")
}

func (m *Metrics) recordLoad(view string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	// Background context so a cancelled load is still counted.
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("view", view), outcome(err))
	m.loadDuration.Record(ctx, duration.Seconds(), attrs)
	m.loadTotal.Add(ctx, 1, attrs)
}

func (m *Metrics) recordAction(view, action string, err error) {
	if m == nil {
		return
	}
	m.actionTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("view", view),
		attribute.String("action", action),
		outcome(err),
	))
}

func (m *Metrics) addInFlight(view string, delta int64) {
	if m == nil {
		return
	}
	m.actionsInFlight.Add(context.Background(), delta, metric.WithAttributes(attribute.String("view", view)))
}
