package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// SagaMetrics counts saga outcomes for the orders service.
type SagaMetrics struct {
	placed        metric.Int64Counter
	failed        metric.Int64Counter
	compensations metric.Int64Counter
	cancelled     metric.Int64Counter
}

func NewSagaMetrics(meter metric.Meter) (*SagaMetrics, error) {
	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders placed successfully"))
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter("orders.place.failed",
		metric.WithDescription("Order placements that failed, by error kind"))
	if err != nil {
		return nil, err
	}

	compensations, err := meter.Int64Counter("orders.compensations",
		metric.WithDescription("Compensating inventory releases, by outcome"))
	if err != nil {
		return nil, err
	}

	cancelled, err := meter.Int64Counter("orders.cancelled",
		metric.WithDescription("Orders cancelled"))
	if err != nil {
		return nil, err
	}

	return &SagaMetrics{
		placed:        placed,
		failed:        failed,
		compensations: compensations,
		cancelled:     cancelled,
	}, nil
}

// NoopSagaMetrics records nothing.
func NoopSagaMetrics() *SagaMetrics {
	m, _ := NewSagaMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

// GlobalSagaMetrics builds the instruments on the global meter provider.
func GlobalSagaMetrics() (*SagaMetrics, error) {
	return NewSagaMetrics(otel.Meter("orderflow-saga/orders"))
}

func (m *SagaMetrics) OrderPlaced(ctx context.Context) {
	m.placed.Add(ctx, 1)
}

func (m *SagaMetrics) PlaceFailed(ctx context.Context, kind string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *SagaMetrics) Compensation(ctx context.Context, outcome string) {
	m.compensations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *SagaMetrics) OrderCancelled(ctx context.Context) {
	m.cancelled.Add(ctx, 1)
}

// ConsumerMetrics counts dedup decisions in event consumers.
type ConsumerMetrics struct {
	processed metric.Int64Counter
	skipped   metric.Int64Counter
}

func NewConsumerMetrics(meter metric.Meter) (*ConsumerMetrics, error) {
	processed, err := meter.Int64Counter("events.processed",
		metric.WithDescription("Events processed for the first time, by event type"))
	if err != nil {
		return nil, err
	}

	skipped, err := meter.Int64Counter("events.duplicates.skipped",
		metric.WithDescription("Redelivered events skipped by the dedup guard, by event type"))
	if err != nil {
		return nil, err
	}

	return &ConsumerMetrics{processed: processed, skipped: skipped}, nil
}

func NoopConsumerMetrics() *ConsumerMetrics {
	m, _ := NewConsumerMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

func GlobalConsumerMetrics() (*ConsumerMetrics, error) {
	return NewConsumerMetrics(otel.Meter("orderflow-saga/consumer"))
}

func (m *ConsumerMetrics) Processed(ctx context.Context, eventType string) {
	m.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *ConsumerMetrics) Skipped(ctx context.Context, eventType string) {
	m.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}
