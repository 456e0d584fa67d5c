package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/orderflow-saga/internal/telemetry"
)

const (
	DefaultRetention = 24 * time.Hour

	keyFormat = "dedup:%s:%s"
)

type Guard struct {
	store     Store
	retention time.Duration
	metrics   *telemetry.ConsumerMetrics
	logger    *slog.Logger
}

func NewGuard(store Store, retention time.Duration, metrics *telemetry.ConsumerMetrics, logger *slog.Logger) *Guard {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if metrics == nil {
		metrics = telemetry.NoopConsumerMetrics()
	}

	return &Guard{
		store:     store,
		retention: retention,
		metrics:   metrics,
		logger:    logger,
	}
}

// MarkProcessedOrSkip reports whether the caller should handle the event.
// It is true only for the first sighting of (eventType, orderID) inside the
// retention window. Events without an order id are never processed. A
// store error is returned so the message stays unacknowledged.
func (g *Guard) MarkProcessedOrSkip(ctx context.Context, eventType, orderID string) (bool, error) {
	if orderID == "" {
		g.logger.Warn("dropping event without order id", "event_type", eventType)
		return false, nil
	}

	claimed, err := g.store.Claim(ctx, Key(eventType, orderID), g.retention)
	if err != nil {
		return false, err
	}

	if !claimed {
		g.metrics.Skipped(ctx, eventType)
		g.logger.Info("skipping duplicate event", "event_type", eventType, "order_id", orderID)
		return false, nil
	}

	g.metrics.Processed(ctx, eventType)
	return true, nil
}

func Key(eventType, orderID string) string {
	return fmt.Sprintf(keyFormat, eventType, orderID)
}
