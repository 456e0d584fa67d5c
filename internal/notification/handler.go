package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/joao-fontenele/orderflow-saga/internal/dedup"
	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

// Handler consumes order events. Each event is claimed in the dedup guard
// before the notifier runs, so a redelivered event never notifies twice.
type Handler struct {
	guard    *dedup.Guard
	notifier Notifier
	logger   *slog.Logger
}

func NewHandler(guard *dedup.Guard, notifier Notifier, logger *slog.Logger) *Handler {
	return &Handler{
		guard:    guard,
		notifier: notifier,
		logger:   logger,
	}
}

func (h *Handler) HandleOrderPlaced(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("skipping undecodable order placed event", "error", err)
		return nil
	}

	proceed, err := h.guard.MarkProcessedOrSkip(ctx, domain.TopicOrderPlaced, event.OrderID)
	if err != nil || !proceed {
		return err
	}

	h.logger.Info("received order placed event", "order_id", event.OrderID)
	if err := h.notifier.OrderPlaced(ctx, event); err != nil {
		h.logger.Error("failed to send order placed notification", "error", err, "order_id", event.OrderID)
	}

	return nil
}

func (h *Handler) HandleOrderCancelled(ctx context.Context, payload []byte) error {
	var event domain.OrderCancelledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("skipping undecodable order cancelled event", "error", err)
		return nil
	}

	proceed, err := h.guard.MarkProcessedOrSkip(ctx, domain.TopicOrderCancelled, event.OrderID)
	if err != nil || !proceed {
		return err
	}

	h.logger.Info("received order cancelled event", "order_id", event.OrderID)
	if err := h.notifier.OrderCancelled(ctx, event); err != nil {
		h.logger.Error("failed to send order cancelled notification", "error", err, "order_id", event.OrderID)
	}

	return nil
}
