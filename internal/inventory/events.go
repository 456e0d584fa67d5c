package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

// ProductEventHandler creates the inventory row for every newly introduced
// product. Redelivered events find the row already present and are skipped.
type ProductEventHandler struct {
	svc    *Service
	logger *slog.Logger
}

func NewProductEventHandler(svc *Service, logger *slog.Logger) *ProductEventHandler {
	return &ProductEventHandler{
		svc:    svc,
		logger: logger,
	}
}

func (h *ProductEventHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.ProductCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("skipping undecodable product created event", "error", err)
		return nil
	}

	if event.ProductID <= 0 {
		h.logger.Warn("skipping product created event with missing product id")
		return nil
	}

	created, err := h.svc.Create(ctx, event.ProductID, event.InitialQuantity)
	if err != nil {
		return fmt.Errorf("create inventory item for product %d: %w", event.ProductID, err)
	}

	if !created {
		h.logger.Warn("inventory item already exists, skipping", "product_id", event.ProductID)
		return nil
	}

	h.logger.Info("inventory item created", "product_id", event.ProductID, "product_name", event.ProductName, "quantity", event.InitialQuantity)
	return nil
}
