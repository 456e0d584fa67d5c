package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

// Notifier delivers customer notifications for order events.
type Notifier interface {
	OrderPlaced(ctx context.Context, event domain.OrderPlacedEvent) error
	OrderCancelled(ctx context.Context, event domain.OrderCancelledEvent) error
}

type webhookPayload struct {
	Event       string          `json:"event"`
	OrderID     string          `json:"orderId"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone,omitempty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Timestamp   string          `json:"timestamp"`
}

// WebhookNotifier posts every notification as JSON to one endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: client,
		now:    time.Now,
	}
}

func (n *WebhookNotifier) OrderPlaced(ctx context.Context, event domain.OrderPlacedEvent) error {
	return n.post(ctx, webhookPayload{
		Event:       domain.TopicOrderPlaced,
		OrderID:     event.OrderID,
		Email:       event.Email,
		Phone:       event.Phone,
		TotalAmount: event.TotalAmount,
		Timestamp:   n.now().UTC().Format(time.RFC3339),
	})
}

func (n *WebhookNotifier) OrderCancelled(ctx context.Context, event domain.OrderCancelledEvent) error {
	return n.post(ctx, webhookPayload{
		Event:       domain.TopicOrderCancelled,
		OrderID:     event.OrderID,
		Email:       event.Email,
		Phone:       event.Phone,
		TotalAmount: event.TotalAmount,
		Timestamp:   n.now().UTC().Format(time.RFC3339),
	})
}

func (n *WebhookNotifier) post(ctx context.Context, payload webhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// LogNotifier is used when every channel is disabled: events are processed
// without sending anything.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) OrderPlaced(_ context.Context, event domain.OrderPlacedEvent) error {
	n.logger.Info("notification channels disabled, order placed event processed without sending", "order_id", event.OrderID)
	return nil
}

func (n *LogNotifier) OrderCancelled(_ context.Context, event domain.OrderCancelledEvent) error {
	n.logger.Info("notification channels disabled, order cancelled event processed without sending", "order_id", event.OrderID)
	return nil
}
