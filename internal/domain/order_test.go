package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewOrder(t *testing.T) {
	cart := CartSnapshot{
		UserID: 7,
		Items: []CartItem{
			{ProductID: 101, ProductName: "Keyboard", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
			{ProductID: 202, ProductName: "Mouse", UnitPrice: decimal.RequireFromString("4.25"), Quantity: 3},
		},
		// the cart's own total is ignored; the order computes its own
		TotalAmount: decimal.RequireFromString("999"),
	}

	order := NewOrder(7, "buyer@example.com", cart)

	if order.Status != OrderStatusPlaced {
		t.Errorf("expected status %s, got %s", OrderStatusPlaced, order.Status)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("32.75")) {
		t.Errorf("expected total 32.75, got %s", order.TotalAmount)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if order.Items[1].ProductName != "Mouse" || order.Items[1].Quantity != 3 {
		t.Errorf("unexpected snapshot: %+v", order.Items[1])
	}
	if order.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	lines := order.ReservationLines()
	if len(lines) != 2 || lines[0] != (ReservationLine{ProductID: 101, Quantity: 2}) {
		t.Errorf("unexpected reservation lines: %+v", lines)
	}
}

func TestOrderStatus(t *testing.T) {
	tests := []struct {
		status     OrderStatus
		valid      bool
		terminal   bool
		fulfilment bool
	}{
		{OrderStatusPlaced, true, false, false},
		{OrderStatusCancelling, true, false, false},
		{OrderStatusProcessing, true, false, true},
		{OrderStatusShipped, true, false, true},
		{OrderStatusDelivered, true, true, true},
		{OrderStatusCancelled, true, true, false},
		{OrderStatus("LOST"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.status.Fulfilment(); got != tt.fulfilment {
				t.Errorf("Fulfilment() = %v, want %v", got, tt.fulfilment)
			}
		})
	}
}
