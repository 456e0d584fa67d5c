package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "PLACED"
	OrderStatusCancelling OrderStatus = "CANCELLING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusCancelling, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Fulfilment reports whether s may be set through a plain status update.
// PLACED is only ever assigned at creation and CANCELLING/CANCELLED belong
// to the cancel saga.
func (s OrderStatus) Fulfilment() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

type OrderItem struct {
	ProductID   int64           `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Quantity    int             `json:"quantity" db:"quantity"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID          string          `json:"orderId" db:"id"`
	UserID      int64           `json:"userId" db:"user_id"`
	Email       string          `json:"email" db:"email"`
	Status      OrderStatus     `json:"status" db:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount" db:"total_amount"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	Items       []OrderItem     `json:"items"`
}

// NewOrder snapshots the cart lines into a PLACED order. The total is
// computed here once and never recomputed.
func NewOrder(userID int64, email string, cart CartSnapshot) *Order {
	order := &Order{
		UserID:    userID,
		Email:     email,
		Status:    OrderStatusPlaced,
		CreatedAt: time.Now().UTC(),
		Items:     make([]OrderItem, 0, len(cart.Items)),
	}

	total := decimal.Zero
	for _, line := range cart.Items {
		item := OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
		}
		total = total.Add(item.LineTotal())
		order.Items = append(order.Items, item)
	}
	order.TotalAmount = total

	return order
}

// ReservationLines returns the batch that releases exactly what this order
// reserved.
func (o *Order) ReservationLines() []ReservationLine {
	lines := make([]ReservationLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, ReservationLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
