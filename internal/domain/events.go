package domain

import "github.com/shopspring/decimal"

const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderCancelled = "order.cancelled"
	TopicProductCreated = "product.created"
)

type OrderPlacedEvent struct {
	OrderID     string          `json:"orderId"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone,omitempty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type OrderCancelledEvent struct {
	OrderID     string          `json:"orderId"`
	UserID      int64           `json:"userId"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone,omitempty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type ProductCreatedEvent struct {
	ProductID       int64  `json:"productId"`
	ProductName     string `json:"productName"`
	InitialQuantity int    `json:"initialQuantity"`
}
