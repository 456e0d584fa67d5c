package domain

import "github.com/shopspring/decimal"

type CartItem struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
}

type CartSnapshot struct {
	UserID      int64           `json:"userId"`
	Items       []CartItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

func (c CartSnapshot) Empty() bool {
	return len(c.Items) == 0
}

func (c CartSnapshot) ReservationLines() []ReservationLine {
	lines := make([]ReservationLine, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, ReservationLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

type UserProfile struct {
	AuthUserID int64  `json:"authUserId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone"`
}
