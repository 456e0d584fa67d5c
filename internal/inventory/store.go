package inventory

import (
	"context"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

// Store persists inventory rows. All check-then-modify work goes through
// InTx so that every row read with Tx.Lock stays exclusively locked until
// the transaction ends.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Get(ctx context.Context, productID int64) (*domain.InventoryItem, error)
	Create(ctx context.Context, item domain.InventoryItem) (bool, error)
}

type Tx interface {
	// Lock returns the row for productID, or nil if it does not exist, and
	// holds an exclusive lock on it for the rest of the transaction.
	Lock(ctx context.Context, productID int64) (*domain.InventoryItem, error)
	Save(ctx context.Context, item *domain.InventoryItem) error
}
