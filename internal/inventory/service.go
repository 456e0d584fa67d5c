package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

var (
	ErrInvalidBatch  = errors.New("invalid reservation batch")
	ErrItemNotFound  = errors.New("inventory item not found")
	ErrNegativeStock = errors.New("available quantity cannot go negative")
)

// maxQuantity is the largest quantity an inventory column holds.
const maxQuantity = math.MaxInt32

// errRejected aborts a reservation transaction after the result has been
// recorded; it never leaves this package.
var errRejected = errors.New("reservation rejected")

// Service is the reservation engine. Reserve and Release are all-or-nothing
// over a batch and take row locks in ascending product id order, so batches
// touching overlapping products in different orders cannot deadlock.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

func (s *Service) Get(ctx context.Context, productID int64) (*domain.InventoryItem, error) {
	return s.store.Get(ctx, productID)
}

// Create introduces a product with its initial stock. It reports false when
// the product already has an inventory row.
func (s *Service) Create(ctx context.Context, productID int64, initialQuantity int) (bool, error) {
	if productID <= 0 {
		return false, ErrInvalidBatch
	}
	return s.store.Create(ctx, domain.InventoryItem{
		ProductID:         productID,
		AvailableQuantity: max(0, initialQuantity),
	})
}

func (s *Service) Reserve(ctx context.Context, lines []domain.ReservationLine) (domain.ReservationResult, error) {
	b, err := newBatch(lines)
	if err != nil {
		return domain.ReservationResult{}, err
	}

	var result domain.ReservationResult
	err = s.store.InTx(ctx, func(tx Tx) error {
		locked, err := b.lock(ctx, tx)
		if err != nil {
			return err
		}

		for _, line := range b.lines {
			item := locked[line.ProductID]
			if item == nil {
				result = domain.Rejected(fmt.Sprintf("Inventory item missing for productId: %d", line.ProductID))
				return errRejected
			}
			if item.AvailableQuantity < line.Quantity {
				result = domain.Rejected(fmt.Sprintf("Insufficient stock for productId: %d", line.ProductID))
				return errRejected
			}
		}

		for _, line := range b.lines {
			item := locked[line.ProductID]
			item.AvailableQuantity -= line.Quantity
			item.ReservedQuantity += line.Quantity
			if err := tx.Save(ctx, item); err != nil {
				return err
			}
		}

		result = domain.Reserved()
		return nil
	})
	if errors.Is(err, errRejected) {
		s.logger.Info("reservation rejected", "reason", result.Message, "lines", len(b.lines))
		return result, nil
	}
	if err != nil {
		return domain.ReservationResult{}, err
	}

	s.logger.Info("inventory reserved", "lines", len(b.lines))
	return result, nil
}

// Release credits the batch back. Rows that no longer exist are skipped and
// there is no upper bound against what was originally reserved.
func (s *Service) Release(ctx context.Context, lines []domain.ReservationLine) (domain.ReservationResult, error) {
	b, err := newBatch(lines)
	if err != nil {
		return domain.ReservationResult{}, err
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		locked, err := b.lock(ctx, tx)
		if err != nil {
			return err
		}

		for _, line := range b.lines {
			item := locked[line.ProductID]
			if item == nil {
				s.logger.Warn("release skipped for missing inventory item", "product_id", line.ProductID)
				continue
			}
			item.AvailableQuantity += line.Quantity
			item.ReservedQuantity = max(0, item.ReservedQuantity-line.Quantity)
			if err := tx.Save(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.ReservationResult{}, err
	}

	s.logger.Info("inventory released", "lines", len(b.lines))
	return domain.Released(), nil
}

// Adjust applies an operator correction to the available quantity.
func (s *Service) Adjust(ctx context.Context, productID int64, delta int) (*domain.InventoryItem, error) {
	var adjusted *domain.InventoryItem

	err := s.store.InTx(ctx, func(tx Tx) error {
		item, err := tx.Lock(ctx, productID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrItemNotFound
		}
		if item.AvailableQuantity+delta < 0 {
			return ErrNegativeStock
		}
		item.AvailableQuantity += delta
		adjusted = item
		return tx.Save(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("inventory adjusted", "product_id", productID, "delta", delta, "available", adjusted.AvailableQuantity)
	return adjusted, nil
}

// batch is a reservation request with duplicate products merged. lines keeps
// first-appearance order so rejections name the first failing product the
// caller sent.
type batch struct {
	lines []domain.ReservationLine
}

func newBatch(lines []domain.ReservationLine) (batch, error) {
	if len(lines) == 0 {
		return batch{}, ErrInvalidBatch
	}

	index := make(map[int64]int, len(lines))
	merged := make([]domain.ReservationLine, 0, len(lines))
	for _, line := range lines {
		if line.ProductID <= 0 || line.Quantity <= 0 || line.Quantity > maxQuantity {
			return batch{}, ErrInvalidBatch
		}
		if i, ok := index[line.ProductID]; ok {
			if merged[i].Quantity > maxQuantity-line.Quantity {
				return batch{}, ErrInvalidBatch
			}
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}

	return batch{lines: merged}, nil
}

func (b batch) lock(ctx context.Context, tx Tx) (map[int64]*domain.InventoryItem, error) {
	ids := make([]int64, 0, len(b.lines))
	for _, line := range b.lines {
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)

	locked := make(map[int64]*domain.InventoryItem, len(ids))
	for _, id := range ids {
		item, err := tx.Lock(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = item
	}
	return locked, nil
}
