package inventory

import (
	"context"
	"log/slog"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

type ProductCatalog interface {
	ListProducts(ctx context.Context) ([]domain.ProductSnapshot, error)
}

// Seeder gives every catalog product without an inventory row a starting
// quantity. Existing rows are left alone.
type Seeder struct {
	catalog         ProductCatalog
	svc             *Service
	defaultQuantity int
	logger          *slog.Logger
}

func NewSeeder(catalog ProductCatalog, svc *Service, defaultQuantity int, logger *slog.Logger) *Seeder {
	return &Seeder{
		catalog:         catalog,
		svc:             svc,
		defaultQuantity: max(0, defaultQuantity),
		logger:          logger,
	}
}

// Seed returns how many rows it created. An unreachable catalog skips
// seeding; only store failures are returned.
func (s *Seeder) Seed(ctx context.Context) (int, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		s.logger.Warn("inventory seeding skipped, failed to fetch products", "error", err)
		return 0, nil
	}
	if len(products) == 0 {
		s.logger.Info("inventory seeding skipped, product list is empty")
		return 0, nil
	}

	created := 0
	for _, product := range products {
		if product.ID <= 0 {
			continue
		}
		ok, err := s.svc.Create(ctx, product.ID, s.defaultQuantity)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}

	s.logger.Info("inventory seeding completed", "created", created, "products", len(products))
	return created, nil
}
