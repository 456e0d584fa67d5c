package inventory

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "postgres")}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin inventory tx")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "commit inventory tx")
}

func (s *PostgresStore) Get(ctx context.Context, productID int64) (*domain.InventoryItem, error) {
	item := &domain.InventoryItem{}

	err := s.db.GetContext(ctx, item, `
		SELECT product_id, available_quantity, reserved_quantity
		FROM inventory_items
		WHERE product_id = $1
	`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get inventory item %d", productID)
	}

	return item, nil
}

func (s *PostgresStore) Create(ctx context.Context, item domain.InventoryItem) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (product_id, available_quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product_id) DO NOTHING
	`, item.ProductID, item.AvailableQuantity, item.ReservedQuantity)
	if err != nil {
		return false, errors.Wrapf(err, "create inventory item %d", item.ProductID)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}

	return rowsAffected == 1, nil
}

type postgresTx struct {
	tx *sqlx.Tx
}

func (t *postgresTx) Lock(ctx context.Context, productID int64) (*domain.InventoryItem, error) {
	item := &domain.InventoryItem{}

	err := t.tx.GetContext(ctx, item, `
		SELECT product_id, available_quantity, reserved_quantity
		FROM inventory_items
		WHERE product_id = $1
		FOR UPDATE
	`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "lock inventory item %d", productID)
	}

	return item, nil
}

func (t *postgresTx) Save(ctx context.Context, item *domain.InventoryItem) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE inventory_items
		SET available_quantity = $2, reserved_quantity = $3, updated_at = NOW()
		WHERE product_id = $1
	`, item.ProductID, item.AvailableQuantity, item.ReservedQuantity)

	return errors.Wrapf(err, "save inventory item %d", item.ProductID)
}
