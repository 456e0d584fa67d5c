package orders

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
)

var (
	ErrNotFound       = errors.New("order not found")
	ErrStatusConflict = errors.New("order status changed concurrently")
)

type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: sqlx.NewDb(db, "postgres")}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin order tx")
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, email, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, order.ID, order.UserID, order.Email, order.Status, order.TotalAmount, order.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, product_name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, order.ID, i, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity)
		if err != nil {
			return errors.Wrapf(err, "insert order item %d", item.ProductID)
		}
	}

	return errors.Wrap(tx.Commit(), "commit order tx")
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	order := &domain.Order{}
	err := r.db.GetContext(ctx, order, `
		SELECT id, user_id, email, status, total_amount, created_at
		FROM orders
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %s", id)
	}

	order.Items = []domain.OrderItem{}
	err = r.db.SelectContext(ctx, &order.Items, `
		SELECT product_id, product_name, unit_price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY line_no
	`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get items of order %s", id)
	}

	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT id, user_id, email, status, total_amount, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of user %d", userID)
	}

	if len(orders) == 0 {
		return []domain.Order{}, nil
	}

	index := make(map[string]int, len(orders))
	ids := make([]string, 0, len(orders))
	for i := range orders {
		orders[i].Items = []domain.OrderItem{}
		index[orders[i].ID] = i
		ids = append(ids, orders[i].ID)
	}

	rows, err := r.db.QueryxContext(ctx, `
		SELECT order_id, product_id, product_name, unit_price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no
	`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "list order items")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var row struct {
			OrderID string `db:"order_id"`
			domain.OrderItem
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		i := index[row.OrderID]
		orders[i].Items = append(orders[i].Items, row.OrderItem)
	}

	return orders, errors.Wrap(rows.Err(), "iterate order items")
}

// TransitionStatus moves the order from one status to another only if it is
// still in from. ErrStatusConflict means another writer changed it first.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return errors.Wrapf(err, "transition order %s to %s", id, to)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}

	if rowsAffected == 0 {
		return ErrStatusConflict
	}

	return nil
}
