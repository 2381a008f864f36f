package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lverdier/boutique/internal/database"
	"github.com/lverdier/boutique/internal/models"
)

type OrderRepository struct {
	db *database.DB
}

func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, status, total_cents, payment_provider, payment_ref,
	shipping_name, shipping_address, shipping_city, shipping_zip, shipping_country,
	paid_at, created_at, updated_at`

func scanOrderRow(scanner rowScanner) (*models.Order, error) {
	var order models.Order

	err := scanner.Scan(
		&order.ID, &order.UserID, &order.Status, &order.TotalCents,
		&order.PaymentProvider, &order.PaymentRef,
		&order.ShippingName, &order.ShippingAddress, &order.ShippingCity,
		&order.ShippingZip, &order.ShippingCountry,
		&order.PaidAt, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &order, nil
}

// CreateFromCart persists a new pending order with its item snapshots,
// decrements product stock, and clears the cart in one transaction.
// Stock rows are decremented with a guarded UPDATE so two checkouts
// cannot both take the last unit.
func (r *OrderRepository) CreateFromCart(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	now := time.Now()
	order.Status = models.OrderStatusPending
	order.CreatedAt = now
	order.UpdatedAt = now

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, item := range order.Items {
			tag, err := tx.Exec(ctx,
				`UPDATE products SET stock = stock - $2, updated_at = now()
				 WHERE id = $1 AND active = true AND stock >= $2`,
				item.ProductID, item.Quantity,
			)
			if err != nil {
				return database.MapPostgresError(err)
			}
			if tag.RowsAffected() == 0 {
				return models.ErrInsufficientStock
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, user_id, status, total_cents, payment_provider, payment_ref,
				shipping_name, shipping_address, shipping_city, shipping_zip, shipping_country,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			order.ID, order.UserID, order.Status, order.TotalCents,
			order.PaymentProvider, order.PaymentRef,
			order.ShippingName, order.ShippingAddress, order.ShippingCity,
			order.ShippingZip, order.ShippingCountry,
			order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}

		for _, item := range order.Items {
			item.ID = uuid.New().String()
			item.OrderID = order.ID
			_, err := tx.Exec(ctx, `
				INSERT INTO order_items (id, order_id, product_id, product_name, unit_price_cents, quantity, total_cents)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				item.ID, item.OrderID, item.ProductID, item.ProductName,
				item.UnitPriceCents, item.Quantity, item.TotalCents,
			)
			if err != nil {
				return database.MapPostgresError(err)
			}
		}

		_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, order.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// GetByID returns an order with its items
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrderRow(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	items, err := r.getItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *OrderRepository) getItems(ctx context.Context, orderID string) ([]*models.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, unit_price_cents, quantity, total_cents
		FROM order_items WHERE order_id = $1
	`

	rows, err := r.db.Pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.OrderItem, 0)
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.UnitPriceCents, &item.Quantity, &item.TotalCents,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

// ListByUser returns a user's orders, newest first
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	return scanOrderRows(rows)
}

// List returns all orders, optionally filtered by status, newest first
func (r *OrderRepository) List(ctx context.Context, status string, limit, offset int) ([]*models.Order, error) {
	var (
		query string
		args  []interface{}
	)

	if status != "" {
		query = `SELECT ` + orderColumns + ` FROM orders
			WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = []interface{}{status, limit, offset}
	} else {
		query = `SELECT ` + orderColumns + ` FROM orders
			ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = []interface{}{limit, offset}
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	return scanOrderRows(rows)
}

func scanOrderRows(rows pgx.Rows) ([]*models.Order, error) {
	defer rows.Close()

	orders := make([]*models.Order, 0)

	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return orders, nil
}

// MarkPaid transitions a pending order to paid, guarded by the current
// status so a double payment confirmation cannot stamp paid_at twice
func (r *OrderRepository) MarkPaid(ctx context.Context, id, provider, paymentRef string, paidAt time.Time) error {
	query := `
		UPDATE orders
		SET status = $2, payment_provider = $3, payment_ref = $4, paid_at = $5, updated_at = now()
		WHERE id = $1 AND status = $6
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, models.OrderStatusPaid, provider, paymentRef, paidAt, models.OrderStatusPending)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidState
	}
	return nil
}

// UpdateStatus sets a new order status, guarded by the expected current status
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	query := `UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`

	tag, err := r.db.Pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidState
	}
	return nil
}

// Restock returns cancelled order quantities to product stock
func (r *OrderRepository) Restock(ctx context.Context, orderID string) error {
	query := `
		UPDATE products p
		SET stock = p.stock + oi.quantity, updated_at = now()
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id
	`

	_, err := r.db.Pool.Exec(ctx, query, orderID)
	return err
}
