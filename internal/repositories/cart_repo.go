package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lverdier/boutique/internal/database"
	"github.com/lverdier/boutique/internal/models"
)

type CartRepository struct {
	pool *pgxpool.Pool
}

func NewCartRepository(db *database.DB) *CartRepository {
	return &CartRepository{pool: db.Pool}
}

// GetLines returns the user's cart joined with live product data
func (r *CartRepository) GetLines(ctx context.Context, userID string) ([]*models.CartLine, error) {
	query := `
		SELECT c.product_id, p.name, p.slug, p.price_cents, c.quantity, p.stock, p.active
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.added_at
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	defer rows.Close()

	lines := make([]*models.CartLine, 0)
	for rows.Next() {
		var line models.CartLine
		if err := rows.Scan(
			&line.ProductID, &line.ProductName, &line.Slug,
			&line.UnitCents, &line.Quantity, &line.Stock, &line.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, &line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return lines, nil
}

// AddItem inserts a cart item or bumps its quantity when already present
func (r *CartRepository) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity, added_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity
	`

	_, err := r.pool.Exec(ctx, query, userID, productID, quantity)
	return database.MapPostgresError(err)
}

// SetQuantity replaces the quantity of an existing cart item
func (r *CartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	query := `UPDATE cart_items SET quantity = $3 WHERE user_id = $1 AND product_id = $2`

	tag, err := r.pool.Exec(ctx, query, userID, productID, quantity)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RemoveItem deletes a single cart item
func (r *CartRepository) RemoveItem(ctx context.Context, userID, productID string) error {
	query := `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	tag, err := r.pool.Exec(ctx, query, userID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
