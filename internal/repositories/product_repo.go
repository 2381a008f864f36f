package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/lverdier/boutique/internal/database"
	"github.com/lverdier/boutique/internal/models"
)

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{pool: db.Pool}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

const productColumns = "id, slug, name, description, price_cents, stock, category, image_urls, active, created_at, updated_at"

func scanProductRow(scanner rowScanner) (*models.Product, error) {
	var product models.Product
	var imageURLs pq.StringArray

	err := scanner.Scan(
		&product.ID, &product.Slug, &product.Name, &product.Description,
		&product.PriceCents, &product.Stock, &product.Category,
		&imageURLs, &product.Active, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	product.ImageURLs = imageURLs
	return &product, nil
}

func scanProductRows(rows pgx.Rows) ([]*models.Product, error) {
	defer rows.Close()

	products := make([]*models.Product, 0)

	for rows.Next() {
		product, err := scanProductRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}

// List returns active products matching the filter, newest first
func (r *ProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	builder := psql.Select(productColumns).
		From("products").
		Where(squirrel.Eq{"active": true}).
		OrderBy("created_at DESC")

	if filter.Category != "" {
		builder = builder.Where(squirrel.Eq{"category": filter.Category})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		builder = builder.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"description": pattern},
		})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build product query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	return scanProductRows(rows)
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return scanProductRow(r.pool.QueryRow(ctx, query, id))
}

func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = $1`
	return scanProductRow(r.pool.QueryRow(ctx, query, slug))
}

func (r *ProductRepository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	product.ID = uuid.New().String()

	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	product.Active = true

	query := `
		INSERT INTO products (id, slug, name, description, price_cents, stock, category, image_urls, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + productColumns

	return scanProductRow(r.pool.QueryRow(ctx, query,
		product.ID, product.Slug, product.Name, product.Description,
		product.PriceCents, product.Stock, product.Category,
		pq.StringArray(product.ImageURLs), product.Active,
		product.CreatedAt, product.UpdatedAt,
	))
}

func (r *ProductRepository) Update(ctx context.Context, id string, product *models.Product) (*models.Product, error) {
	product.UpdatedAt = time.Now()

	query := `
		UPDATE products
		SET name = $2, description = $3, price_cents = $4, stock = $5,
			category = $6, image_urls = $7, active = $8, updated_at = $9
		WHERE id = $1
		RETURNING ` + productColumns

	return scanProductRow(r.pool.QueryRow(ctx, query,
		id, product.Name, product.Description, product.PriceCents,
		product.Stock, product.Category, pq.StringArray(product.ImageURLs),
		product.Active, product.UpdatedAt,
	))
}

// Deactivate soft-deletes a product so existing orders keep their reference
func (r *ProductRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE products SET active = false, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
