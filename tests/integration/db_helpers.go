package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lverdier/boutique/internal/database"
	"github.com/lverdier/boutique/internal/models"
	"github.com/lverdier/boutique/pkg/auth"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("boutique"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dbWrapper := &database.DB{
		Pool: pool,
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         dbWrapper,
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	goose.SetLogger(log.New(io.Discard, "", 0))

	// Goose needs a stdlib DB connection
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"notifications",
		"invoice_items",
		"invoices",
		"order_items",
		"orders",
		"cart_items",
		"products",
		"login_guards",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// SeedUser inserts a test user with hashed password
func SeedUser(ctx context.Context, pool *pgxpool.Pool, email, password string) (*models.User, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'customer', NOW(), NOW())
		RETURNING id, email, password_hash, name, role, created_at, updated_at
	`

	var user models.User
	err = pool.QueryRow(ctx, query, uuid.New().String(), email, hashedPassword, "Test User").Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &user, nil
}

// SeedProduct inserts a test product
func SeedProduct(ctx context.Context, pool *pgxpool.Pool, name string, priceCents int64, stock int) (*models.Product, error) {
	query := `
		INSERT INTO products (id, slug, name, description, price_cents, stock, category, active, created_at, updated_at)
		VALUES ($1, $2, $3, '', $4, $5, 'papeterie', true, NOW(), NOW())
		RETURNING id, slug, name, price_cents, stock
	`

	id := uuid.New().String()
	var product models.Product
	err := pool.QueryRow(ctx, query, id, "p-"+id[:8], name, priceCents, stock).Scan(
		&product.ID,
		&product.Slug,
		&product.Name,
		&product.PriceCents,
		&product.Stock,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}

	return &product, nil
}

// SeedPaidOrder inserts a paid order with one snapshotted item
func SeedPaidOrder(ctx context.Context, pool *pgxpool.Pool, userID string, totalCents int64) (*models.Order, error) {
	orderID := uuid.New().String()
	paidAt := time.Now().Add(-1 * time.Hour)

	_, err := pool.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, total_cents, payment_provider, payment_ref,
			shipping_name, shipping_address, shipping_city, shipping_zip, shipping_country,
			paid_at, created_at, updated_at)
		VALUES ($1, $2, 'paid', $3, 'card', 'card_test', 'Test User', '1 rue Test', 'Paris', '75001', 'FR',
			$4, NOW(), NOW())`,
		orderID, userID, totalCents, paidAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO order_items (id, order_id, product_id, product_name, unit_price_cents, quantity, total_cents)
		VALUES ($1, $2, $3, 'Carnet ligné', $4, 1, $4)`,
		uuid.New().String(), orderID, uuid.New().String(), totalCents,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order item: %w", err)
	}

	return &models.Order{ID: orderID, UserID: userID, Status: models.OrderStatusPaid, TotalCents: totalCents, PaidAt: &paidAt}, nil
}
