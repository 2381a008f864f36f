package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lverdier/boutique/internal/models"
	"github.com/lverdier/boutique/internal/repositories"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION_TESTS") != "true" {
		fmt.Println("Skipping integration tests (set INTEGRATION_TESTS=true to run)")
		os.Exit(0)
	}

	ctx := context.Background()

	var err error
	testDB, err = SetupTestDatabase(ctx)
	if err != nil {
		fmt.Printf("Failed to set up test database: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := testDB.Teardown(ctx); err != nil {
		fmt.Printf("Failed to tear down test database: %v\n", err)
	}

	os.Exit(code)
}

func TestLoginGuardUpsert(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	guardRepo := repositories.NewLoginGuardRepository(testDB.DB)

	const key = "marie@example.com|203.0.113.7"
	const maxAttempts = 5
	blockedUntil := time.Now().Add(5 * time.Minute)
	expiresAt := time.Now().Add(24 * time.Hour)

	t.Run("counts failures up to the lockout threshold", func(t *testing.T) {
		for i := 1; i < maxAttempts; i++ {
			guard, err := guardRepo.RecordFailure(ctx, key, maxAttempts, blockedUntil, expiresAt)
			require.NoError(t, err)
			assert.Equal(t, i, guard.FailedCount)
			assert.Nil(t, guard.BlockedUntil, "no lockout before the threshold")
		}

		guard, err := guardRepo.RecordFailure(ctx, key, maxAttempts, blockedUntil, expiresAt)
		require.NoError(t, err)
		assert.Equal(t, maxAttempts, guard.FailedCount)
		require.NotNil(t, guard.BlockedUntil)
		assert.WithinDuration(t, blockedUntil, *guard.BlockedUntil, time.Second)
	})

	t.Run("failures during an active lockout do not extend it", func(t *testing.T) {
		laterBlock := time.Now().Add(30 * time.Minute)
		guard, err := guardRepo.RecordFailure(ctx, key, maxAttempts, laterBlock, expiresAt)
		require.NoError(t, err)
		assert.Equal(t, maxAttempts, guard.FailedCount)
		require.NotNil(t, guard.BlockedUntil)
		assert.WithinDuration(t, blockedUntil, *guard.BlockedUntil, time.Second)
	})

	t.Run("first failure after an elapsed lockout restarts the count", func(t *testing.T) {
		_, err := testDB.Pool.Exec(ctx,
			"UPDATE login_guards SET blocked_until = now() - interval '1 second' WHERE identity_key = $1", key)
		require.NoError(t, err)

		guard, err := guardRepo.RecordFailure(ctx, key, maxAttempts, time.Now().Add(5*time.Minute), expiresAt)
		require.NoError(t, err)
		assert.Equal(t, 1, guard.FailedCount)
		assert.Nil(t, guard.BlockedUntil)
	})

	t.Run("reset removes the record", func(t *testing.T) {
		require.NoError(t, guardRepo.Reset(ctx, key))

		_, err := guardRepo.Get(ctx, key)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestLoginGuardDeleteExpired(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	guardRepo := repositories.NewLoginGuardRepository(testDB.DB)

	_, err := guardRepo.RecordFailure(ctx, "stale@example.com|10.0.0.1", 5,
		time.Now().Add(5*time.Minute), time.Now().Add(-1*time.Minute))
	require.NoError(t, err)
	_, err = guardRepo.RecordFailure(ctx, "fresh@example.com|10.0.0.2", 5,
		time.Now().Add(5*time.Minute), time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	deleted, err := guardRepo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = guardRepo.Get(ctx, "stale@example.com|10.0.0.1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = guardRepo.Get(ctx, "fresh@example.com|10.0.0.2")
	assert.NoError(t, err)
}

func TestInvoiceNumbering(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	invoiceRepo := repositories.NewInvoiceRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "claire@example.com", "S3cure-pass!")
	require.NoError(t, err)

	year := time.Now().Year()

	newInvoice := func(orderID, number string) *models.Invoice {
		return &models.Invoice{
			Number:        number,
			OrderID:       orderID,
			UserID:        user.ID,
			TotalCents:    2450,
			TaxRateBP:     0,
			TaxNote:       models.DefaultTaxNote,
			DueDate:       time.Now().Add(30 * 24 * time.Hour),
			PaymentStatus: models.InvoicePaymentSettled,
			Items: []*models.InvoiceItem{
				{ProductName: "Carnet ligné", UnitPriceCents: 2450, Quantity: 1, TotalCents: 2450},
			},
		}
	}

	t.Run("sequence starts at zero for an empty year", func(t *testing.T) {
		seq, err := invoiceRepo.HighestSequence(ctx, year)
		require.NoError(t, err)
		assert.Equal(t, 0, seq)
	})

	t.Run("highest sequence tracks issued numbers", func(t *testing.T) {
		order, err := SeedPaidOrder(ctx, testDB.Pool, user.ID, 2450)
		require.NoError(t, err)

		created, err := invoiceRepo.CreateWithItems(ctx, newInvoice(order.ID, fmt.Sprintf("%d-0001", year)))
		require.NoError(t, err)
		require.Len(t, created.Items, 1)

		seq, err := invoiceRepo.HighestSequence(ctx, year)
		require.NoError(t, err)
		assert.Equal(t, 1, seq)
	})

	t.Run("duplicate number is a conflict", func(t *testing.T) {
		order, err := SeedPaidOrder(ctx, testDB.Pool, user.ID, 2450)
		require.NoError(t, err)

		_, err = invoiceRepo.CreateWithItems(ctx, newInvoice(order.ID, fmt.Sprintf("%d-0001", year)))
		assert.True(t, errors.Is(err, models.ErrConflict), "expected conflict, got %v", err)
	})

	t.Run("second invoice for the same order is a conflict", func(t *testing.T) {
		order, err := SeedPaidOrder(ctx, testDB.Pool, user.ID, 2450)
		require.NoError(t, err)

		_, err = invoiceRepo.CreateWithItems(ctx, newInvoice(order.ID, fmt.Sprintf("%d-0002", year)))
		require.NoError(t, err)

		_, err = invoiceRepo.CreateWithItems(ctx, newInvoice(order.ID, fmt.Sprintf("%d-0003", year)))
		assert.True(t, errors.Is(err, models.ErrConflict), "expected conflict, got %v", err)

		exists, err := invoiceRepo.ExistsForOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("numbering is scoped per year", func(t *testing.T) {
		seq, err := invoiceRepo.HighestSequence(ctx, year-1)
		require.NoError(t, err)
		assert.Equal(t, 0, seq)
	})
}

func TestOrderStatusGuards(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	orderRepo := repositories.NewOrderRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "paul@example.com", "S3cure-pass!")
	require.NoError(t, err)
	order, err := SeedPaidOrder(ctx, testDB.Pool, user.ID, 1200)
	require.NoError(t, err)

	t.Run("paying a paid order is rejected", func(t *testing.T) {
		paidAt := time.Now()
		err := orderRepo.MarkPaid(ctx, order.ID, "card", "card_again", paidAt)
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})

	t.Run("transition is applied only from the expected status", func(t *testing.T) {
		err := orderRepo.UpdateStatus(ctx, order.ID, models.OrderStatusPaid, models.OrderStatusShipped)
		require.NoError(t, err)

		err = orderRepo.UpdateStatus(ctx, order.ID, models.OrderStatusPaid, models.OrderStatusShipped)
		assert.ErrorIs(t, err, models.ErrInvalidState)

		fetched, err := orderRepo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusShipped, fetched.Status)
	})
}

func TestCancelledOrderRestocksProducts(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	orderRepo := repositories.NewOrderRepository(testDB.DB)
	productRepo := repositories.NewProductRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "nora@example.com", "S3cure-pass!")
	require.NoError(t, err)
	product, err := SeedProduct(ctx, testDB.Pool, "Stylo plume", 1800, 5)
	require.NoError(t, err)

	orderID := uuid.New().String()
	_, err = testDB.Pool.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, total_cents, payment_provider,
			shipping_name, shipping_address, shipping_city, shipping_zip, shipping_country)
		VALUES ($1, $2, 'pending', 3600, 'card', 'Nora', '2 rue Test', 'Lyon', '69001', 'FR')`,
		orderID, user.ID,
	)
	require.NoError(t, err)
	_, err = testDB.Pool.Exec(ctx, `
		INSERT INTO order_items (id, order_id, product_id, product_name, unit_price_cents, quantity, total_cents)
		VALUES ($1, $2, $3, $4, 1800, 2, 3600)`,
		uuid.New().String(), orderID, product.ID, product.Name,
	)
	require.NoError(t, err)

	require.NoError(t, orderRepo.UpdateStatus(ctx, orderID, models.OrderStatusPending, models.OrderStatusCancelled))
	require.NoError(t, orderRepo.Restock(ctx, orderID))

	fetched, err := productRepo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, fetched.Stock)
}
