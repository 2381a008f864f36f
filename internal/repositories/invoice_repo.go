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

type InvoiceRepository struct {
	db *database.DB
}

func NewInvoiceRepository(db *database.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `id, number, order_id, user_id, total_cents, tax_rate_bp, tax_note,
	due_date, payment_status, issued_at`

func scanInvoiceRow(scanner rowScanner) (*models.Invoice, error) {
	var invoice models.Invoice

	err := scanner.Scan(
		&invoice.ID, &invoice.Number, &invoice.OrderID, &invoice.UserID,
		&invoice.TotalCents, &invoice.TaxRateBP, &invoice.TaxNote,
		&invoice.DueDate, &invoice.PaymentStatus, &invoice.IssuedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &invoice, nil
}

// HighestSequence returns the highest numeric suffix among invoice
// numbers of the given year, 0 when none exist yet. The number format is
// "{year}-{seq:04d}", so the suffix is everything after the dash.
func (r *InvoiceRepository) HighestSequence(ctx context.Context, year int) (int, error) {
	query := `
		SELECT COALESCE(MAX(split_part(number, '-', 2)::int), 0)
		FROM invoices
		WHERE number LIKE $1
	`

	var highest int
	err := r.db.Pool.QueryRow(ctx, query, fmt.Sprintf("%d-%%", year)).Scan(&highest)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return highest, nil
}

// ExistsForOrder reports whether an invoice was already issued for an order
func (r *InvoiceRepository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM invoices WHERE order_id = $1)`

	var exists bool
	err := r.db.Pool.QueryRow(ctx, query, orderID).Scan(&exists)
	return exists, err
}

// CreateWithItems persists the invoice and its line items atomically.
// The UNIQUE constraints on number and order_id surface as
// models.ErrConflict; the caller retries number conflicts with a fresh
// sequence.
func (r *InvoiceRepository) CreateWithItems(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	invoice.ID = uuid.New().String()
	if invoice.IssuedAt.IsZero() {
		invoice.IssuedAt = time.Now()
	}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoices (id, number, order_id, user_id, total_cents, tax_rate_bp, tax_note,
				due_date, payment_status, issued_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			invoice.ID, invoice.Number, invoice.OrderID, invoice.UserID,
			invoice.TotalCents, invoice.TaxRateBP, invoice.TaxNote,
			invoice.DueDate, invoice.PaymentStatus, invoice.IssuedAt,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}

		for _, item := range invoice.Items {
			item.ID = uuid.New().String()
			item.InvoiceID = invoice.ID
			_, err := tx.Exec(ctx, `
				INSERT INTO invoice_items (id, invoice_id, product_name, unit_price_cents, quantity, total_cents)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				item.ID, item.InvoiceID, item.ProductName,
				item.UnitPriceCents, item.Quantity, item.TotalCents,
			)
			if err != nil {
				return database.MapPostgresError(err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return invoice, nil
}

// GetByID returns an invoice with its line items
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	invoice, err := scanInvoiceRow(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	items, err := r.getItems(ctx, id)
	if err != nil {
		return nil, err
	}
	invoice.Items = items

	return invoice, nil
}

// GetByOrderID returns the invoice issued for an order, if any
func (r *InvoiceRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE order_id = $1`

	invoice, err := scanInvoiceRow(r.db.Pool.QueryRow(ctx, query, orderID))
	if err != nil {
		return nil, err
	}

	items, err := r.getItems(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}
	invoice.Items = items

	return invoice, nil
}

func (r *InvoiceRepository) getItems(ctx context.Context, invoiceID string) ([]*models.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, product_name, unit_price_cents, quantity, total_cents
		FROM invoice_items WHERE invoice_id = $1
	`

	rows, err := r.db.Pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.InvoiceItem, 0)
	for rows.Next() {
		var item models.InvoiceItem
		if err := rows.Scan(
			&item.ID, &item.InvoiceID, &item.ProductName,
			&item.UnitPriceCents, &item.Quantity, &item.TotalCents,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

// ListByUser returns a user's invoices, newest first
func (r *InvoiceRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE user_id = $1 ORDER BY issued_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}

	return scanInvoiceRows(rows)
}

// List returns all invoices, newest first
func (r *InvoiceRepository) List(ctx context.Context, limit, offset int) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		ORDER BY issued_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}

	return scanInvoiceRows(rows)
}

func scanInvoiceRows(rows pgx.Rows) ([]*models.Invoice, error) {
	defer rows.Close()

	invoices := make([]*models.Invoice, 0)

	for rows.Next() {
		invoice, err := scanInvoiceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return invoices, nil
}
