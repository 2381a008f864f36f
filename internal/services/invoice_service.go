package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lverdier/boutique/internal/models"
)

// InvoiceRepository defines the persistence interface for invoices
type InvoiceRepository interface {
	HighestSequence(ctx context.Context, year int) (int, error)
	ExistsForOrder(ctx context.Context, orderID string) (bool, error)
	CreateWithItems(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error)
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Invoice, error)
	List(ctx context.Context, limit, offset int) ([]*models.Invoice, error)
}

// OrderGetter is the slice of the order repository invoicing needs
type OrderGetter interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
}

// NotificationCreator emits notification records to users
type NotificationCreator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// InvoiceConfig holds invoicing policy
type InvoiceConfig struct {
	DueDays int
}

// Sequence numbers are zero-padded to 4 digits; past 9999 in one year
// the padding (and lexical sort order) would silently break, so
// generation fails loudly instead.
const maxSequencePerYear = 9999

// sequenceRetries bounds the retry loop on invoice number collisions
const sequenceRetries = 3

// InvoiceService converts paid orders into immutable invoices with
// unique, per-year sequential numbers
type InvoiceService struct {
	repo          InvoiceRepository
	orders        OrderGetter
	notifications NotificationCreator
	mailer        InvoiceMailer
	config        InvoiceConfig
	logger        *slog.Logger
}

// InvoiceMailer sends the invoice-issued email. May be nil when email
// delivery is disabled.
type InvoiceMailer interface {
	SendInvoiceIssued(ctx context.Context, email, invoiceNumber string, totalCents int64, dueDate time.Time) error
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(repo InvoiceRepository, orders OrderGetter, notifications NotificationCreator, mailer InvoiceMailer, config InvoiceConfig, logger *slog.Logger) *InvoiceService {
	return &InvoiceService{
		repo:          repo,
		orders:        orders,
		notifications: notifications,
		mailer:        mailer,
		config:        config,
		logger:        logger,
	}
}

// InvoiceSummary is returned to the caller after generation
type InvoiceSummary struct {
	InvoiceID  string
	Number     string
	TotalCents int64
	DueDate    time.Time
}

// FormatNumber builds the invoice number "{year}-{seq:04d}"
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("%d-%04d", year, seq)
}

// GenerateInvoice issues the invoice for a paid order. At most one
// invoice exists per order; the number is allocated from the per-year
// sequence and the insert retried on number collisions, relying on the
// UNIQUE constraint to arbitrate concurrent generations.
func (s *InvoiceService) GenerateInvoice(ctx context.Context, orderID string, ownerEmail string) (*InvoiceSummary, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load order for invoicing", slog.String("order_id", orderID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if order.Status != models.OrderStatusPaid {
		s.logger.Info("invoice refused: order not paid",
			slog.String("order_id", orderID),
			slog.String("status", order.Status))
		return nil, models.ErrInvalidState
	}

	exists, err := s.repo.ExistsForOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("failed to check existing invoice", slog.String("order_id", orderID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if exists {
		return nil, models.ErrConflict
	}

	paidAt := time.Now()
	if order.PaidAt != nil {
		paidAt = *order.PaidAt
	}
	dueDate := paidAt.AddDate(0, 0, s.config.DueDays)

	items := make([]*models.InvoiceItem, 0, len(order.Items))
	var total int64
	for _, line := range order.Items {
		lineTotal := line.UnitPriceCents * int64(line.Quantity)
		items = append(items, &models.InvoiceItem{
			ProductName:    line.ProductName,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			TotalCents:     lineTotal,
		})
		total += lineTotal
	}

	var created *models.Invoice
	for attempt := 0; attempt < sequenceRetries; attempt++ {
		year := time.Now().Year()

		highest, err := s.repo.HighestSequence(ctx, year)
		if err != nil {
			s.logger.Error("failed to read invoice sequence", slog.Int("year", year), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		seq := highest + 1
		if seq > maxSequencePerYear {
			s.logger.Error("invoice sequence exhausted", slog.Int("year", year))
			return nil, models.ErrSequenceExhausted
		}

		invoice := &models.Invoice{
			Number:        FormatNumber(year, seq),
			OrderID:       order.ID,
			UserID:        order.UserID,
			TotalCents:    total,
			TaxRateBP:     0,
			TaxNote:       models.DefaultTaxNote,
			DueDate:       dueDate,
			PaymentStatus: models.InvoicePaymentPending,
			Items:         items,
		}

		created, err = s.repo.CreateWithItems(ctx, invoice)
		if err == nil {
			break
		}
		if !errors.Is(err, models.ErrConflict) {
			s.logger.Error("failed to persist invoice", slog.String("order_id", orderID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		// A conflict is either the number (another generation won the
		// sequence race - retry with a fresh one) or the order_id
		// (someone invoiced this order concurrently - give up)
		exists, checkErr := s.repo.ExistsForOrder(ctx, orderID)
		if checkErr != nil {
			s.logger.Error("failed to re-check existing invoice", slog.String("order_id", orderID), slog.Any("error", checkErr))
			return nil, models.ErrInternalServer
		}
		if exists {
			return nil, models.ErrConflict
		}

		s.logger.Warn("invoice number collision, retrying",
			slog.String("order_id", orderID),
			slog.Int("attempt", attempt+1))
		created = nil
	}

	if created == nil {
		s.logger.Error("invoice number allocation failed after retries", slog.String("order_id", orderID))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("invoice issued",
		slog.String("invoice_id", created.ID),
		slog.String("number", created.Number),
		slog.String("order_id", order.ID))

	// Notification and email are best-effort; the invoice is already committed
	notification := &models.Notification{
		UserID:  order.UserID,
		Type:    models.NotificationInvoiceIssued,
		Title:   "Facture " + created.Number,
		Message: fmt.Sprintf("Votre facture %s est disponible dans votre espace client.", created.Number),
		OrderID: &order.ID,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		s.logger.Error("failed to create invoice notification",
			slog.String("invoice_id", created.ID), slog.Any("error", err))
	}

	if s.mailer != nil && ownerEmail != "" {
		if err := s.mailer.SendInvoiceIssued(ctx, ownerEmail, created.Number, created.TotalCents, created.DueDate); err != nil {
			s.logger.Error("failed to send invoice email",
				slog.String("invoice_id", created.ID), slog.Any("error", err))
		}
	}

	return &InvoiceSummary{
		InvoiceID:  created.ID,
		Number:     created.Number,
		TotalCents: created.TotalCents,
		DueDate:    created.DueDate,
	}, nil
}

// GetInvoice returns an invoice for its owner; admins may read any invoice
func (s *InvoiceService) GetInvoice(ctx context.Context, id, userID string, isAdmin bool) (*models.Invoice, error) {
	invoice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get invoice", slog.String("invoice_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !isAdmin && invoice.UserID != userID {
		return nil, models.ErrForbidden
	}

	return invoice, nil
}

// ListInvoices returns the caller's invoices, or all invoices for admins
func (s *InvoiceService) ListInvoices(ctx context.Context, userID string, isAdmin bool, limit, offset int) ([]*models.Invoice, error) {
	var (
		invoices []*models.Invoice
		err      error
	)

	if isAdmin {
		invoices, err = s.repo.List(ctx, limit, offset)
	} else {
		invoices, err = s.repo.ListByUser(ctx, userID, limit, offset)
	}
	if err != nil {
		s.logger.Error("failed to list invoices", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return invoices, nil
}
