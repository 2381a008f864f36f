package services_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/lverdier/boutique/internal/models"
	"github.com/lverdier/boutique/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockInvoiceRepository implements InvoiceRepository in memory with the
// same uniqueness guarantees as the database constraints
type MockInvoiceRepository struct {
	byNumber map[string]*models.Invoice
	byOrder  map[string]*models.Invoice
	nextID   int
}

func NewMockInvoiceRepository() *MockInvoiceRepository {
	return &MockInvoiceRepository{
		byNumber: make(map[string]*models.Invoice),
		byOrder:  make(map[string]*models.Invoice),
	}
}

func (m *MockInvoiceRepository) HighestSequence(ctx context.Context, year int) (int, error) {
	highest := 0
	for number := range m.byNumber {
		var y, seq int
		if _, err := fmt.Sscanf(number, "%d-%04d", &y, &seq); err == nil && y == year && seq > highest {
			highest = seq
		}
	}
	return highest, nil
}

func (m *MockInvoiceRepository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	_, ok := m.byOrder[orderID]
	return ok, nil
}

func (m *MockInvoiceRepository) CreateWithItems(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	if _, ok := m.byNumber[invoice.Number]; ok {
		return nil, models.ErrConflict
	}
	if _, ok := m.byOrder[invoice.OrderID]; ok {
		return nil, models.ErrConflict
	}
	m.nextID++
	invoice.ID = fmt.Sprintf("invoice-%d", m.nextID)
	invoice.IssuedAt = time.Now()
	m.byNumber[invoice.Number] = invoice
	m.byOrder[invoice.OrderID] = invoice
	return invoice, nil
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	for _, invoice := range m.byNumber {
		if invoice.ID == id {
			return invoice, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockInvoiceRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Invoice, error) {
	out := make([]*models.Invoice, 0)
	for _, invoice := range m.byNumber {
		if invoice.UserID == userID {
			out = append(out, invoice)
		}
	}
	return out, nil
}

func (m *MockInvoiceRepository) List(ctx context.Context, limit, offset int) ([]*models.Invoice, error) {
	out := make([]*models.Invoice, 0)
	for _, invoice := range m.byNumber {
		out = append(out, invoice)
	}
	return out, nil
}

// MockOrderGetter serves canned orders
type MockOrderGetter struct {
	orders map[string]*models.Order
}

func (m *MockOrderGetter) GetByID(ctx context.Context, id string) (*models.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return order, nil
}

// MockNotificationCreator records emitted notifications
type MockNotificationCreator struct {
	created []*models.Notification
}

func (m *MockNotificationCreator) Create(ctx context.Context, n *models.Notification) error {
	m.created = append(m.created, n)
	return nil
}

func paidOrder(id string) *models.Order {
	paidAt := time.Now().Add(-1 * time.Hour)
	return &models.Order{
		ID:     id,
		UserID: "user-1",
		Status: models.OrderStatusPaid,
		PaidAt: &paidAt,
		Items: []*models.OrderItem{
			{ProductName: "Carnet ligné", UnitPriceCents: 1250, Quantity: 2},
			{ProductName: "Stylo plume", UnitPriceCents: 4900, Quantity: 1},
		},
	}
}

func newInvoiceService(repo services.InvoiceRepository, orders services.OrderGetter, notifications services.NotificationCreator) *services.InvoiceService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return services.NewInvoiceService(repo, orders, notifications, nil, services.InvoiceConfig{DueDays: 30}, logger)
}

func TestGenerateInvoice_FirstOfYear(t *testing.T) {
	repo := NewMockInvoiceRepository()
	orders := &MockOrderGetter{orders: map[string]*models.Order{"order-1": paidOrder("order-1")}}
	notifications := &MockNotificationCreator{}
	service := newInvoiceService(repo, orders, notifications)

	summary, err := service.GenerateInvoice(context.Background(), "order-1", "claire@example.com")

	require.NoError(t, err)
	assert.Equal(t, services.FormatNumber(time.Now().Year(), 1), summary.Number)
	assert.Equal(t, int64(1250*2+4900), summary.TotalCents)
}

func TestGenerateInvoice_SequenceIncrements(t *testing.T) {
	repo := NewMockInvoiceRepository()
	year := time.Now().Year()
	repo.byNumber[services.FormatNumber(year, 1)] = &models.Invoice{OrderID: "other-1"}
	repo.byNumber[services.FormatNumber(year, 2)] = &models.Invoice{OrderID: "other-2"}

	orders := &MockOrderGetter{orders: map[string]*models.Order{"order-1": paidOrder("order-1")}}
	service := newInvoiceService(repo, orders, &MockNotificationCreator{})

	summary, err := service.GenerateInvoice(context.Background(), "order-1", "")

	require.NoError(t, err)
	assert.Equal(t, services.FormatNumber(year, 3), summary.Number)
}

func TestGenerateInvoice_PriorYearDoesNotLeak(t *testing.T) {
	repo := NewMockInvoiceRepository()
	year := time.Now().Year()
	// Invoices from the previous year must not influence this year's sequence
	repo.byNumber[services.FormatNumber(year-1, 41)] = &models.Invoice{OrderID: "old-1"}
	repo.byNumber[services.FormatNumber(year-1, 42)] = &models.Invoice{OrderID: "old-2"}

	orders := &MockOrderGetter{orders: map[string]*models.Order{"order-1": paidOrder("order-1")}}
	service := newInvoiceService(repo, orders, &MockNotificationCreator{})

	summary, err := service.GenerateInvoice(context.Background(), "order-1", "")

	require.NoError(t, err)
	assert.Equal(t, services.FormatNumber(year, 1), summary.Number)
}

func TestGenerateInvoice_OrderNotFound(t *testing.T) {
	service := newInvoiceService(NewMockInvoiceRepository(), &MockOrderGetter{orders: map[string]*models.Order{}}, &MockNotificationCreator{})

	_, err := service.GenerateInvoice(context.Background(), "missing", "")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGenerateInvoice_RejectsUnpaidOrder(t *testing.T) {
	repo := NewMockInvoiceRepository()
	order := paidOrder("order-1")
	order.Status = models.OrderStatusPending
	orders := &MockOrderGetter{orders: map[string]*models.Order{"order-1": order}}
	service := newInvoiceService(repo, orders, &MockNotificationCreator{})

	_, err := service.GenerateInvoice(context.Background(), "order-1", "")

	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Empty(t, repo.byNumber, "no invoice record may be created")
}

func TestGenerateInvoice_SecondCallConflicts(t *testing.T) {
	repo := NewMockInvoiceRepository()
	orders := &MockOrderGetter{orders: map[string]*models.Order{"order-1": paidOrder("order-1")}}
	service := newInvoiceService(repo, orders, &MockNotificationCreator{})

	_, err := service.GenerateInvoice(context.Background(), "order-1", "")
	require.NoError(t, err)

	_, err = service.GenerateInvoice(context.Background(), "order-1", "")
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Len(t, repo.byNumber, 1, "exactly one invoice exists for the order")
}

func TestGenerateInvoice_LineAndTotalArithmetic(t *testing.T) {
	repo := NewMockInvoiceRepository()
	orders := &MockOrderGetter{orders: map[string]*models.Order{"order-1": paidOrder("order-1")}}
	service := newInvoiceService(repo, orders, &MockNotificationCreator{})

	summary, err := service.GenerateInvoice(context.Background(), "order-1", "")
	require.NoError(t, err)

	invoice := repo.byOrder["order-1"]
	var sum int64
	for _, item := range invoice.Items {
		assert.Equal(t, item.UnitPriceCents*int64(item.Quantity), item.TotalCents)
		sum += item.TotalCents
	}
	assert.Equal(t, sum, invoice.TotalCents)
	assert.Equal(t, summary.TotalCents, invoice.TotalCents)
	assert.Equal(t, 0, invoice.TaxRateBP)
	assert.Equal(t, models.DefaultTaxNote, invoice.TaxNote)
}

func TestGenerateInvoice_DueDateThirtyDaysAfterPayment(t *testing.T) {
	repo := NewMockInvoiceRepository()
	order := paidOrder("order-1")
	orders := &MockOrderGetter{orders: map[string]*models.Order{"order-1": order}}
	service := newInvoiceService(repo, orders, &MockNotificationCreator{})

	summary, err := service.GenerateInvoice(context.Background(), "order-1", "")
	require.NoError(t, err)

	assert.Equal(t, order.PaidAt.AddDate(0, 0, 30), summary.DueDate)
}

func TestGenerateInvoice_EmitsNotification(t *testing.T) {
	repo := NewMockInvoiceRepository()
	orders := &MockOrderGetter{orders: map[string]*models.Order{"order-1": paidOrder("order-1")}}
	notifications := &MockNotificationCreator{}
	service := newInvoiceService(repo, orders, notifications)

	summary, err := service.GenerateInvoice(context.Background(), "order-1", "")
	require.NoError(t, err)

	require.Len(t, notifications.created, 1)
	assert.Equal(t, "user-1", notifications.created[0].UserID)
	assert.Equal(t, models.NotificationInvoiceIssued, notifications.created[0].Type)
	assert.Contains(t, notifications.created[0].Title, summary.Number)
}

// racingInvoiceRepo simulates a concurrent generation stealing the
// computed sequence number on the first insert attempt
type racingInvoiceRepo struct {
	*MockInvoiceRepository
	raced bool
}

func (r *racingInvoiceRepo) CreateWithItems(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	if !r.raced {
		r.raced = true
		// Another request commits the same number first
		r.byNumber[invoice.Number] = &models.Invoice{Number: invoice.Number, OrderID: "rival-order"}
		r.byOrder["rival-order"] = r.byNumber[invoice.Number]
	}
	return r.MockInvoiceRepository.CreateWithItems(ctx, invoice)
}

func TestGenerateInvoice_RetriesOnNumberCollision(t *testing.T) {
	repo := &racingInvoiceRepo{MockInvoiceRepository: NewMockInvoiceRepository()}
	orders := &MockOrderGetter{orders: map[string]*models.Order{"order-1": paidOrder("order-1")}}
	service := newInvoiceService(repo, orders, &MockNotificationCreator{})

	summary, err := service.GenerateInvoice(context.Background(), "order-1", "")

	require.NoError(t, err)
	assert.Equal(t, services.FormatNumber(time.Now().Year(), 2), summary.Number)
	rival := repo.byOrder["rival-order"]
	assert.NotEqual(t, rival.Number, summary.Number, "concurrent generations never share a number")
}

func TestGenerateInvoice_SequenceExhausted(t *testing.T) {
	repo := NewMockInvoiceRepository()
	year := time.Now().Year()
	repo.byNumber[services.FormatNumber(year, 9999)] = &models.Invoice{OrderID: "other-1"}

	orders := &MockOrderGetter{orders: map[string]*models.Order{"order-1": paidOrder("order-1")}}
	service := newInvoiceService(repo, orders, &MockNotificationCreator{})

	_, err := service.GenerateInvoice(context.Background(), "order-1", "")

	assert.ErrorIs(t, err, models.ErrSequenceExhausted)
}

func TestFormatNumber_ZeroPadding(t *testing.T) {
	assert.Equal(t, "2025-0001", services.FormatNumber(2025, 1))
	assert.Equal(t, "2025-0042", services.FormatNumber(2025, 42))
	assert.Equal(t, "2026-0001", services.FormatNumber(2026, 1))
	assert.Equal(t, "2025-9999", services.FormatNumber(2025, 9999))
}
