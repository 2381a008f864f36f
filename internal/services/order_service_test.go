package services_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/lverdier/boutique/internal/models"
	"github.com/lverdier/boutique/internal/payments"
	"github.com/lverdier/boutique/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockOrderRepository keeps orders in memory and mirrors the status
// guards of the real UPDATE statements
type MockOrderRepository struct {
	orders    map[string]*models.Order
	stock     map[string]int
	cartWiped bool
	restocked []string
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]*models.Order),
		stock:  make(map[string]int),
	}
}

func (m *MockOrderRepository) CreateFromCart(ctx context.Context, order *models.Order) (*models.Order, error) {
	for _, item := range order.Items {
		if available, ok := m.stock[item.ProductID]; ok && available < item.Quantity {
			return nil, models.ErrInsufficientStock
		}
	}
	for _, item := range order.Items {
		if _, ok := m.stock[item.ProductID]; ok {
			m.stock[item.ProductID] -= item.Quantity
		}
	}
	order.Status = models.OrderStatusPending
	order.CreatedAt = time.Now()
	m.orders[order.ID] = order
	m.cartWiped = true
	return order, nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return order, nil
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	out := make([]*models.Order, 0)
	for _, order := range m.orders {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	return out, nil
}

func (m *MockOrderRepository) List(ctx context.Context, status string, limit, offset int) ([]*models.Order, error) {
	out := make([]*models.Order, 0)
	for _, order := range m.orders {
		if status == "" || order.Status == status {
			out = append(out, order)
		}
	}
	return out, nil
}

func (m *MockOrderRepository) MarkPaid(ctx context.Context, id, provider, paymentRef string, paidAt time.Time) error {
	order, ok := m.orders[id]
	if !ok {
		return models.ErrNotFound
	}
	if order.Status != models.OrderStatusPending {
		return models.ErrInvalidState
	}
	order.Status = models.OrderStatusPaid
	order.PaymentProvider = provider
	order.PaymentRef = paymentRef
	order.PaidAt = &paidAt
	return nil
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	order, ok := m.orders[id]
	if !ok {
		return models.ErrNotFound
	}
	if order.Status != from {
		return models.ErrInvalidState
	}
	order.Status = to
	return nil
}

func (m *MockOrderRepository) Restock(ctx context.Context, orderID string) error {
	m.restocked = append(m.restocked, orderID)
	return nil
}

// MockCartRepository serves canned cart lines
type MockCartRepository struct {
	lines map[string][]*models.CartLine
}

func (m *MockCartRepository) GetLines(ctx context.Context, userID string) ([]*models.CartLine, error) {
	return m.lines[userID], nil
}

func (m *MockCartRepository) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	return nil
}

func (m *MockCartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	return nil
}

func (m *MockCartRepository) RemoveItem(ctx context.Context, userID, productID string) error {
	return nil
}

func cartWith(lines ...*models.CartLine) *MockCartRepository {
	return &MockCartRepository{lines: map[string][]*models.CartLine{"user-1": lines}}
}

func line(productID, name string, unitCents int64, quantity, stock int) *models.CartLine {
	return &models.CartLine{
		ProductID:   productID,
		ProductName: name,
		Slug:        name,
		UnitCents:   unitCents,
		Quantity:    quantity,
		Stock:       stock,
		Active:      true,
	}
}

func newOrderService(repo services.OrderRepository, cart services.CartRepository, notifications services.NotificationCreator) *services.OrderService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	registry := payments.NewRegistry(payments.CardProvider{}, payments.PayPalProvider{})
	return services.NewOrderService(repo, cart, registry, notifications, nil, logger)
}

func checkoutInput(provider string) services.CheckoutInput {
	return services.CheckoutInput{
		Provider:        provider,
		ShippingName:    "Claire Fontaine",
		ShippingAddress: "12 rue des Lilas",
		ShippingCity:    "Lyon",
		ShippingZip:     "69003",
		ShippingCountry: "FR",
	}
}

func TestCheckout_CreatesPendingOrder(t *testing.T) {
	repo := NewMockOrderRepository()
	cart := cartWith(
		line("prod-1", "carnet-ligne", 1250, 2, 10),
		line("prod-2", "stylo-plume", 4900, 1, 3),
	)
	service := newOrderService(repo, cart, &MockNotificationCreator{})

	order, err := service.Checkout(context.Background(), "user-1", checkoutInput(models.PaymentProviderCard))

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, int64(1250*2+4900), order.TotalCents)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, models.PaymentProviderCard, order.PaymentProvider)
	assert.NotEmpty(t, order.PaymentRef)
	assert.True(t, repo.cartWiped)
}

func TestCheckout_SnapshotsLineItems(t *testing.T) {
	repo := NewMockOrderRepository()
	cart := cartWith(line("prod-1", "carnet-ligne", 1250, 3, 10))
	service := newOrderService(repo, cart, &MockNotificationCreator{})

	order, err := service.Checkout(context.Background(), "user-1", checkoutInput(models.PaymentProviderPayPal))

	require.NoError(t, err)
	item := order.Items[0]
	assert.Equal(t, "carnet-ligne", item.ProductName)
	assert.Equal(t, int64(1250), item.UnitPriceCents)
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, int64(3750), item.TotalCents)
}

func TestCheckout_EmptyCart(t *testing.T) {
	repo := NewMockOrderRepository()
	service := newOrderService(repo, cartWith(), &MockNotificationCreator{})

	_, err := service.Checkout(context.Background(), "user-1", checkoutInput(models.PaymentProviderCard))

	assert.ErrorIs(t, err, models.ErrEmptyCart)
	assert.Empty(t, repo.orders)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	repo := NewMockOrderRepository()
	cart := cartWith(line("prod-1", "carnet-ligne", 1250, 5, 2))
	service := newOrderService(repo, cart, &MockNotificationCreator{})

	_, err := service.Checkout(context.Background(), "user-1", checkoutInput(models.PaymentProviderCard))

	assert.ErrorIs(t, err, models.ErrInsufficientStock)
}

func TestCheckout_InactiveProductRejected(t *testing.T) {
	repo := NewMockOrderRepository()
	inactive := line("prod-1", "carnet-ligne", 1250, 1, 10)
	inactive.Active = false
	service := newOrderService(repo, cartWith(inactive), &MockNotificationCreator{})

	_, err := service.Checkout(context.Background(), "user-1", checkoutInput(models.PaymentProviderCard))

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestCheckout_UnknownProvider(t *testing.T) {
	repo := NewMockOrderRepository()
	cart := cartWith(line("prod-1", "carnet-ligne", 1250, 1, 10))
	service := newOrderService(repo, cart, &MockNotificationCreator{})

	_, err := service.Checkout(context.Background(), "user-1", checkoutInput("cheque"))

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestConfirmPayment_MarksPaidAndNotifies(t *testing.T) {
	repo := NewMockOrderRepository()
	cart := cartWith(line("prod-1", "carnet-ligne", 1250, 1, 10))
	notifications := &MockNotificationCreator{}
	service := newOrderService(repo, cart, notifications)

	order, err := service.Checkout(context.Background(), "user-1", checkoutInput(models.PaymentProviderCard))
	require.NoError(t, err)

	paid, err := service.ConfirmPayment(context.Background(), order.ID, "user-1", "claire@example.com", order.PaymentRef)

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	require.Len(t, notifications.created, 1)
	assert.Equal(t, models.NotificationOrderPaid, notifications.created[0].Type)
	require.NotNil(t, notifications.created[0].OrderID)
	assert.Equal(t, order.ID, *notifications.created[0].OrderID)
}

func TestConfirmPayment_DuplicateConfirmationRejected(t *testing.T) {
	repo := NewMockOrderRepository()
	cart := cartWith(line("prod-1", "carnet-ligne", 1250, 1, 10))
	service := newOrderService(repo, cart, &MockNotificationCreator{})

	order, err := service.Checkout(context.Background(), "user-1", checkoutInput(models.PaymentProviderCard))
	require.NoError(t, err)

	_, err = service.ConfirmPayment(context.Background(), order.ID, "user-1", "", order.PaymentRef)
	require.NoError(t, err)

	_, err = service.ConfirmPayment(context.Background(), order.ID, "user-1", "", order.PaymentRef)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestConfirmPayment_WrongOwner(t *testing.T) {
	repo := NewMockOrderRepository()
	cart := cartWith(line("prod-1", "carnet-ligne", 1250, 1, 10))
	service := newOrderService(repo, cart, &MockNotificationCreator{})

	order, err := service.Checkout(context.Background(), "user-1", checkoutInput(models.PaymentProviderCard))
	require.NoError(t, err)

	_, err = service.ConfirmPayment(context.Background(), order.ID, "user-2", "", order.PaymentRef)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestConfirmPayment_ReferenceMismatch(t *testing.T) {
	repo := NewMockOrderRepository()
	cart := cartWith(line("prod-1", "carnet-ligne", 1250, 1, 10))
	service := newOrderService(repo, cart, &MockNotificationCreator{})

	order, err := service.Checkout(context.Background(), "user-1", checkoutInput(models.PaymentProviderCard))
	require.NoError(t, err)

	_, err = service.ConfirmPayment(context.Background(), order.ID, "user-1", "", "card_forged")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestGetOrder_OwnerAndAdminAccess(t *testing.T) {
	repo := NewMockOrderRepository()
	repo.orders["order-1"] = &models.Order{ID: "order-1", UserID: "user-1", Status: models.OrderStatusPending}
	service := newOrderService(repo, cartWith(), &MockNotificationCreator{})

	_, err := service.GetOrder(context.Background(), "order-1", "user-1", false)
	assert.NoError(t, err)

	_, err = service.GetOrder(context.Background(), "order-1", "user-2", false)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = service.GetOrder(context.Background(), "order-1", "user-2", true)
	assert.NoError(t, err)
}

func TestUpdateOrderStatus_LifecycleTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr error
	}{
		{name: "pending to paid", from: models.OrderStatusPending, to: models.OrderStatusPaid},
		{name: "paid to shipped", from: models.OrderStatusPaid, to: models.OrderStatusShipped},
		{name: "shipped to delivered", from: models.OrderStatusShipped, to: models.OrderStatusDelivered},
		{name: "pending to cancelled", from: models.OrderStatusPending, to: models.OrderStatusCancelled},
		{name: "pending to shipped skips payment", from: models.OrderStatusPending, to: models.OrderStatusShipped, wantErr: models.ErrInvalidState},
		{name: "paid cannot cancel", from: models.OrderStatusPaid, to: models.OrderStatusCancelled, wantErr: models.ErrInvalidState},
		{name: "delivered is terminal", from: models.OrderStatusDelivered, to: models.OrderStatusShipped, wantErr: models.ErrInvalidState},
		{name: "unknown status", from: models.OrderStatusPending, to: "returned", wantErr: models.ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockOrderRepository()
			repo.orders["order-1"] = &models.Order{ID: "order-1", UserID: "user-1", Status: tt.from}
			service := newOrderService(repo, cartWith(), &MockNotificationCreator{})

			order, err := service.UpdateOrderStatus(context.Background(), "order-1", tt.to)

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, order.Status)
		})
	}
}

func TestUpdateOrderStatus_CancelRestocks(t *testing.T) {
	repo := NewMockOrderRepository()
	repo.orders["order-1"] = &models.Order{ID: "order-1", UserID: "user-1", Status: models.OrderStatusPending}
	service := newOrderService(repo, cartWith(), &MockNotificationCreator{})

	_, err := service.UpdateOrderStatus(context.Background(), "order-1", models.OrderStatusCancelled)

	require.NoError(t, err)
	assert.Equal(t, []string{"order-1"}, repo.restocked)
}

func TestUpdateOrderStatus_ShippedNotifiesCustomer(t *testing.T) {
	repo := NewMockOrderRepository()
	repo.orders["order-1"] = &models.Order{ID: "order-1", UserID: "user-1", Status: models.OrderStatusPaid}
	notifications := &MockNotificationCreator{}
	service := newOrderService(repo, cartWith(), notifications)

	_, err := service.UpdateOrderStatus(context.Background(), "order-1", models.OrderStatusShipped)

	require.NoError(t, err)
	require.Len(t, notifications.created, 1)
	assert.Equal(t, models.NotificationOrderShipped, notifications.created[0].Type)
}

func TestListAllOrders_RejectsUnknownStatusFilter(t *testing.T) {
	repo := NewMockOrderRepository()
	service := newOrderService(repo, cartWith(), &MockNotificationCreator{})

	_, err := service.ListAllOrders(context.Background(), "refunded", 20, 0)

	assert.ErrorIs(t, err, models.ErrBadRequest)
}
