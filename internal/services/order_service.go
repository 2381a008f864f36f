package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lverdier/boutique/internal/models"
	"github.com/lverdier/boutique/internal/payments"
	pkglogger "github.com/lverdier/boutique/pkg/logger"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	CreateFromCart(ctx context.Context, order *models.Order) (*models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error)
	List(ctx context.Context, status string, limit, offset int) ([]*models.Order, error)
	MarkPaid(ctx context.Context, id, provider, paymentRef string, paidAt time.Time) error
	UpdateStatus(ctx context.Context, id, from, to string) error
	Restock(ctx context.Context, orderID string) error
}

// PaymentProviders resolves a provider name to a configured payment provider
type PaymentProviders interface {
	Get(name string) (payments.Provider, error)
}

// OrderMailer sends the order confirmation email. May be nil when email
// delivery is disabled.
type OrderMailer interface {
	SendOrderConfirmation(ctx context.Context, email, orderID string, totalCents int64) error
}

// OrderService turns carts into orders and drives them through the
// status lifecycle
type OrderService struct {
	repo          OrderRepository
	cart          CartRepository
	providers     PaymentProviders
	notifications NotificationCreator
	mailer        OrderMailer
	logger        *slog.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(repo OrderRepository, cart CartRepository, providers PaymentProviders, notifications NotificationCreator, mailer OrderMailer, logger *slog.Logger) *OrderService {
	return &OrderService{
		repo:          repo,
		cart:          cart,
		providers:     providers,
		notifications: notifications,
		mailer:        mailer,
		logger:        logger,
	}
}

// CheckoutInput carries the shipping address and payment choice
type CheckoutInput struct {
	Provider        string
	ShippingName    string
	ShippingAddress string
	ShippingCity    string
	ShippingZip     string
	ShippingCountry string
}

// Checkout converts the user's cart into a pending order. Line items are
// snapshotted at the current product price, stock is decremented, and the
// cart is cleared. The payment reference from the provider is stored so
// the later confirmation can be matched against it.
func (s *OrderService) Checkout(ctx context.Context, userID string, input CheckoutInput) (*models.Order, error) {
	lines, err := s.cart.GetLines(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load cart for checkout", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if len(lines) == 0 {
		return nil, models.ErrEmptyCart
	}

	var total int64
	items := make([]*models.OrderItem, 0, len(lines))
	for _, line := range lines {
		if !line.Active {
			return nil, fmt.Errorf("product %s is no longer available: %w", line.Slug, models.ErrBadRequest)
		}
		if line.Quantity > line.Stock {
			return nil, models.ErrInsufficientStock
		}
		lineTotal := line.UnitCents * int64(line.Quantity)
		items = append(items, &models.OrderItem{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			UnitPriceCents: line.UnitCents,
			Quantity:       line.Quantity,
			TotalCents:     lineTotal,
		})
		total += lineTotal
	}

	provider, err := s.providers.Get(input.Provider)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		TotalCents:      total,
		PaymentProvider: provider.Name(),
		ShippingName:    input.ShippingName,
		ShippingAddress: input.ShippingAddress,
		ShippingCity:    input.ShippingCity,
		ShippingZip:     input.ShippingZip,
		ShippingCountry: input.ShippingCountry,
		Items:           items,
	}

	intent, err := provider.CreateIntent(ctx, order.ID, total)
	if err != nil {
		s.logger.Error("payment intent creation failed",
			slog.String("user_id", userID),
			slog.String("provider", provider.Name()),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	order.PaymentRef = intent.Reference

	created, err := s.repo.CreateFromCart(ctx, order)
	if err != nil {
		switch err {
		case models.ErrInsufficientStock:
			return nil, err
		default:
			s.logger.Error("failed to create order", slog.String("user_id", userID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	s.logger.Info("order created",
		slog.String("order_id", created.ID),
		slog.String("user_id", userID),
		slog.Int64("total_cents", total))

	return created, nil
}

// ConfirmPayment marks a pending order as paid. The guard on the current
// status makes a duplicate confirmation a no-op error rather than a
// second paid_at stamp.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID, userID, userEmail, paymentRef string) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, models.ErrForbidden
	}
	if paymentRef != order.PaymentRef {
		return nil, fmt.Errorf("payment reference mismatch: %w", models.ErrBadRequest)
	}

	paidAt := time.Now()
	if err := s.repo.MarkPaid(ctx, orderID, order.PaymentProvider, paymentRef, paidAt); err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusPaid
	order.PaidAt = &paidAt

	notification := &models.Notification{
		UserID:  order.UserID,
		Type:    models.NotificationOrderPaid,
		Title:   "Paiement reçu",
		Message: fmt.Sprintf("Votre commande de %d article(s) a bien été payée.", len(order.Items)),
		OrderID: &order.ID,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		s.logger.Error("failed to create payment notification",
			slog.String("order_id", order.ID), slog.Any("error", err))
	}

	if s.mailer != nil {
		if err := s.mailer.SendOrderConfirmation(ctx, userEmail, order.ID, order.TotalCents); err != nil {
			s.logger.Error("failed to send order confirmation email",
				slog.String("order_id", order.ID),
				slog.String("email", pkglogger.SanitizedEmail(userEmail)),
				slog.Any("error", err))
		}
	}

	s.logger.Info("order paid",
		slog.String("order_id", order.ID),
		slog.String("provider", order.PaymentProvider))

	return order, nil
}

// GetOrder returns an order, restricted to its owner unless isAdmin
func (s *OrderService) GetOrder(ctx context.Context, id, userID string, isAdmin bool) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, models.ErrForbidden
	}
	return order, nil
}

// ListOrders returns the user's own orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// ListAllOrders returns every order, optionally filtered by status.
// Admin only; the route enforces the role.
func (s *OrderService) ListAllOrders(ctx context.Context, status string, limit, offset int) ([]*models.Order, error) {
	if status != "" && !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("unknown order status %q: %w", status, models.ErrBadRequest)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, status, limit, offset)
}

// UpdateOrderStatus moves an order along the fulfilment lifecycle.
// Cancelling a pending order returns its quantities to stock.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID, target string) (*models.Order, error) {
	if !models.ValidOrderStatus(target) {
		return nil, fmt.Errorf("unknown order status %q: %w", target, models.ErrBadRequest)
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanTransitionTo(target) {
		return nil, fmt.Errorf("cannot move order from %s to %s: %w", order.Status, target, models.ErrInvalidState)
	}

	if err := s.repo.UpdateStatus(ctx, orderID, order.Status, target); err != nil {
		return nil, err
	}

	if target == models.OrderStatusCancelled {
		if err := s.repo.Restock(ctx, orderID); err != nil {
			s.logger.Error("failed to restock cancelled order",
				slog.String("order_id", orderID), slog.Any("error", err))
		}
	}

	if target == models.OrderStatusShipped {
		notification := &models.Notification{
			UserID:  order.UserID,
			Type:    models.NotificationOrderShipped,
			Title:   "Commande expédiée",
			Message: "Votre commande est en route.",
			OrderID: &order.ID,
		}
		if err := s.notifications.Create(ctx, notification); err != nil {
			s.logger.Error("failed to create shipping notification",
				slog.String("order_id", orderID), slog.Any("error", err))
		}
	}

	s.logger.Info("order status updated",
		slog.String("order_id", orderID),
		slog.String("from", order.Status),
		slog.String("to", target))

	order.Status = target
	return order, nil
}
