package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lverdier/boutique/internal/auth"
	"github.com/lverdier/boutique/internal/models"
	"github.com/lverdier/boutique/internal/services"
	pkghttp "github.com/lverdier/boutique/pkg/http"
)

// OrderServiceInterface defines the interface for order business logic
type OrderServiceInterface interface {
	Checkout(ctx context.Context, userID string, input services.CheckoutInput) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderID, userID, userEmail, paymentRef string) (*models.Order, error)
	GetOrder(ctx context.Context, id, userID string, isAdmin bool) (*models.Order, error)
	ListOrders(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error)
	ListAllOrders(ctx context.Context, status string, limit, offset int) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, target string) (*models.Order, error)
}

// OrderHandler handles order HTTP requests
type OrderHandler struct {
	service OrderServiceInterface
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(service OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: service}
}

// CheckoutRequest represents the request body for checkout
type CheckoutRequest struct {
	Provider        string `json:"provider" validate:"required,oneof=card paypal"`
	ShippingName    string `json:"shipping_name" validate:"required,min=1,max=200"`
	ShippingAddress string `json:"shipping_address" validate:"required,min=1,max=500"`
	ShippingCity    string `json:"shipping_city" validate:"required,min=1,max=100"`
	ShippingZip     string `json:"shipping_zip" validate:"required,min=2,max=20"`
	ShippingCountry string `json:"shipping_country" validate:"required,len=2"`
}

// ConfirmPaymentRequest represents the request body for payment confirmation
type ConfirmPaymentRequest struct {
	PaymentRef string `json:"payment_ref" validate:"required"`
}

// UpdateOrderStatusRequest represents the request body for admin status updates
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid shipped delivered cancelled"`
}

// OrderItemResponse represents one snapshotted order line
type OrderItemResponse struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	TotalCents     int64  `json:"total_cents"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID              string               `json:"id"`
	Status          string               `json:"status"`
	TotalCents      int64                `json:"total_cents"`
	PaymentProvider string               `json:"payment_provider"`
	PaymentRef      string               `json:"payment_ref"`
	ShippingName    string               `json:"shipping_name"`
	ShippingAddress string               `json:"shipping_address"`
	ShippingCity    string               `json:"shipping_city"`
	ShippingZip     string               `json:"shipping_zip"`
	ShippingCountry string               `json:"shipping_country"`
	PaidAt          *time.Time           `json:"paid_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	Items           []*OrderItemResponse `json:"items,omitempty"`
}

func orderModelToResponse(order *models.Order) *OrderResponse {
	resp := &OrderResponse{
		ID:              order.ID,
		Status:          order.Status,
		TotalCents:      order.TotalCents,
		PaymentProvider: order.PaymentProvider,
		PaymentRef:      order.PaymentRef,
		ShippingName:    order.ShippingName,
		ShippingAddress: order.ShippingAddress,
		ShippingCity:    order.ShippingCity,
		ShippingZip:     order.ShippingZip,
		ShippingCountry: order.ShippingCountry,
		PaidAt:          order.PaidAt,
		CreatedAt:       order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, &OrderItemResponse{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			TotalCents:     item.TotalCents,
		})
	}
	return resp
}

// Checkout converts the cart into a pending order
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	order, err := h.service.Checkout(r.Context(), claims.UserID, services.CheckoutInput{
		Provider:        req.Provider,
		ShippingName:    strings.TrimSpace(req.ShippingName),
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		ShippingCity:    strings.TrimSpace(req.ShippingCity),
		ShippingZip:     strings.TrimSpace(req.ShippingZip),
		ShippingCountry: strings.ToUpper(strings.TrimSpace(req.ShippingCountry)),
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyCart):
			pkghttp.WriteBadRequest(w, "Cart is empty")
		case errors.Is(err, models.ErrInsufficientStock):
			pkghttp.WriteConflict(w, "Not enough stock for one of the cart items")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, orderModelToResponse(order))
}

// Pay confirms payment of a pending order
func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	orderID := chi.URLParam(r, "id")

	var req ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	order, err := h.service.ConfirmPayment(r.Context(), orderID, claims.UserID, claims.Email, req.PaymentRef)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Order not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "You do not have access to this order")
		case errors.Is(err, models.ErrInvalidState):
			pkghttp.WriteConflict(w, "Order is not awaiting payment")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Payment reference does not match")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, orderModelToResponse(order))
}

// Get returns one order for its owner; admins may read any order
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"), claims.UserID, claims.Role == models.RoleAdmin)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Order not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "You do not have access to this order")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, orderModelToResponse(order))
}

// List returns the authenticated user's orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	orders, err := h.service.ListOrders(r.Context(), claims.UserID, parseIntParam(r, "limit", 20), parseIntParam(r, "offset", 0))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]*OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, orderModelToResponse(order))
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"orders": out})
}

// AdminList returns all orders, optionally filtered by status (admin only)
func (h *OrderHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))

	orders, err := h.service.ListAllOrders(r.Context(), status, parseIntParam(r, "limit", 20), parseIntParam(r, "offset", 0))
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Unknown order status filter")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]*OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, orderModelToResponse(order))
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"orders": out})
}

// UpdateStatus moves an order along the lifecycle (admin only)
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), orderID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Order not found")
		case errors.Is(err, models.ErrInvalidState):
			pkghttp.WriteConflict(w, err.Error())
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, orderModelToResponse(order))
}
