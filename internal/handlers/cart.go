package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lverdier/boutique/internal/auth"
	"github.com/lverdier/boutique/internal/models"
	"github.com/lverdier/boutique/internal/services"
	pkghttp "github.com/lverdier/boutique/pkg/http"
)

// CartServiceInterface defines the interface for cart business logic
type CartServiceInterface interface {
	GetCart(ctx context.Context, userID string) (*services.CartView, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) error
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
}

// CartHandler handles cart HTTP requests
type CartHandler struct {
	service CartServiceInterface
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(service CartServiceInterface) *CartHandler {
	return &CartHandler{service: service}
}

// AddCartItemRequest represents the request body for adding to the cart
type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=99"`
}

// UpdateCartItemRequest represents the request body for changing a quantity
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=99"`
}

// CartLineResponse represents one cart line in API responses
type CartLineResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Slug        string `json:"slug"`
	UnitCents   int64  `json:"unit_cents"`
	Quantity    int    `json:"quantity"`
	LineCents   int64  `json:"line_cents"`
	InStock     bool   `json:"in_stock"`
}

// CartResponse represents the full cart in API responses
type CartResponse struct {
	Lines      []*CartLineResponse `json:"lines"`
	TotalCents int64               `json:"total_cents"`
}

func cartViewToResponse(view *services.CartView) *CartResponse {
	lines := make([]*CartLineResponse, 0, len(view.Lines))
	for _, line := range view.Lines {
		lines = append(lines, &CartLineResponse{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Slug:        line.Slug,
			UnitCents:   line.UnitCents,
			Quantity:    line.Quantity,
			LineCents:   line.UnitCents * int64(line.Quantity),
			InStock:     line.Active && line.Stock >= line.Quantity,
		})
	}
	return &CartResponse{Lines: lines, TotalCents: view.TotalCents}
}

// Get returns the authenticated user's cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	view, err := h.service.GetCart(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, cartViewToResponse(view))
}

// AddItem adds a product to the cart or bumps its quantity
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req AddCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.AddItem(r.Context(), claims.UserID, req.ProductID, req.Quantity); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Product not found")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Product is not available")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateItem sets a cart line's quantity; zero removes the line
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	productID := chi.URLParam(r, "productID")

	var req UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.UpdateQuantity(r.Context(), claims.UserID, productID, req.Quantity); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Cart item not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveItem removes a product from the cart
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	productID := chi.URLParam(r, "productID")

	if err := h.service.RemoveItem(r.Context(), claims.UserID, productID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Cart item not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
