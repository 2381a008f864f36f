package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lverdier/boutique/internal/models"
	pkghttp "github.com/lverdier/boutique/pkg/http"
)

// CatalogServiceInterface defines the interface for catalog business logic
type CatalogServiceInterface interface {
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
	GetProduct(ctx context.Context, idOrSlug string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, update *models.Product) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// ProductHandler handles catalog HTTP requests
type ProductHandler struct {
	service CatalogServiceInterface
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(service CatalogServiceInterface) *ProductHandler {
	return &ProductHandler{service: service}
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price_cents"`
	Stock       int      `json:"stock"`
	Category    string   `json:"category"`
	ImageURLs   []string `json:"image_urls"`
	Active      bool     `json:"active"`
}

// CreateProductRequest represents the request body for product creation
type CreateProductRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	PriceCents  int64    `json:"price_cents" validate:"required,gte=1"`
	Stock       int      `json:"stock" validate:"gte=0"`
	Category    string   `json:"category" validate:"required,min=1,max=100"`
	ImageURLs   []string `json:"image_urls" validate:"max=10,dive,url"`
}

// UpdateProductRequest represents the request body for product updates.
// Omitted fields keep their current value.
type UpdateProductRequest struct {
	Name        string   `json:"name" validate:"omitempty,min=1,max=200"`
	Description string   `json:"description" validate:"omitempty,max=5000"`
	PriceCents  int64    `json:"price_cents" validate:"omitempty,gte=1"`
	Stock       *int     `json:"stock" validate:"omitempty"`
	Category    string   `json:"category" validate:"omitempty,min=1,max=100"`
	ImageURLs   []string `json:"image_urls" validate:"omitempty,max=10,dive,url"`
}

func productModelToResponse(p *models.Product) *ProductResponse {
	return &ProductResponse{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Stock:       p.Stock,
		Category:    p.Category,
		ImageURLs:   p.ImageURLs,
		Active:      p.Active,
	}
}

// List handles catalog listing with optional category and search filters
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := models.ProductFilter{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Search:   strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:    parseIntParam(r, "limit", 20),
		Offset:   parseIntParam(r, "offset", 0),
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]*ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productModelToResponse(p))
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"products": out})
}

// Get handles product detail lookup by ID or slug
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	idOrSlug := chi.URLParam(r, "id")

	product, err := h.service.GetProduct(r.Context(), idOrSlug)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Product not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, productModelToResponse(product))
}

// Create handles product creation (admin only)
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	product, err := h.service.CreateProduct(r.Context(), &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		Category:    req.Category,
		ImageURLs:   req.ImageURLs,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "A product with this slug already exists")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, productModelToResponse(product))
}

// Update handles partial product updates (admin only)
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	update := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		ImageURLs:   req.ImageURLs,
		Stock:       -1,
	}
	if req.Stock != nil {
		update.Stock = *req.Stock
	}

	product, err := h.service.UpdateProduct(r.Context(), id, update)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Product not found")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "A product with this slug already exists")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, productModelToResponse(product))
}

// Delete handles product deactivation (admin only). The row stays so
// existing order and invoice snapshots keep their reference.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Product not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseIntParam reads a non-negative integer query parameter, falling
// back to def when absent or malformed
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return def
	}
	return value
}
