package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lverdier/boutique/internal/auth"
	"github.com/lverdier/boutique/internal/models"
	"github.com/lverdier/boutique/internal/services"
	pkghttp "github.com/lverdier/boutique/pkg/http"
)

// InvoiceServiceInterface defines the interface for invoicing business logic
type InvoiceServiceInterface interface {
	GenerateInvoice(ctx context.Context, orderID, ownerEmail string) (*services.InvoiceSummary, error)
	GetInvoice(ctx context.Context, id, userID string, isAdmin bool) (*models.Invoice, error)
	ListInvoices(ctx context.Context, userID string, isAdmin bool, limit, offset int) ([]*models.Invoice, error)
}

// InvoiceOrderGetter checks order ownership before generation
type InvoiceOrderGetter interface {
	GetOrder(ctx context.Context, id, userID string, isAdmin bool) (*models.Order, error)
}

// InvoiceHandler handles invoice HTTP requests
type InvoiceHandler struct {
	service InvoiceServiceInterface
	orders  InvoiceOrderGetter
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(service InvoiceServiceInterface, orders InvoiceOrderGetter) *InvoiceHandler {
	return &InvoiceHandler{service: service, orders: orders}
}

// InvoiceItemResponse represents one invoice line in API responses
type InvoiceItemResponse struct {
	ProductName    string `json:"product_name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	TotalCents     int64  `json:"total_cents"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID            string                 `json:"id"`
	Number        string                 `json:"number"`
	OrderID       string                 `json:"order_id"`
	TotalCents    int64                  `json:"total_cents"`
	TaxRateBP     int                    `json:"tax_rate_bp"`
	TaxNote       string                 `json:"tax_note"`
	DueDate       time.Time              `json:"due_date"`
	PaymentStatus string                 `json:"payment_status"`
	IssuedAt      time.Time              `json:"issued_at"`
	Items         []*InvoiceItemResponse `json:"items,omitempty"`
}

func invoiceModelToResponse(invoice *models.Invoice) *InvoiceResponse {
	resp := &InvoiceResponse{
		ID:            invoice.ID,
		Number:        invoice.Number,
		OrderID:       invoice.OrderID,
		TotalCents:    invoice.TotalCents,
		TaxRateBP:     invoice.TaxRateBP,
		TaxNote:       invoice.TaxNote,
		DueDate:       invoice.DueDate,
		PaymentStatus: invoice.PaymentStatus,
		IssuedAt:      invoice.IssuedAt,
	}
	for _, item := range invoice.Items {
		resp.Items = append(resp.Items, &InvoiceItemResponse{
			ProductName:    item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			TotalCents:     item.TotalCents,
		})
	}
	return resp
}

// Generate issues the invoice for a paid order. The caller must own the
// order (or be an admin).
func (h *InvoiceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	orderID := chi.URLParam(r, "id")

	// Ownership check before touching the sequence
	if _, err := h.orders.GetOrder(r.Context(), orderID, claims.UserID, claims.Role == models.RoleAdmin); err != nil {
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

	summary, err := h.service.GenerateInvoice(r.Context(), orderID, claims.Email)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Order not found")
		case errors.Is(err, models.ErrInvalidState):
			pkghttp.WriteConflict(w, "Order is not paid")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An invoice already exists for this order")
		case errors.Is(err, models.ErrSequenceExhausted):
			pkghttp.WriteInternalError(w, "Invoice numbering exhausted for the current year")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"invoice_id":  summary.InvoiceID,
		"number":      summary.Number,
		"total_cents": summary.TotalCents,
		"due_date":    summary.DueDate,
	})
}

// Get returns one invoice for its owner; admins may read any invoice
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	invoice, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "id"), claims.UserID, claims.Role == models.RoleAdmin)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Invoice not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "You do not have access to this invoice")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, invoiceModelToResponse(invoice))
}

// List returns the caller's invoices; admins see every invoice
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	invoices, err := h.service.ListInvoices(r.Context(), claims.UserID, claims.Role == models.RoleAdmin,
		parseIntParam(r, "limit", 20), parseIntParam(r, "offset", 0))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]*InvoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		out = append(out, invoiceModelToResponse(invoice))
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"invoices": out})
}
