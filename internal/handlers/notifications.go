package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lverdier/boutique/internal/auth"
	"github.com/lverdier/boutique/internal/models"
	pkghttp "github.com/lverdier/boutique/pkg/http"
)

// NotificationServiceInterface defines the interface for notification business logic
type NotificationServiceInterface interface {
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// NotificationHandler handles notification HTTP requests
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	OrderID   *string   `json:"order_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the authenticated user's notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	notifications, err := h.service.ListNotifications(r.Context(), claims.UserID,
		parseIntParam(r, "limit", 20), parseIntParam(r, "offset", 0))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]*NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, &NotificationResponse{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			OrderID:   n.OrderID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"notifications": out})
}

// MarkRead flags one notification as read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.service.MarkRead(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Notification not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
