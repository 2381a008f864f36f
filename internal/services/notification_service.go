package services

import (
	"context"
	"log/slog"

	"github.com/lverdier/boutique/internal/models"
)

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// NotificationService surfaces the per-user notification feed
type NotificationService struct {
	repo   NotificationRepository
	logger *slog.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repo NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

// ListNotifications returns the user's notifications, newest first
func (s *NotificationService) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	notifications, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list notifications", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return notifications, nil
}

// MarkRead flags one of the user's notifications as read. Marking
// someone else's notification reports not found rather than forbidden,
// so the endpoint does not leak which IDs exist.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, userID, id)
}
