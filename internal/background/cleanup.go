package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/lverdier/boutique/internal/repositories"
)

// readNotificationRetention is how long read notifications stay before
// the sweeper removes them
const readNotificationRetention = 90 * 24 * time.Hour

// CleanupManager periodically removes expired login guard records and
// old read notifications
type CleanupManager struct {
	guardRepo        *repositories.LoginGuardRepository
	notificationRepo *repositories.NotificationRepository
	logger           *slog.Logger
	interval         time.Duration
	stopCh           chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	guardRepo *repositories.LoginGuardRepository,
	notificationRepo *repositories.NotificationRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		guardRepo:        guardRepo,
		notificationRepo: notificationRepo,
		logger:           logger,
		interval:         interval,
		stopCh:           make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	guardsDeleted, err := cm.guardRepo.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired login guards", slog.Any("error", err))
	} else if guardsDeleted > 0 {
		cm.logger.Info("expired login guard cleanup completed", slog.Int64("rows_deleted", guardsDeleted))
	}

	cutoff := time.Now().Add(-readNotificationRetention)
	notificationsDeleted, err := cm.notificationRepo.DeleteReadOlderThan(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to cleanup read notifications", slog.Any("error", err))
	} else if notificationsDeleted > 0 {
		cm.logger.Info("read notification cleanup completed", slog.Int64("rows_deleted", notificationsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
