package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/lverdier/boutique/internal/models"
	pkglogger "github.com/lverdier/boutique/pkg/logger"
)

// LoginGuardRepository defines the persistence interface for guard records
type LoginGuardRepository interface {
	Get(ctx context.Context, identityKey string) (*models.LoginGuard, error)
	RecordFailure(ctx context.Context, identityKey string, maxAttempts int, blockedUntil, expiresAt time.Time) (*models.LoginGuard, error)
	Reset(ctx context.Context, identityKey string) error
}

// LoginGuardConfig holds the brute-force lockout policy
type LoginGuardConfig struct {
	MaxFailedAttempts int
	LockoutWindow     time.Duration
	RecordTTL         time.Duration
}

// LoginGuardService tracks failed login attempts per identity and
// imposes a temporary lockout once the threshold is reached. The guard
// is advisory: the login flow must call CheckStatus before verifying
// credentials and short-circuit when blocked.
type LoginGuardService struct {
	repo   LoginGuardRepository
	config LoginGuardConfig
	logger *slog.Logger
}

// NewLoginGuardService creates a new LoginGuardService
func NewLoginGuardService(repo LoginGuardRepository, config LoginGuardConfig, logger *slog.Logger) *LoginGuardService {
	return &LoginGuardService{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// IdentityKey builds the guard key from the account email and the client
// IP. Keying on both avoids a shared global lockout while keeping a
// single-address attacker from locking a victim out remotely.
func IdentityKey(email, ipAddress string) string {
	return strings.ToLower(strings.TrimSpace(email)) + "|" + ipAddress
}

// CheckStatus reports whether the identity is currently blocked and, if
// not, how many attempts remain before lockout. Read-only.
func (s *LoginGuardService) CheckStatus(ctx context.Context, email, ipAddress string) (*models.GuardStatus, error) {
	guard, err := s.repo.Get(ctx, IdentityKey(email, ipAddress))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.GuardStatus{AttemptsLeft: s.config.MaxFailedAttempts}, nil
		}
		// Fail open for availability - DB errors shouldn't block legitimate users
		s.logger.Error("failed to read login guard state", slog.Any("error", err))
		return &models.GuardStatus{AttemptsLeft: s.config.MaxFailedAttempts}, nil
	}

	now := time.Now()
	if guard.BlockedUntil != nil && guard.BlockedUntil.After(now) {
		left := int(math.Ceil(guard.BlockedUntil.Sub(now).Seconds()))
		return &models.GuardStatus{IsBlocked: true, BlockTimeLeft: left}, nil
	}

	// An expired block counts as a clean slate
	if guard.BlockedUntil != nil {
		return &models.GuardStatus{AttemptsLeft: s.config.MaxFailedAttempts}, nil
	}

	attemptsLeft := s.config.MaxFailedAttempts - guard.FailedCount
	if attemptsLeft < 0 {
		attemptsLeft = 0
	}
	return &models.GuardStatus{AttemptsLeft: attemptsLeft}, nil
}

// RecordAttempt records the outcome of a login attempt. Success fully
// resets the identity's state; failure increments the counter and stamps
// the lockout when the threshold is reached.
func (s *LoginGuardService) RecordAttempt(ctx context.Context, email, ipAddress string, success bool) error {
	key := IdentityKey(email, ipAddress)

	if success {
		return s.repo.Reset(ctx, key)
	}

	now := time.Now()
	guard, err := s.repo.RecordFailure(ctx, key,
		s.config.MaxFailedAttempts,
		now.Add(s.config.LockoutWindow),
		now.Add(s.config.RecordTTL),
	)
	if err != nil {
		return err
	}

	if guard.BlockedUntil != nil && guard.FailedCount >= s.config.MaxFailedAttempts {
		s.logger.Warn("login identity blocked",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.String("ip_address", ipAddress),
			slog.Int("failed_attempts", guard.FailedCount),
			slog.Time("blocked_until", *guard.BlockedUntil))
	}

	return nil
}
