package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lverdier/boutique/internal/auth"
	"github.com/lverdier/boutique/internal/models"
	pkgauth "github.com/lverdier/boutique/pkg/auth"
	pkglogger "github.com/lverdier/boutique/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// LoginGuard is the advisory brute-force guard consulted by the login flow
type LoginGuard interface {
	CheckStatus(ctx context.Context, email, ipAddress string) (*models.GuardStatus, error)
	RecordAttempt(ctx context.Context, email, ipAddress string, success bool) error
}

// AuthService handles authentication business logic
type AuthService struct {
	repo   UserRepository
	guard  LoginGuard
	tm     *auth.TokenManager
	logger *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, guard LoginGuard, tm *auth.TokenManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		repo:   repo,
		guard:  guard,
		tm:     tm,
		logger: logger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Login authenticates a user and returns tokens. The guard is consulted
// before credentials are verified; while an identity is blocked no
// password check happens at all. The returned GuardStatus lets the
// handler report block_time_left or attempts_left alongside the error.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress string) (*AuthResponse, *models.GuardStatus, error) {
	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, nil, models.ErrUnauthorized
	}

	status, err := s.guard.CheckStatus(ctx, email, ipAddress)
	if err != nil {
		s.logger.Error("failed to check login guard", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}
	if status.IsBlocked {
		s.logger.Info("login blocked by guard",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Int("block_time_left", status.BlockTimeLeft))
		return nil, status, models.ErrAccountBlocked
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Record the failure for unknown accounts too, otherwise
			// probing valid emails becomes trivially observable
			s.recordAttempt(ctx, email, ipAddress, false)
			s.logger.Info("login failed: invalid credentials")
			return nil, s.failureStatus(ctx, email, ipAddress), models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.recordAttempt(ctx, email, ipAddress, false)
		s.logger.Info("login failed: invalid credentials")
		return nil, s.failureStatus(ctx, email, ipAddress), models.ErrUnauthorized
	}

	s.recordAttempt(ctx, email, ipAddress, true)

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(user),
	}, nil, nil
}

func (s *AuthService) recordAttempt(ctx context.Context, email, ipAddress string, success bool) {
	if err := s.guard.RecordAttempt(ctx, email, ipAddress, success); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
	}
}

func (s *AuthService) failureStatus(ctx context.Context, email, ipAddress string) *models.GuardStatus {
	status, err := s.guard.CheckStatus(ctx, email, ipAddress)
	if err != nil {
		return nil
	}
	return status
}

// Register creates a new customer account
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		s.logger.Info("registration for existing account")
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check existing account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         name,
		Role:         models.RoleCustomer,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.String("user_id", created.ID))

	accessToken, err := s.tm.GenerateAccessToken(created.ID, created.Email, created.Role)
	if err != nil {
		return nil, models.ErrInternalServer
	}
	refreshToken, err := s.tm.GenerateRefreshToken(created.ID, created.Email, created.Role)
	if err != nil {
		return nil, models.ErrInternalServer
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(created),
	}, nil
}

// RefreshToken generates a new token pair from a refresh token
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*AuthResponse, error) {
	if refreshTokenString = strings.TrimSpace(refreshTokenString); refreshTokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshTokenString)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	if claims.Type != "refresh" {
		s.logger.Warn("refresh attempt with non-refresh token", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, models.ErrInternalServer
	}
	refreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, models.ErrInternalServer
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(user),
	}, nil
}

// Me returns the authenticated user's profile
func (s *AuthService) Me(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return userModelToResponse(user), nil
}
