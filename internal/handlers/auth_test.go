package handlers_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/lverdier/boutique/internal/handlers"
	"github.com/lverdier/boutique/internal/models"
	"github.com/lverdier/boutique/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestLogin_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ipAddress string) (*services.AuthResponse, *models.GuardStatus, error) {
			return &services.AuthResponse{
				AccessToken:  "access_token_123",
				RefreshToken: "refresh_token_123",
			}, nil, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "claire@example.com",
		Password: "Password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "access_token_123", resp.AccessToken)
	assert.Equal(t, "refresh_token_123", resp.RefreshToken)
}

func TestLogin_FailureCarriesAttemptsLeft(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ipAddress string) (*services.AuthResponse, *models.GuardStatus, error) {
			return nil, &models.GuardStatus{AttemptsLeft: 3}, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "claire@example.com",
		Password: "wrongpassword",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.FailedLoginResponse
	handlers.AssertJSONResponse(t, w, 401, &resp)
	assert.Equal(t, "unauthorized", resp.Error)
	assert.Equal(t, "Authentication failed", resp.Message)
	assert.Equal(t, 3, resp.AttemptsLeft)
}

func TestLogin_BlockedCarriesBlockTimeLeft(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ipAddress string) (*services.AuthResponse, *models.GuardStatus, error) {
			return nil, &models.GuardStatus{IsBlocked: true, BlockTimeLeft: 240}, models.ErrAccountBlocked
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "claire@example.com",
		Password: "Password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.BlockedResponse
	handlers.AssertJSONResponse(t, w, 429, &resp)
	assert.Equal(t, "account_blocked", resp.Error)
	assert.Equal(t, 240, resp.BlockTimeLeft)
}

func TestLogin_UnknownEmailIndistinguishableFromWrongPassword(t *testing.T) {
	// Both paths surface the same 401 body; only the mock differs
	responses := make([]string, 0, 2)

	for _, label := range []string{"unknown email", "wrong password"} {
		mockAuth := &handlers.MockAuthService{
			LoginFunc: func(ctx context.Context, email, password, ipAddress string) (*services.AuthResponse, *models.GuardStatus, error) {
				return nil, &models.GuardStatus{AttemptsLeft: 4}, models.ErrUnauthorized
			},
		}

		handler := handlers.NewAuthHandler(mockAuth, nil)
		req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
			Email:    "claire@example.com",
			Password: "whatever",
		})

		w := httptest.NewRecorder()
		handler.Login(w, req)

		assert.Equal(t, 401, w.Code, label)
		responses = append(responses, w.Body.String())
	}

	assert.Equal(t, responses[0], responses[1])
}

func TestLogin_InvalidBody(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", map[string]string{
		"email": "not-an-email",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRegister_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password, name string) (*services.AuthResponse, error) {
			return &services.AuthResponse{
				AccessToken: "access_token_new",
				User:        &services.UserResponse{Email: email, Name: name, Role: models.RoleCustomer},
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Email:    "claire@example.com",
		Password: "Password123",
		Name:     "Claire Fontaine",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "claire@example.com", resp.User.Email)
	assert.Equal(t, models.RoleCustomer, resp.User.Role)
}

func TestRegister_ExistingEmailNotRevealed(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password, name string) (*services.AuthResponse, error) {
			return nil, models.ErrConflict
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Email:    "taken@example.com",
		Password: "Password123",
		Name:     "Someone Else",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	assert.Equal(t, 202, w.Code)

	var resp map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.NotContains(t, resp["message"], "already")
}

func TestRefreshToken_Invalid(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RefreshTokenFunc: func(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
			return nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: "expired_token",
	})

	w := httptest.NewRecorder()
	handler.RefreshToken(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestMe_ReturnsProfile(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		MeFunc: func(ctx context.Context, userID string) (*services.UserResponse, error) {
			return &services.UserResponse{ID: userID, Email: "claire@example.com", Name: "Claire"}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "GET", "/auth/me", nil)
	req = handlers.WithAuthContext(req, "user-1", "claire@example.com")

	w := httptest.NewRecorder()
	handler.Me(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "user-1", resp.ID)
}

func TestMe_MissingClaims(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := handlers.NewTestRequest(t, "GET", "/auth/me", nil)

	w := httptest.NewRecorder()
	handler.Me(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}
