package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/lverdier/boutique/internal/auth"
	"github.com/lverdier/boutique/internal/models"
	"github.com/lverdier/boutique/internal/services"
	pkghttp "github.com/lverdier/boutique/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds customer claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   models.RoleCustomer,
		Type:   "access",
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// WithAdminContext adds admin claims to request context
func WithAdminContext(req *http.Request, userID, email string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   models.RoleAdmin,
		Type:   "access",
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc        func(ctx context.Context, email, password, ipAddress string) (*services.AuthResponse, *models.GuardStatus, error)
	RegisterFunc     func(ctx context.Context, email, password, name string) (*services.AuthResponse, error)
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	MeFunc           func(ctx context.Context, userID string) (*services.UserResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ipAddress string) (*services.AuthResponse, *models.GuardStatus, error) {
	if m.LoginFunc == nil {
		return nil, nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, ipAddress)
}

func (m *MockAuthService) Register(ctx context.Context, email, password, name string) (*services.AuthResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, email, password, name)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	if m.RefreshTokenFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshTokenFunc(ctx, refreshToken)
}

func (m *MockAuthService) Me(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.MeFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.MeFunc(ctx, userID)
}

// MockInvoiceService implements InvoiceServiceInterface for testing
type MockInvoiceService struct {
	GenerateInvoiceFunc func(ctx context.Context, orderID, ownerEmail string) (*services.InvoiceSummary, error)
	GetInvoiceFunc      func(ctx context.Context, id, userID string, isAdmin bool) (*models.Invoice, error)
	ListInvoicesFunc    func(ctx context.Context, userID string, isAdmin bool, limit, offset int) ([]*models.Invoice, error)
}

func (m *MockInvoiceService) GenerateInvoice(ctx context.Context, orderID, ownerEmail string) (*services.InvoiceSummary, error) {
	if m.GenerateInvoiceFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GenerateInvoiceFunc(ctx, orderID, ownerEmail)
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, id, userID string, isAdmin bool) (*models.Invoice, error) {
	if m.GetInvoiceFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetInvoiceFunc(ctx, id, userID, isAdmin)
}

func (m *MockInvoiceService) ListInvoices(ctx context.Context, userID string, isAdmin bool, limit, offset int) ([]*models.Invoice, error) {
	if m.ListInvoicesFunc == nil {
		return []*models.Invoice{}, nil
	}
	return m.ListInvoicesFunc(ctx, userID, isAdmin, limit, offset)
}

// MockOrderService implements the order-access subset handlers need in tests
type MockOrderService struct {
	GetOrderFunc func(ctx context.Context, id, userID string, isAdmin bool) (*models.Order, error)
}

func (m *MockOrderService) GetOrder(ctx context.Context, id, userID string, isAdmin bool) (*models.Order, error) {
	if m.GetOrderFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetOrderFunc(ctx, id, userID, isAdmin)
}
