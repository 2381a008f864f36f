package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lverdier/boutique/internal/middleware"
	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders_AlwaysSet(t *testing.T) {
	handler := middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: "development"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest("GET", "/products", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeaders_HSTSOnlyOnProductionHTTPS(t *testing.T) {
	handler := middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: "production"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest("GET", "/products", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=")

	// Plain HTTP gets no HSTS even in production
	req = httptest.NewRequest("GET", "/products", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestCORS_UnlistedOriginGetsNoHeaders(t *testing.T) {
	config := middleware.DefaultCORSConfig([]string{"https://boutique.example.com"})
	handler := middleware.CORS(config)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest("GET", "/products", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/products", nil)
	req.Header.Set("Origin", "https://boutique.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "https://boutique.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
