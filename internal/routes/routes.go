package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/lverdier/boutique/internal/auth"
	"github.com/lverdier/boutique/internal/handlers"
	"github.com/lverdier/boutique/internal/middleware"
	"github.com/lverdier/boutique/internal/models"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	productHandler *handlers.ProductHandler,
	cartHandler *handlers.CartHandler,
	orderHandler *handlers.OrderHandler,
	invoiceHandler *handlers.InvoiceHandler,
	notificationHandler *handlers.NotificationHandler,
	tokenManager *auth.TokenManager,
	userRepo auth.UserFetcher,
) {
	authLimit := middleware.RateLimitByIP(middleware.DefaultAuthRateLimit())
	checkoutLimit := middleware.RateLimitByIP(middleware.DefaultCheckoutRateLimit())

	// Public routes - no authentication required
	router.Get("/products", productHandler.List)
	router.Get("/products/{id}", productHandler.Get)

	router.With(authLimit).Post("/auth/register", authHandler.Register)
	router.With(authLimit).Post("/auth/login", authHandler.Login)
	router.With(authLimit).Post("/auth/refresh", authHandler.RefreshToken)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Get("/auth/me", authHandler.Me)

		r.Get("/cart", cartHandler.Get)
		r.Post("/cart/items", cartHandler.AddItem)
		r.Patch("/cart/items/{productID}", cartHandler.UpdateItem)
		r.Delete("/cart/items/{productID}", cartHandler.RemoveItem)

		r.Get("/orders", orderHandler.List)
		r.Get("/orders/{id}", orderHandler.Get)
		r.With(checkoutLimit).Post("/orders", orderHandler.Checkout)
		r.With(checkoutLimit).Post("/orders/{id}/pay", orderHandler.Pay)
		r.Post("/orders/{id}/invoice", invoiceHandler.Generate)

		r.Get("/invoices", invoiceHandler.List)
		r.Get("/invoices/{id}", invoiceHandler.Get)

		r.Get("/notifications", notificationHandler.List)
		r.Post("/notifications/{id}/read", notificationHandler.MarkRead)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, models.RoleAdmin))

			r.Post("/admin/products", productHandler.Create)
			r.Patch("/admin/products/{id}", productHandler.Update)
			r.Delete("/admin/products/{id}", productHandler.Delete)

			r.Get("/admin/orders", orderHandler.AdminList)
			r.Patch("/admin/orders/{id}/status", orderHandler.UpdateStatus)
		})
	})
}
