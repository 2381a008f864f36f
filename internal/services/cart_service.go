package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lverdier/boutique/internal/models"
)

// CartRepository defines the interface for cart data access
type CartRepository interface {
	GetLines(ctx context.Context, userID string) ([]*models.CartLine, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) error
	SetQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
}

// CartService handles the per-user persisted cart
type CartService struct {
	repo     CartRepository
	products ProductRepository
	logger   *slog.Logger
}

// NewCartService creates a new CartService
func NewCartService(repo CartRepository, products ProductRepository, logger *slog.Logger) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
		logger:   logger,
	}
}

// CartView is the cart as returned to the client
type CartView struct {
	Lines      []*models.CartLine
	TotalCents int64
}

// GetCart returns the user's cart with live prices and a running total
func (s *CartService) GetCart(ctx context.Context, userID string) (*CartView, error) {
	lines, err := s.repo.GetLines(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load cart", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	view := &CartView{Lines: lines}
	for _, line := range lines {
		view.TotalCents += line.UnitCents * int64(line.Quantity)
	}
	return view, nil
}

// AddItem puts a product in the cart, verifying it exists and is active
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 1 {
		return models.ErrBadRequest
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get product for cart", slog.String("product_id", productID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !product.Active {
		return models.ErrNotFound
	}

	if err := s.repo.AddItem(ctx, userID, productID, quantity); err != nil {
		s.logger.Error("failed to add cart item", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// UpdateQuantity replaces a cart line's quantity; zero removes the line
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 0 {
		return models.ErrBadRequest
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	err := s.repo.SetQuantity(ctx, userID, productID, quantity)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to update cart item", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// RemoveItem drops a line from the cart
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	err := s.repo.RemoveItem(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to remove cart item", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}
