package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/lverdier/boutique/internal/models"
)

// ProductRepository defines the interface for catalog data access
type ProductRepository interface {
	List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	Update(ctx context.Context, id string, product *models.Product) (*models.Product, error)
	Deactivate(ctx context.Context, id string) error
}

// CatalogService handles product catalog business logic
type CatalogService struct {
	repo   ProductRepository
	logger *slog.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(repo ProductRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		repo:   repo,
		logger: logger,
	}
}

// ListProducts returns active products matching the filter
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	products, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list products", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return products, nil
}

// GetProduct resolves a product by id, falling back to slug lookup so
// both /products/{uuid} and /products/{slug} work
func (s *CatalogService) GetProduct(ctx context.Context, idOrSlug string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, idOrSlug)
	if errors.Is(err, models.ErrNotFound) {
		product, err = s.repo.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get product", slog.String("product", idOrSlug), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return product, nil
}

// CreateProduct adds a catalog entry, deriving the slug when absent
func (s *CatalogService) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.Slug == "" {
		product.Slug = Slugify(product.Name)
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create product", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("product created",
		slog.String("product_id", created.ID),
		slog.String("slug", created.Slug))
	return created, nil
}

// UpdateProduct applies non-zero fields of the update to an existing product
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, update *models.Product) (*models.Product, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get product", slog.String("product_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if update.Name != "" {
		existing.Name = update.Name
	}
	if update.Description != "" {
		existing.Description = update.Description
	}
	if update.PriceCents > 0 {
		existing.PriceCents = update.PriceCents
	}
	if update.Stock >= 0 {
		existing.Stock = update.Stock
	}
	if update.Category != "" {
		existing.Category = update.Category
	}
	if update.ImageURLs != nil {
		existing.ImageURLs = update.ImageURLs
	}

	updated, err := s.repo.Update(ctx, id, existing)
	if err != nil {
		s.logger.Error("failed to update product", slog.String("product_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return updated, nil
}

// DeleteProduct soft-deletes a product; order and invoice history keep
// their snapshots either way
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	err := s.repo.Deactivate(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to deactivate product", slog.String("product_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("product deactivated", slog.String("product_id", id))
	return nil
}

// Slugify lowercases a name and replaces runs of non-alphanumerics with dashes
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
