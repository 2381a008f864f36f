// Package payments is the seam to the external payment collaborators.
// The real gateway exchanges happen outside this service; providers here
// only allocate the reference the storefront stores on the order and
// later matches against the confirmation callback.
package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lverdier/boutique/internal/models"
)

// Intent is the provider-side handle created at checkout
type Intent struct {
	Provider  string
	Reference string
}

// Provider creates payment intents for orders
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, orderID string, amountCents int64) (*Intent, error)
}

// Registry resolves providers by name
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the named provider or models.ErrBadRequest
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider %q: %w", name, models.ErrBadRequest)
	}
	return p, nil
}

// CardProvider fronts the card gateway
type CardProvider struct{}

func (CardProvider) Name() string { return models.PaymentProviderCard }

func (CardProvider) CreateIntent(ctx context.Context, orderID string, amountCents int64) (*Intent, error) {
	return &Intent{
		Provider:  models.PaymentProviderCard,
		Reference: "card_" + uuid.New().String(),
	}, nil
}

// PayPalProvider fronts the PayPal gateway
type PayPalProvider struct{}

func (PayPalProvider) Name() string { return models.PaymentProviderPayPal }

func (PayPalProvider) CreateIntent(ctx context.Context, orderID string, amountCents int64) (*Intent, error) {
	return &Intent{
		Provider:  models.PaymentProviderPayPal,
		Reference: "pp_" + uuid.New().String(),
	}, nil
}
