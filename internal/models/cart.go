package models

import "time"

// CartItem links a user to a product with a quantity. The cart holds no
// price: checkout reads the live product price at order time.
type CartItem struct {
	UserID    string
	ProductID string
	Quantity  int
	AddedAt   time.Time
}

// CartLine is a cart item joined with its product for display and
// checkout validation.
type CartLine struct {
	ProductID   string
	ProductName string
	Slug        string
	UnitCents   int64
	Quantity    int
	Stock       int
	Active      bool
}
