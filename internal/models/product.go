package models

import "time"

// Product is a catalog entry. Prices are carried in cents to avoid
// floating point drift in order and invoice totals.
type Product struct {
	ID          string
	Slug        string
	Name        string
	Description string
	PriceCents  int64
	Stock       int
	Category    string
	ImageURLs   []string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductFilter narrows catalog listings. Zero values mean "no filter".
type ProductFilter struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}
