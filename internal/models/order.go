package models

import "time"

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Payment providers accepted at checkout
const (
	PaymentProviderCard   = "card"
	PaymentProviderPayPal = "paypal"
)

type Order struct {
	ID              string
	UserID          string
	Status          string
	TotalCents      int64
	PaymentProvider string
	PaymentRef      string
	ShippingName    string
	ShippingAddress string
	ShippingCity    string
	ShippingZip     string
	ShippingCountry string
	PaidAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []*OrderItem
}

// OrderItem snapshots the product at checkout time so later catalog edits
// do not rewrite order history.
type OrderItem struct {
	ID             string
	OrderID        string
	ProductID      string
	ProductName    string
	UnitPriceCents int64
	Quantity       int
	TotalCents     int64
}

// orderTransitions lists the allowed status moves.
var orderTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped},
	OrderStatusShipped: {OrderStatusDelivered},
}

// CanTransitionTo reports whether an order may move from its current
// status to the target status.
func (o *Order) CanTransitionTo(target string) bool {
	for _, next := range orderTransitions[o.Status] {
		if next == target {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether s names a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}
