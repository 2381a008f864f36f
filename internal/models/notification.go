package models

import "time"

// Notification types
const (
	NotificationOrderPaid     = "order_paid"
	NotificationInvoiceIssued = "invoice_issued"
	NotificationOrderShipped  = "order_shipped"
)

type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Message   string
	OrderID   *string
	Read      bool
	CreatedAt time.Time
}
