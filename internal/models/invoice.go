package models

import "time"

// Invoice payment statuses
const (
	InvoicePaymentPending = "pending"
	InvoicePaymentSettled = "settled"
)

// DefaultTaxNote is carried verbatim onto every invoice issued by the
// micro-business configuration (VAT exemption, 0% rate).
const DefaultTaxNote = "TVA non applicable, art. 293 B du CGI"

// Invoice is the immutable record issued for a paid order. Its number is
// the per-year sequence "{year}-{seq:04d}" and is unique across all
// invoices; each order has at most one invoice.
type Invoice struct {
	ID            string
	Number        string
	OrderID       string
	UserID        string
	TotalCents    int64
	TaxRateBP     int // basis points; 0 in the micro-business configuration
	TaxNote       string
	DueDate       time.Time
	PaymentStatus string
	IssuedAt      time.Time
	Items         []*InvoiceItem
}

// InvoiceItem snapshots an order line at invoice time, decoupled from
// later product mutation or deletion.
type InvoiceItem struct {
	ID             string
	InvoiceID      string
	ProductName    string
	UnitPriceCents int64
	Quantity       int
	TotalCents     int64
}
