// Package notify defines how customers are told about their orders.
package notify

import (
	"context"

	"github.com/shopspring/decimal"
)

// Order is the order summary carried by notifications.
type Order struct {
	ID            int64
	CustomerName  string
	Email         string
	Phone         string
	Status        string
	Total         decimal.Decimal
	PaymentMethod string
	PaymentURL    string
}

// Notifier delivers order notifications. Callers treat failures as
// non-fatal.
type Notifier interface {
	OrderConfirmed(ctx context.Context, o Order) error
	PaymentApproved(ctx context.Context, o Order) error
	StatusChanged(ctx context.Context, o Order) error
}
