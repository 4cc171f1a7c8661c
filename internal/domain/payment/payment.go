// Package payment defines the payment gateway port used at checkout.
package payment

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrPaymentFailed is returned when a gateway refuses or cannot process a
// charge. Nothing is persisted when a charge fails.
var ErrPaymentFailed = errors.New("payment failed")

// Method is a payment method offered at checkout.
type Method string

const (
	MethodPix    Method = "PIX"
	MethodCard   Method = "CARTAO"
	MethodBoleto Method = "BOLETO"
)

// ParseMethod parses a payment method case-insensitively.
func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodPix, MethodCard, MethodBoleto:
		return m, true
	default:
		return "", false
	}
}

// Status is the gateway-agnostic state of a transaction.
type Status string

const (
	StatusApproved Status = "APROVADO"
	StatusPending  Status = "PENDENTE"
	StatusRejected Status = "REJEITADO"
	StatusRefunded Status = "ESTORNADO"
)

// Payer identifies the customer being charged.
type Payer struct {
	Email     string
	FirstName string
	LastName  string
	ZipCode   string
	Street    string
	Number    string
	District  string
	City      string
	State     string
}

// Charge is a request to collect Amount from Payer.
type Charge struct {
	// Reference is a caller-chosen key, used for idempotency.
	Reference   string
	Amount      decimal.Decimal
	Method      Method
	Description string
	Payer       Payer
}

// Transaction is the gateway's view of a charge.
type Transaction struct {
	ExternalID string
	Status     Status
	Amount     decimal.Decimal
	Method     Method
	// PaymentURL points to a boleto or PIX ticket when the customer still
	// has to pay.
	PaymentURL string
	Message    string
}

// Gateway charges customers and reports transaction status.
type Gateway interface {
	// Charge returns an error wrapping ErrPaymentFailed when the charge is
	// refused or the gateway is unreachable.
	Charge(ctx context.Context, c Charge) (*Transaction, error)
	Status(ctx context.Context, externalID string) (*Transaction, error)
}
