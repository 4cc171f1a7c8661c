// Package mockpay is an in-process payment gateway for development and
// demos. It never talks to the network.
package mockpay

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/vejoias/internal/domain/payment"
)

const idPrefix = "MOCK-"

// pendingAbove is the amount over which charges stay pending.
var pendingAbove = decimal.NewFromInt(5000)

var _ payment.Gateway = (*Gateway)(nil)

// Gateway approves charges, leaves large ones pending and refuses a
// configurable share of them.
type Gateway struct {
	failureRatio float64
	roll         func() float64
	id           func() int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRand replaces the random sources used to refuse charges and to
// generate transaction ids.
func WithRand(roll func() float64, id func() int) Option {
	return func(g *Gateway) {
		g.roll = roll
		g.id = id
	}
}

// New returns a Gateway refusing roughly failureRatio of all charges.
func New(failureRatio float64, opts ...Option) *Gateway {
	g := &Gateway{
		failureRatio: min(max(failureRatio, 0), 1),
		roll:         rand.Float64,
		id:           func() int { return 100000 + rand.IntN(900000) },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Charge implements payment.Gateway.
func (g *Gateway) Charge(_ context.Context, c payment.Charge) (*payment.Transaction, error) {
	if g.failureRatio > 0 && g.roll() < g.failureRatio {
		return nil, errors.Wrap(payment.ErrPaymentFailed, "card declined or limit exceeded")
	}

	tx := &payment.Transaction{
		ExternalID: fmt.Sprintf("%s%06d", idPrefix, g.id()),
		Status:     payment.StatusApproved,
		Amount:     c.Amount,
		Method:     c.Method,
		Message:    "payment approved",
	}
	if c.Amount.GreaterThan(pendingAbove) {
		tx.Status = payment.StatusPending
		tx.Message = "payment under review"
	}
	if c.Method == payment.MethodBoleto {
		tx.PaymentURL = "https://boleto.example.com/" + tx.ExternalID
	}
	return tx, nil
}

// Status implements payment.Gateway. Mock transactions are always pending
// and anything else is unknown to this gateway.
func (g *Gateway) Status(_ context.Context, externalID string) (*payment.Transaction, error) {
	if strings.HasPrefix(externalID, idPrefix) {
		return &payment.Transaction{
			ExternalID: externalID,
			Status:     payment.StatusPending,
			Message:    "awaiting confirmation",
		}, nil
	}
	return &payment.Transaction{
		ExternalID: externalID,
		Status:     payment.StatusRejected,
		Message:    "transaction not found",
	}, nil
}
