package mockpay

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/vejoias/internal/domain/payment"
)

func fixed(roll float64, id int) Option {
	return WithRand(func() float64 { return roll }, func() int { return id })
}

func TestCharge(t *testing.T) {
	tests := []struct {
		name       string
		amount     string
		method     payment.Method
		wantStatus payment.Status
		wantURL    bool
	}{
		{name: "approved", amount: "120.00", method: payment.MethodPix, wantStatus: payment.StatusApproved},
		{name: "at threshold", amount: "5000.00", method: payment.MethodCard, wantStatus: payment.StatusApproved},
		{name: "large stays pending", amount: "5000.01", method: payment.MethodCard, wantStatus: payment.StatusPending},
		{name: "boleto carries url", amount: "80", method: payment.MethodBoleto, wantStatus: payment.StatusApproved, wantURL: true},
	}

	g := New(0, fixed(0, 123456))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := g.Charge(context.Background(), payment.Charge{
				Amount: decimal.RequireFromString(tt.amount),
				Method: tt.method,
			})
			require.NoError(t, err)
			assert.Equal(t, "MOCK-123456", tx.ExternalID)
			assert.Equal(t, tt.wantStatus, tx.Status)
			assert.Equal(t, tt.method, tx.Method)
			assert.Equal(t, tt.wantURL, tx.PaymentURL != "")
		})
	}
}

func TestCharge_Refused(t *testing.T) {
	g := New(0.1, fixed(0.05, 1))
	_, err := g.Charge(context.Background(), payment.Charge{Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, payment.ErrPaymentFailed)

	g = New(0.1, fixed(0.5, 1))
	tx, err := g.Charge(context.Background(), payment.Charge{Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, "MOCK-000001", tx.ExternalID)
}

func TestNew_DefaultIDs(t *testing.T) {
	g := New(0)
	for range 20 {
		tx, err := g.Charge(context.Background(), payment.Charge{Amount: decimal.NewFromInt(1)})
		require.NoError(t, err)
		assert.Regexp(t, `^MOCK-[1-9]\d{5}$`, tx.ExternalID)
	}
}

func TestStatus(t *testing.T) {
	g := New(0)

	tx, err := g.Status(context.Background(), "MOCK-654321")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, tx.Status)

	tx, err = g.Status(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRejected, tx.Status)
}
