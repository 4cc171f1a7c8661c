package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	rules   map[string]*Rule
	findErr error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*Rule, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	r, ok := m.rules[code]
	if !ok {
		return nil, ErrInvalidCoupon
	}
	return r, nil
}

func (m *mockCouponRepo) Upsert(_ context.Context, r *Rule) error {
	m.rules[r.Code] = r
	return nil
}

func repoWith(r *Rule) *mockCouponRepo {
	return &mockCouponRepo{rules: map[string]*Rule{r.Code: r}}
}

func TestRepoValidator_Quote(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	ring := []Item{{JewelID: 1, UnitPrice: decimal.NewFromInt(100), Quantity: 1}}

	tests := []struct {
		name       string
		rule       *Rule
		code       string
		items      []Item
		wantAmount decimal.Decimal
		wantErr    error
	}{
		{
			name:       "valid code",
			rule:       &Rule{Code: "DEZ", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10), Active: true},
			code:       "DEZ",
			items:      ring,
			wantAmount: decimal.NewFromInt(10),
		},
		{
			name:       "code is case-insensitive",
			rule:       &Rule{Code: "DEZ", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10), Active: true},
			code:       " dez ",
			items:      ring,
			wantAmount: decimal.NewFromInt(10),
		},
		{
			name:    "unknown code",
			rule:    &Rule{Code: "DEZ", Active: true},
			code:    "BOGUS",
			items:   ring,
			wantErr: ErrInvalidCoupon,
		},
		{
			name:    "empty code",
			rule:    &Rule{Code: "DEZ", Active: true},
			code:    "  ",
			items:   ring,
			wantErr: ErrInvalidCoupon,
		},
		{
			name:    "inactive coupon",
			rule:    &Rule{Code: "OFF", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5)},
			code:    "OFF",
			items:   ring,
			wantErr: ErrInvalidCoupon,
		},
		{
			name:    "expired",
			rule:    &Rule{Code: "OLD", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), ValidUntil: &yesterday, Active: true},
			code:    "OLD",
			items:   ring,
			wantErr: ErrCouponExpired,
		},
		{
			name:    "not yet valid",
			rule:    &Rule{Code: "SOON", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), ValidFrom: &tomorrow, Active: true},
			code:    "SOON",
			items:   ring,
			wantErr: ErrCouponExpired,
		},
		{
			name: "inside window",
			rule: &Rule{
				Code:         "WINDOW",
				DiscountType: DiscountFixed,
				Value:        decimal.NewFromInt(5),
				ValidFrom:    &yesterday,
				ValidUntil:   &tomorrow,
				Active:       true,
			},
			code:       "WINDOW",
			items:      ring,
			wantAmount: decimal.NewFromInt(5),
		},
		{
			name:    "usage limit reached",
			rule:    &Rule{Code: "LIM", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), MaxUses: 3, Uses: 3, Active: true},
			code:    "LIM",
			items:   ring,
			wantErr: ErrCouponUsageLimitReached,
		},
		{
			name:       "unlimited uses",
			rule:       &Rule{Code: "ALL", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), Uses: 9999, Active: true},
			code:       "ALL",
			items:      ring,
			wantAmount: decimal.NewFromInt(5),
		},
		{
			name:    "below min items",
			rule:    &Rule{Code: "DUO", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), MinItems: 2, Active: true},
			code:    "DUO",
			items:   ring,
			wantErr: ErrInvalidCoupon,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repoWith(tt.rule)
			v := NewRepoValidator(repo)
			v.now = func() time.Time { return now }

			got, err := v.Quote(context.Background(), tt.code, tt.items)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.wantAmount.Equal(got.Amount), "expected %s, got %s", tt.wantAmount, got.Amount)
			assert.Equal(t, tt.rule.Code, got.Code)
		})
	}
}

func TestRepoValidator_StorageErrors(t *testing.T) {
	items := []Item{{JewelID: 1, UnitPrice: decimal.NewFromInt(50), Quantity: 1}}

	repo := &mockCouponRepo{findErr: errors.New("connection refused")}
	_, err := NewRepoValidator(repo).Quote(context.Background(), "ANY", items)
	require.ErrorContains(t, err, "lookup coupon")
	require.NotErrorIs(t, err, ErrInvalidCoupon)
}
