package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name        string
		rule        *Rule
		items       []Item
		wantAmount  decimal.Decimal
		wantErr     error
		wantErrText string
	}{
		{
			name:       "percentage 10% off two rings",
			rule:       &Rule{Code: "BEMVINDO10", DiscountType: DiscountPercentage, Value: d("10")},
			items:      []Item{{JewelID: 1, UnitPrice: d("250.00"), Quantity: 2}},
			wantAmount: d("50"),
		},
		{
			name:       "percentage rounds to cents",
			rule:       &Rule{Code: "P7", DiscountType: DiscountPercentage, Value: d("7")},
			items:      []Item{{JewelID: 1, UnitPrice: d("99.99"), Quantity: 1}},
			wantAmount: d("7.00"),
		},
		{
			name: "percentage capped by max discount",
			rule: &Rule{
				Code:         "METADE",
				DiscountType: DiscountPercentage,
				Value:        d("50"),
				MaxDiscount:  d("300"),
			},
			items:      []Item{{JewelID: 1, UnitPrice: d("1000"), Quantity: 1}},
			wantAmount: d("300"),
		},
		{
			name:       "fixed below subtotal",
			rule:       &Rule{Code: "MENOS50", DiscountType: DiscountFixed, Value: d("50")},
			items:      []Item{{JewelID: 1, UnitPrice: d("120"), Quantity: 1}},
			wantAmount: d("50"),
		},
		{
			name:       "fixed capped at subtotal",
			rule:       &Rule{Code: "MENOS500", DiscountType: DiscountFixed, Value: d("500")},
			items:      []Item{{JewelID: 1, UnitPrice: d("80"), Quantity: 2}},
			wantAmount: d("160"),
		},
		{
			name: "free lowest picks cheapest unit",
			rule: &Rule{Code: "BRINDE", DiscountType: DiscountFreeLowest},
			items: []Item{
				{JewelID: 1, UnitPrice: d("300"), Quantity: 1},
				{JewelID: 2, UnitPrice: d("45.90"), Quantity: 3},
				{JewelID: 3, UnitPrice: d("120"), Quantity: 1},
			},
			wantAmount: d("45.90"),
		},
		{
			name:       "free lowest on empty cart",
			rule:       &Rule{Code: "BRINDE", DiscountType: DiscountFreeLowest},
			wantAmount: decimal.Zero,
		},
		{
			name:    "min items counts quantities",
			rule:    &Rule{Code: "TRIO", DiscountType: DiscountFixed, Value: d("10"), MinItems: 3},
			items:   []Item{{JewelID: 1, UnitPrice: d("10"), Quantity: 2}},
			wantErr: ErrInvalidCoupon,
		},
		{
			name:       "min items satisfied by quantity",
			rule:       &Rule{Code: "TRIO", DiscountType: DiscountFixed, Value: d("10"), MinItems: 3},
			items:      []Item{{JewelID: 1, UnitPrice: d("10"), Quantity: 3}},
			wantAmount: d("10"),
		},
		{
			name:        "unknown type",
			rule:        &Rule{Code: "X", DiscountType: "bogus"},
			items:       []Item{{JewelID: 1, UnitPrice: d("10"), Quantity: 1}},
			wantErrText: "unsupported discount type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.rule, tt.items)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
				return
			case tt.wantErrText != "":
				require.ErrorContains(t, err, tt.wantErrText)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.wantAmount.Equal(got.Amount), "expected %s, got %s", tt.wantAmount, got.Amount)
			assert.Equal(t, tt.rule.Code, got.Code)
		})
	}
}

func TestSubtotal(t *testing.T) {
	items := []Item{
		{JewelID: 1, UnitPrice: d("10.50"), Quantity: 2},
		{JewelID: 2, UnitPrice: d("0.99"), Quantity: 1},
	}
	assert.True(t, d("21.99").Equal(Subtotal(items)))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "BEMVINDO10", NormalizeCode("  bemVindo10 "))
	assert.Equal(t, "", NormalizeCode("   "))
}
