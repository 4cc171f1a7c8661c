package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Apply calculates the discount rule grants for items. It returns
// ErrInvalidCoupon when the cart does not satisfy the minimum item count.
func Apply(rule *Rule, items []Item) (Discount, error) {
	if rule.MinItems > 0 && totalQuantity(items) < rule.MinItems {
		return Discount{}, ErrInvalidCoupon
	}

	subtotal := Subtotal(items)

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
		if rule.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, rule.MaxDiscount)
		}
	case DiscountFixed:
		amount = decimal.Min(rule.Value, subtotal)
	case DiscountFreeLowest:
		amount = lowestUnitPrice(items)
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	return Discount{
		Code:        rule.Code,
		Amount:      floorAtZero(amount).Round(2),
		Description: rule.Description,
	}, nil
}

// Subtotal returns the sum of unit price * quantity across items.
func Subtotal(items []Item) decimal.Decimal {
	sum := zero
	for _, item := range items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

func totalQuantity(items []Item) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// lowestUnitPrice returns zero for an empty cart.
func lowestUnitPrice(items []Item) decimal.Decimal {
	if len(items) == 0 {
		return zero
	}
	lowest := items[0].UnitPrice
	for _, item := range items[1:] {
		if item.UnitPrice.LessThan(lowest) {
			lowest = item.UnitPrice
		}
	}
	return lowest
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
