// Package coupon implements discount coupons applied at checkout.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountFreeLowest gives away one unit of the cheapest jewel.
	DiscountFreeLowest DiscountType = "free_lowest"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixed, DiscountFreeLowest:
		return true
	default:
		return false
	}
}

var (
	// ErrInvalidCoupon is returned when a code is unknown, inactive or the
	// cart does not meet the minimum item count.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned outside the coupon validity window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has no uses left.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
)

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinItems     int
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	MaxUses      int
	Uses         int
	// MaxDiscount caps percentage discounts when positive.
	MaxDiscount decimal.Decimal
	Active      bool
}

// Discount is the computed amount taken off an order.
type Discount struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Item is a cart line as seen by discount calculation.
type Item struct {
	JewelID   int64
	UnitPrice decimal.Decimal
	Quantity  int
}

// Repository provides lookup and mutation of coupon rules.
type Repository interface {
	// FindByCode returns ErrInvalidCoupon when the code does not exist.
	FindByCode(ctx context.Context, code string) (*Rule, error)
	Upsert(ctx context.Context, r *Rule) error
}

// NormalizeCode returns the canonical (trimmed, upper-case) form of a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
