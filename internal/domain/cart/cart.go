// Package cart manages the per-user shopping cart.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyCart is returned when an operation needs at least one item.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrItemNotInCart is returned when removing a jewel the cart does not hold.
	ErrItemNotInCart = errors.New("item not in cart")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Item is a cart line priced at the jewel's current catalog price.
type Item struct {
	JewelID   int64
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	ImageURL  string
}

// Subtotal returns UnitPrice * Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart holds the items a user intends to buy.
type Cart struct {
	ID        int64
	UserID    int64
	Items     []Item
	UpdatedAt time.Time
}

// Total returns the sum of item subtotals.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Count returns the number of units across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Find returns the line holding jewelID.
func (c *Cart) Find(jewelID int64) (Item, bool) {
	for _, item := range c.Items {
		if item.JewelID == jewelID {
			return item, true
		}
	}
	return Item{}, false
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Repository persists carts. Get creates an empty cart on first access.
type Repository interface {
	Get(ctx context.Context, userID int64) (*Cart, error)
	SetQuantity(ctx context.Context, userID, jewelID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, jewelID int64) error
	Clear(ctx context.Context, userID int64) error
}
