package cart

import (
	"context"
	"math"

	"github.com/go-faster/errors"

	"github.com/xenking/vejoias/internal/domain/catalog"
)

// JewelFinder looks up catalog jewels.
type JewelFinder interface {
	GetByID(ctx context.Context, id int64) (*catalog.Jewel, error)
}

// Service implements the cart use cases.
type Service struct {
	carts  Repository
	jewels JewelFinder
}

// NewService creates a cart Service.
func NewService(carts Repository, jewels JewelFinder) *Service {
	return &Service{carts: carts, jewels: jewels}
}

// Get returns the user's cart, creating it when missing.
func (s *Service) Get(ctx context.Context, userID int64) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "get cart for user %d", userID)
	}
	return c, nil
}

// AddItem adds quantity units of a jewel, merging with an existing line.
// The merged quantity must fit the jewel's stock.
func (s *Service) AddItem(ctx context.Context, userID, jewelID int64, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	j, err := s.jewels.GetByID(ctx, jewelID)
	if err != nil {
		if errors.Is(err, catalog.ErrJewelNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "get jewel %d", jewelID)
	}
	if !j.Active {
		return nil, catalog.ErrJewelNotFound
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var inCart int
	if existing, ok := c.Find(jewelID); ok {
		inCart = existing.Quantity
	}
	// quantity is unbounded, so it is never summed before this check.
	if quantity > j.Stock-inCart {
		requested := math.MaxInt
		if quantity <= math.MaxInt-inCart {
			requested = quantity + inCart
		}
		return nil, &catalog.InsufficientStockError{
			JewelID:   jewelID,
			Available: j.Stock,
			Requested: requested,
		}
	}
	requested := quantity + inCart

	if err := s.carts.SetQuantity(ctx, userID, jewelID, requested); err != nil {
		return nil, errors.Wrap(err, "save cart item")
	}
	return s.Get(ctx, userID)
}

// RemoveItem drops the line holding jewelID.
func (s *Service) RemoveItem(ctx context.Context, userID, jewelID int64) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if _, ok := c.Find(jewelID); !ok {
		return nil, ErrItemNotInCart
	}

	if err := s.carts.RemoveItem(ctx, userID, jewelID); err != nil {
		if errors.Is(err, ErrItemNotInCart) {
			return nil, err
		}
		return nil, errors.Wrap(err, "remove cart item")
	}
	return s.Get(ctx, userID)
}

// Clear empties the user's cart.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return errors.Wrapf(err, "clear cart for user %d", userID)
	}
	return nil
}
