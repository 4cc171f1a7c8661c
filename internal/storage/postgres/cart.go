package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/vejoias/internal/domain/cart"
)

const (
	// ensureCartSQL returns the user's cart, creating it on first use.
	ensureCartSQL = `WITH ins AS (
			INSERT INTO carts (user_id) VALUES ($1)
			ON CONFLICT (user_id) DO NOTHING
			RETURNING id, updated_at
		)
		SELECT id, updated_at FROM ins
		UNION ALL
		SELECT id, updated_at FROM carts WHERE user_id = $1
		LIMIT 1`

	listCartItemsSQL = `SELECT ci.jewel_id, j.name, j.price, ci.quantity, j.image_url
		FROM cart_items ci JOIN jewels j ON j.id = ci.jewel_id
		WHERE ci.cart_id = $1
		ORDER BY j.name, ci.jewel_id`

	setCartItemSQL = `WITH item AS (
			INSERT INTO cart_items (cart_id, jewel_id, quantity) VALUES ($1, $2, $3)
			ON CONFLICT (cart_id, jewel_id) DO UPDATE SET quantity = EXCLUDED.quantity
		)
		UPDATE carts SET updated_at = now() WHERE id = $1`

	removeCartItemSQL = `DELETE FROM cart_items ci USING carts c
		WHERE ci.cart_id = c.id AND c.user_id = $1 AND ci.jewel_id = $2`

	clearCartSQL = `DELETE FROM cart_items ci USING carts c
		WHERE ci.cart_id = c.id AND c.user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Lines are
// priced at the jewels' current catalog price.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the user's cart with its items.
func (r *CartRepository) Get(ctx context.Context, userID int64) (*cart.Cart, error) {
	c := &cart.Cart{UserID: userID}
	if err := r.ensure(ctx, c); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, listCartItemsSQL, c.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "query cart %d items", c.ID)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[cart.Item])
	if err != nil {
		return nil, errors.Wrapf(err, "scan cart %d items", c.ID)
	}
	c.Items = items
	return c, nil
}

// SetQuantity stores the absolute quantity of a line.
func (r *CartRepository) SetQuantity(ctx context.Context, userID, jewelID int64, quantity int) error {
	c := &cart.Cart{UserID: userID}
	if err := r.ensure(ctx, c); err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, setCartItemSQL, c.ID, jewelID, quantity); err != nil {
		return errors.Wrapf(err, "set cart %d item %d", c.ID, jewelID)
	}
	return nil
}

func (r *CartRepository) ensure(ctx context.Context, c *cart.Cart) error {
	if err := r.pool.QueryRow(ctx, ensureCartSQL, c.UserID).Scan(&c.ID, &c.UpdatedAt); err != nil {
		return errors.Wrapf(err, "ensure cart for user %d", c.UserID)
	}
	return nil
}

// RemoveItem deletes a line, returning cart.ErrItemNotInCart when absent.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, jewelID int64) error {
	tag, err := r.pool.Exec(ctx, removeCartItemSQL, userID, jewelID)
	if err != nil {
		return errors.Wrapf(err, "remove item %d from cart of user %d", jewelID, userID)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotInCart
	}
	return nil
}

// Clear deletes every line of the user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID int64) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, userID); err != nil {
		return errors.Wrapf(err, "clear cart of user %d", userID)
	}
	return nil
}
