package cache

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/vejoias/internal/domain/cart"
)

var _ cart.Repository = (*CachedCarts)(nil)

// CachedCarts is a read-through cart.Repository. Writes go to the backing
// repository and evict the cached copy. Redis failures are logged and never
// fail the call.
type CachedCarts struct {
	next  cart.Repository
	cache *CartCache
}

// NewCachedCarts wraps next with cache.
func NewCachedCarts(next cart.Repository, cache *CartCache) *CachedCarts {
	return &CachedCarts{next: next, cache: cache}
}

// Get serves from cache, falling back to the backing repository.
func (c *CachedCarts) Get(ctx context.Context, userID int64) (*cart.Cart, error) {
	ct, err := c.cache.Get(ctx, userID)
	if err == nil {
		return ct, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		zctx.From(ctx).Warn("Cart cache read failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	// Read before the backend so a write racing this Get voids the snapshot.
	gen, genErr := c.cache.Generation(ctx, userID)

	ct, err = c.next.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return ct, nil
	}
	if err := c.cache.Set(ctx, ct, gen); err != nil {
		zctx.From(ctx).Warn("Cart cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return ct, nil
}

// SetQuantity implements cart.Repository.
func (c *CachedCarts) SetQuantity(ctx context.Context, userID, jewelID int64, quantity int) error {
	defer c.evict(ctx, userID)
	return c.next.SetQuantity(ctx, userID, jewelID, quantity)
}

// RemoveItem implements cart.Repository.
func (c *CachedCarts) RemoveItem(ctx context.Context, userID, jewelID int64) error {
	defer c.evict(ctx, userID)
	return c.next.RemoveItem(ctx, userID, jewelID)
}

// Clear implements cart.Repository.
func (c *CachedCarts) Clear(ctx context.Context, userID int64) error {
	defer c.evict(ctx, userID)
	return c.next.Clear(ctx, userID)
}

func (c *CachedCarts) evict(ctx context.Context, userID int64) {
	if err := c.cache.Delete(ctx, userID); err != nil {
		zctx.From(ctx).Warn("Cart cache eviction failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
