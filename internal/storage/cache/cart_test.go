package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/vejoias/internal/domain/cart"
)

type countingCarts struct {
	cart  *cart.Cart
	gets  int
	err   error
	calls []string
	// afterGet runs once the snapshot is taken, before it is returned.
	afterGet func()
}

func (c *countingCarts) Get(_ context.Context, _ int64) (*cart.Cart, error) {
	c.gets++
	if c.err != nil {
		return nil, c.err
	}
	cp := *c.cart
	if fn := c.afterGet; fn != nil {
		c.afterGet = nil
		fn()
	}
	return &cp, nil
}

func (c *countingCarts) SetQuantity(_ context.Context, _, _ int64, _ int) error {
	c.calls = append(c.calls, "set")
	return nil
}

func (c *countingCarts) RemoveItem(_ context.Context, _, _ int64) error {
	c.calls = append(c.calls, "remove")
	return cart.ErrItemNotInCart
}

func (c *countingCarts) Clear(_ context.Context, _ int64) error {
	c.calls = append(c.calls, "clear")
	return nil
}

func setupTestRedis(t *testing.T) (*CartCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCartCache(client, 10*time.Minute, time.Minute), mr
}

func sampleCart() *cart.Cart {
	return &cart.Cart{
		ID:        3,
		UserID:    7,
		UpdatedAt: time.Date(2025, 5, 4, 12, 30, 0, 0, time.UTC),
		Items: []cart.Item{
			{JewelID: 1, Name: "Anel Solitário", UnitPrice: decimal.RequireFromString("1299.90"), Quantity: 1, ImageURL: "/img/anel.jpg"},
			{JewelID: 2, Name: "Brinco \"Gota\"", UnitPrice: decimal.RequireFromString("89.90"), Quantity: 2},
		},
	}
}

func TestCartCache_SetGet(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := c.Get(ctx, 7)
	require.ErrorIs(t, err, ErrCacheMiss)

	gen, err := c.Generation(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, gen)

	want := sampleCart()
	require.NoError(t, c.Set(ctx, want, gen))
	assert.True(t, mr.Exists("cart:7"))

	ttl := mr.TTL("cart:7")
	assert.GreaterOrEqual(t, ttl, 10*time.Minute)
	assert.Less(t, ttl, 11*time.Minute)

	got, err := c.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.UpdatedAt, got.UpdatedAt)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Brinco \"Gota\"", got.Items[1].Name)
	assert.True(t, want.Total().Equal(got.Total()))

	require.NoError(t, c.Delete(ctx, 7))
	assert.False(t, mr.Exists("cart:7"))

	bumped, err := c.Generation(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bumped)

	// A snapshot taken under the old generation is dropped.
	require.NoError(t, c.Set(ctx, want, gen))
	assert.False(t, mr.Exists("cart:7"))
}

func TestCartCache_CorruptEntry(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:7", "{not json"))

	_, err := c.Get(context.Background(), 7)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestCachedCarts_ReadThrough(t *testing.T) {
	c, _ := setupTestRedis(t)
	inner := &countingCarts{cart: sampleCart()}
	carts := NewCachedCarts(inner, c)
	ctx := context.Background()

	for range 3 {
		got, err := carts.Get(ctx, 7)
		require.NoError(t, err)
		assert.Len(t, got.Items, 2)
	}
	assert.Equal(t, 1, inner.gets)

	require.NoError(t, carts.SetQuantity(ctx, 7, 1, 2))
	_, err := carts.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.gets)

	err = carts.RemoveItem(ctx, 7, 99)
	require.ErrorIs(t, err, cart.ErrItemNotInCart)

	require.NoError(t, carts.Clear(ctx, 7))
	assert.Equal(t, []string{"set", "remove", "clear"}, inner.calls)
}

func TestCachedCarts_WriteDuringRead(t *testing.T) {
	c, mr := setupTestRedis(t)
	inner := &countingCarts{cart: sampleCart()}
	carts := NewCachedCarts(inner, c)
	ctx := context.Background()

	inner.afterGet = func() {
		require.NoError(t, carts.SetQuantity(ctx, 7, 1, 3))
	}
	_, err := carts.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, mr.Exists("cart:7"), "snapshot older than the write must not be cached")

	_, err = carts.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, mr.Exists("cart:7"))
	assert.Equal(t, 2, inner.gets)
}

func TestCachedCarts_RedisDown(t *testing.T) {
	c, mr := setupTestRedis(t)
	inner := &countingCarts{cart: sampleCart()}
	carts := NewCachedCarts(inner, c)
	ctx := context.Background()

	mr.Close()

	got, err := carts.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)

	require.NoError(t, carts.Clear(ctx, 7))
}

func TestCachedCarts_BackendError(t *testing.T) {
	c, mr := setupTestRedis(t)
	inner := &countingCarts{err: errors.New("pool closed")}
	carts := NewCachedCarts(inner, c)

	_, err := carts.Get(context.Background(), 7)
	require.Error(t, err)
	assert.False(t, mr.Exists("cart:7"))
}
