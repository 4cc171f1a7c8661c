// Package cache keeps hot read models in Redis.
package cache

import (
	"context"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/xenking/vejoias/internal/domain/cart"
)

// ErrCacheMiss is returned when no cart is cached for a user.
var ErrCacheMiss = errors.New("cache miss")

// CartCache stores serialized carts under cart:<userID> and a write
// generation under cart:<userID>:gen.
type CartCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
	jitter  time.Duration
}

// NewCartCache returns a CartCache. Entries live for ttl plus a random
// jitter of up to jitter, spreading expirations.
func NewCartCache(client redis.UniversalClient, ttl, jitter time.Duration) *CartCache {
	return &CartCache{client: client, baseTTL: ttl, jitter: jitter}
}

// Get returns the cached cart or ErrCacheMiss.
func (c *CartCache) Get(ctx context.Context, userID int64) (*cart.Cart, error) {
	data, err := c.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	ct, err := decodeCart(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return ct, nil
}

// Generation returns the user's cart generation. Every Delete bumps it, so a
// snapshot read before a write can be told apart from one read after.
func (c *CartCache) Generation(ctx context.Context, userID int64) (int64, error) {
	gen, err := c.client.Get(ctx, genKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "redis get generation")
	}
	return gen, nil
}

// Set caches ct if the user's generation still equals gen. A stale snapshot
// is dropped silently.
func (c *CartCache) Set(ctx context.Context, ct *cart.Cart, gen int64) error {
	key := genKey(ct.UserID)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return errors.Wrap(err, "get generation")
		}
		if current != gen {
			return redis.TxFailedErr
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cartKey(ct.UserID), encodeCart(ct), c.ttl())
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Delete evicts the user's cart and bumps its generation.
func (c *CartCache) Delete(ctx context.Context, userID int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(userID))
		pipe.Expire(ctx, genKey(userID), c.baseTTL+c.jitter)
		pipe.Del(ctx, cartKey(userID))
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

func (c *CartCache) ttl() time.Duration {
	ttl := c.baseTTL
	if c.jitter > 0 {
		ttl += rand.N(c.jitter)
	}
	return ttl
}

func cartKey(userID int64) string {
	return "cart:" + strconv.FormatInt(userID, 10)
}

func genKey(userID int64) string {
	return cartKey(userID) + ":gen"
}

func encodeCart(ct *cart.Cart) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(ct.ID)
	e.FieldStart("user_id")
	e.Int64(ct.UserID)
	e.FieldStart("updated_at")
	e.Str(ct.UpdatedAt.UTC().Format(time.RFC3339Nano))
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range ct.Items {
		e.ObjStart()
		e.FieldStart("jewel_id")
		e.Int64(item.JewelID)
		e.FieldStart("name")
		e.Str(item.Name)
		e.FieldStart("unit_price")
		e.Str(item.UnitPrice.String())
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("image_url")
		e.Str(item.ImageURL)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

func decodeCart(data []byte) (*cart.Cart, error) {
	ct := &cart.Cart{}
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			ct.ID, err = d.Int64()
		case "user_id":
			ct.UserID, err = d.Int64()
		case "updated_at":
			var s string
			if s, err = d.Str(); err == nil {
				ct.UpdatedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d)
				if err != nil {
					return err
				}
				ct.Items = append(ct.Items, item)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func decodeItem(d *jx.Decoder) (cart.Item, error) {
	var item cart.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "jewel_id":
			item.JewelID, err = d.Int64()
		case "name":
			item.Name, err = d.Str()
		case "unit_price":
			var s string
			if s, err = d.Str(); err == nil {
				item.UnitPrice, err = decimal.NewFromString(s)
			}
		case "quantity":
			item.Quantity, err = d.Int()
		case "image_url":
			item.ImageURL, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return item, err
}
