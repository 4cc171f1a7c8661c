package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/vejoias/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, value, min_items, description,
		valid_from, valid_until, max_uses, uses, max_discount, active
		FROM coupons WHERE code = UPPER($1)`

	// incrementCouponUsesSQL refuses to go past max_uses so concurrent
	// checkouts cannot oversubscribe a limited coupon.
	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1
		WHERE code = UPPER($1) AND (max_uses = 0 OR uses < max_uses)`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_type, value, min_items, description,
			valid_from, valid_until, max_uses, max_discount, active)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code) DO UPDATE SET discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value, min_items = EXCLUDED.min_items,
			description = EXCLUDED.description, valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until, max_uses = EXCLUDED.max_uses,
			max_discount = EXCLUDED.max_discount, active = EXCLUDED.active`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon case-insensitively, active or not.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "query coupon %q", code)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, errors.Wrapf(err, "scan coupon %q", code)
	}
	return &rule, nil
}

// Upsert inserts or replaces a coupon definition, keeping its use count.
func (r *CouponRepository) Upsert(ctx context.Context, rule *coupon.Rule) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		rule.Code, string(rule.DiscountType), rule.Value, rule.MinItems, rule.Description,
		rule.ValidFrom, rule.ValidUntil, rule.MaxUses, rule.MaxDiscount, rule.Active,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert coupon %q", rule.Code)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
	)
	err := row.Scan(
		&rule.Code, &discountType, &rule.Value, &rule.MinItems, &rule.Description,
		&rule.ValidFrom, &rule.ValidUntil, &rule.MaxUses, &rule.Uses, &rule.MaxDiscount, &rule.Active,
	)
	rule.DiscountType = coupon.DiscountType(discountType)
	return rule, err
}
