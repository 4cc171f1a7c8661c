package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validator checks a coupon code against cart items and returns the
// discount it grants. Uses are consumed by the order store when the order is
// placed, not here.
type Validator interface {
	Quote(ctx context.Context, code string, items []Item) (*Discount, error)
}

// RepoValidator implements Validator on top of a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by repo.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Quote checks the coupon and computes its discount without consuming a use.
func (v *RepoValidator) Quote(ctx context.Context, code string, items []Item) (*Discount, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}

	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if !rule.Active {
		return nil, ErrInvalidCoupon
	}

	now := v.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrCouponExpired
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrCouponUsageLimitReached
	}

	d, err := Apply(rule, items)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
