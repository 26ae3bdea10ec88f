package storefront

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xenking/storefront-sync/internal/domain/coupon"
	"github.com/xenking/storefront-sync/internal/store"
	"github.com/xenking/storefront-sync/pkg/coalesce"
)

// Coupons serves coupon lookups and the coupon applied to the order in
// progress. At most one coupon is applied at a time.
type Coupons struct {
	*core
	src coupon.Source

	lists       *coalesce.Group[[]coupon.Coupon]
	codes       *coalesce.Group[coupon.Coupon]
	validations *coalesce.Group[coupon.Validation]
	exists      *coalesce.Group[bool]
}

func newCoupons(c *core, src coupon.Source, ttl time.Duration) *Coupons {
	return &Coupons{
		core:        c,
		src:         src,
		lists:       group(c, "coupons", ttl, coupon.CloneAll),
		codes:       group(c, "coupon", ttl, coupon.Coupon.Clone),
		validations: group(c, "coupon_validation", ttl, coupon.Validation.Clone),
		exists:      group(c, "coupon_exists", ttl, func(b bool) bool { return b }),
	}
}

// CouponsState is a snapshot of the coupon slots.
type CouponsState struct {
	Valid   store.State[[]coupon.Coupon]
	Applied store.State[coupon.Applied]
}

// State returns copies of the coupon slots.
func (c *Coupons) State() CouponsState {
	return CouponsState{
		Valid:   c.store.Coupons.Snapshot(),
		Applied: c.store.Applied.Snapshot(),
	}
}

func (c *Coupons) code(raw string) (string, error) {
	code := coupon.NormalizeCode(raw)
	if err := c.validate.Var(code, "required,max=64"); err != nil {
		return "", &InputError{Field: "code", Reason: "must be a non-empty code of at most 64 characters"}
	}
	return code, nil
}

// ListValid loads the coupons currently offered.
func (c *Coupons) ListValid(ctx context.Context) store.State[[]coupon.Coupon] {
	ctx, span := c.start(ctx, "Coupons.ListValid")
	defer span.End()

	return discover(ctx, c.core, "coupons", c.store.Coupons, c.lists, "coupons/valid", c.src.ListValid)
}

// ByCode returns the coupon with code.
func (c *Coupons) ByCode(ctx context.Context, raw string) (_ coupon.Coupon, err error) {
	ctx, span := c.start(ctx, "Coupons.ByCode")
	defer func() { end(span, err) }()

	code, err := c.code(raw)
	if err != nil {
		return coupon.Coupon{}, err
	}
	return c.codes.Do(ctx, "coupons/"+code, func(ctx context.Context) (coupon.Coupon, error) {
		return c.src.GetByCode(ctx, code)
	})
}

// Exists reports whether a coupon with code exists.
func (c *Coupons) Exists(ctx context.Context, raw string) (_ bool, err error) {
	ctx, span := c.start(ctx, "Coupons.Exists")
	defer func() { end(span, err) }()

	code, err := c.code(raw)
	if err != nil {
		return false, err
	}
	return c.exists.Do(ctx, "coupons/exists/"+code, func(ctx context.Context) (bool, error) {
		return c.src.Exists(ctx, code)
	})
}

// Validate asks the backend whether code applies to an order of
// orderAmount. Empty codes and non-positive amounts are rejected without a
// request. A coupon the backend declines yields the validation together with
// an error explaining why.
func (c *Coupons) Validate(ctx context.Context, raw string, orderAmount decimal.Decimal) (_ coupon.Validation, err error) {
	ctx, span := c.start(ctx, "Coupons.Validate")
	defer func() { end(span, err) }()

	code, err := c.code(raw)
	if err != nil {
		return coupon.Validation{}, err
	}
	if !orderAmount.IsPositive() {
		return coupon.Validation{}, inputErr("orderAmount", "must be positive")
	}
	span.SetAttributes(attribute.String("code", code))

	sig := coalesce.Signature("coupons/validate", map[string]any{
		"code":        code,
		"orderAmount": orderAmount,
	})
	v, err := c.validations.Do(ctx, sig, func(ctx context.Context) (coupon.Validation, error) {
		return c.src.Validate(ctx, code, orderAmount)
	})
	if err != nil {
		return coupon.Validation{}, err
	}
	if !v.Valid {
		return v, c.rejection(v, orderAmount)
	}
	// The backend may accept a coupon its own payload shows as unusable.
	if v.Coupon.Code != "" {
		if err := v.Coupon.Check(orderAmount, c.now()); err != nil {
			zctx.From(ctx).Warn("Accepted coupon fails applicability check",
				zap.String("code", code),
				zap.Error(err),
			)
			v.Valid = false
			return v, err
		}
	}
	return c.complete(ctx, v, orderAmount), nil
}

// rejection explains a declined validation, preferring the specific reason
// derived from the coupon itself.
func (c *Coupons) rejection(v coupon.Validation, orderAmount decimal.Decimal) error {
	reason := coupon.ErrInvalidCoupon
	if v.Coupon.Code != "" {
		if err := v.Coupon.Check(orderAmount, c.now()); err != nil {
			reason = err
		}
	}
	if v.Message != "" && reason != nil {
		return errors.Wrap(reason, v.Message)
	}
	return reason
}

// complete fills in the amounts when the backend accepted a coupon without
// quoting the discount.
func (c *Coupons) complete(ctx context.Context, v coupon.Validation, orderAmount decimal.Decimal) coupon.Validation {
	switch {
	case !v.DiscountAmount.IsZero():
		if v.FinalAmount.IsZero() {
			v.FinalAmount = coupon.FinalAmount(orderAmount, v.DiscountAmount)
		}
		return v
	case v.Coupon.Type == "":
		return v
	}
	discount, err := v.Coupon.Discount(orderAmount)
	if err != nil {
		zctx.From(ctx).Warn("Cannot compute coupon discount",
			zap.String("code", v.Coupon.Code),
			zap.Error(err),
		)
		return v
	}
	v.OrderAmount = orderAmount
	v.DiscountAmount = discount
	v.FinalAmount = coupon.FinalAmount(orderAmount, discount)
	return v
}

// Apply validates code against orderAmount and makes it the applied coupon,
// replacing any previous one. On failure the previous coupon stays applied.
func (c *Coupons) Apply(ctx context.Context, raw string, orderAmount decimal.Decimal) (coupon.Applied, error) {
	v, err := c.Validate(ctx, raw, orderAmount)
	if err != nil {
		return coupon.Applied{}, err
	}
	code := coupon.NormalizeCode(raw)
	a := coupon.Applied{
		Code:           code,
		Coupon:         v.Coupon,
		OrderAmount:    orderAmount,
		DiscountAmount: v.DiscountAmount,
		FinalAmount:    v.FinalAmount,
	}
	c.store.Applied.Put(code, a)
	return a, nil
}

// RemoveApplied detaches the applied coupon.
func (c *Coupons) RemoveApplied() {
	c.store.Applied.Clear()
}

// Applied returns the applied coupon.
func (c *Coupons) Applied() (coupon.Applied, bool) {
	return c.store.Applied.Get()
}

func (c *Coupons) reset() {
	c.lists.Reset()
	c.codes.Reset()
	c.validations.Reset()
	c.exists.Reset()
	c.store.Coupons.Clear()
	c.store.Applied.Clear()
}
