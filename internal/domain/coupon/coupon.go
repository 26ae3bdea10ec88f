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
	// DiscountPercentage takes a percentage off the order amount, optionally
	// capped by MaxDiscountAmount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off, capped at the order amount.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is unknown or disabled.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon's end date has passed.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponNotActive is returned when a coupon's start date is still ahead.
	ErrCouponNotActive = errors.New("coupon not active yet")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrMinOrderAmount is returned when the order is below the coupon minimum.
	ErrMinOrderAmount = errors.New("order amount below coupon minimum")
)

// Coupon is a discount code as served by the backend.
type Coupon struct {
	ID                int64
	Code              string
	Description       string
	Type              DiscountType
	Value             decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimit        int
	UsedCount         int
	StartDate         *time.Time
	EndDate           *time.Time
	Status            bool
}

// NormalizeCode returns the canonical form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Expired reports whether the coupon's end date has passed.
func (c Coupon) Expired(now time.Time) bool {
	return c.EndDate != nil && now.After(*c.EndDate)
}

// NotStarted reports whether the coupon's start date is still ahead.
func (c Coupon) NotStarted(now time.Time) bool {
	return c.StartDate != nil && now.Before(*c.StartDate)
}

// FullyUsed reports whether the coupon has exhausted its usage limit. A zero
// limit means unlimited.
func (c Coupon) FullyUsed() bool {
	return c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit
}

// Check reports why the coupon cannot be applied to an order of the given
// amount, or nil when it can.
func (c Coupon) Check(orderAmount decimal.Decimal, now time.Time) error {
	if !c.Status {
		return ErrInvalidCoupon
	}
	if c.Expired(now) {
		return ErrCouponExpired
	}
	if c.NotStarted(now) {
		return ErrCouponNotActive
	}
	if c.FullyUsed() {
		return ErrCouponUsageLimitReached
	}
	if c.MinOrderAmount != nil && orderAmount.LessThan(*c.MinOrderAmount) {
		return ErrMinOrderAmount
	}
	return nil
}

// Clone returns a deep copy of the coupon.
func (c Coupon) Clone() Coupon {
	out := c
	out.MinOrderAmount = cloneDecimal(c.MinOrderAmount)
	out.MaxDiscountAmount = cloneDecimal(c.MaxDiscountAmount)
	out.StartDate = cloneTime(c.StartDate)
	out.EndDate = cloneTime(c.EndDate)
	return out
}

// CloneAll deep-copies a coupon slice. A nil input yields nil.
func CloneAll(in []Coupon) []Coupon {
	if in == nil {
		return nil
	}
	out := make([]Coupon, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// Validation is the backend's verdict on a code for a given order amount.
type Validation struct {
	Valid          bool
	Message        string
	Coupon         Coupon
	OrderAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

// Clone returns a deep copy of the validation.
func (v Validation) Clone() Validation {
	out := v
	out.Coupon = v.Coupon.Clone()
	return out
}

// Applied is the coupon currently attached to the in-progress order.
type Applied struct {
	Code           string
	Coupon         Coupon
	OrderAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

// Clone returns a deep copy of the applied coupon.
func (a Applied) Clone() Applied {
	out := a
	out.Coupon = a.Coupon.Clone()
	return out
}

// Source is the remote coupon collaborator.
type Source interface {
	ListValid(ctx context.Context) ([]Coupon, error)
	GetByCode(ctx context.Context, code string) (Coupon, error)
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (Validation, error)
	Exists(ctx context.Context, code string) (bool, error)
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
