package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-sync/internal/domain/coupon"
)

var _ coupon.Source = (*Client)(nil)

func couponPath(code string) string {
	return "/coupons/" + url.PathEscape(coupon.NormalizeCode(code))
}

// ListValid fetches the coupons currently offered to shoppers.
func (c *Client) ListValid(ctx context.Context) ([]coupon.Coupon, error) {
	data, err := c.do(ctx, request{method: http.MethodGet, path: "/coupons/valid"})
	if err != nil {
		return nil, err
	}
	return decodeList(ctx, c, "coupons", data, decCoupon)
}

// GetByCode fetches a coupon by code.
func (c *Client) GetByCode(ctx context.Context, code string) (coupon.Coupon, error) {
	data, err := c.do(ctx, request{method: http.MethodGet, path: couponPath(code), notFound: coupon.ErrInvalidCoupon})
	if err != nil {
		return coupon.Coupon{}, err
	}
	return decodeOne("coupon", data, decCoupon)
}

// Validate asks the backend whether code applies to an order of the given
// amount and what it would take off.
func (c *Client) Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (coupon.Validation, error) {
	data, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/coupons/validate",
		body: func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("code")
			e.Str(coupon.NormalizeCode(code))
			e.FieldStart("orderAmount")
			e.Raw([]byte(orderAmount.String()))
			e.ObjEnd()
		},
		notFound: coupon.ErrInvalidCoupon,
	})
	if err != nil {
		return coupon.Validation{}, err
	}
	v, err := decodeOne("validation", data, decValidation)
	if err != nil {
		return coupon.Validation{}, err
	}
	if v.OrderAmount.IsZero() {
		v.OrderAmount = orderAmount
	}
	return v, nil
}

// Exists reports whether a coupon with code exists, regardless of validity.
func (c *Client) Exists(ctx context.Context, code string) (bool, error) {
	data, err := c.do(ctx, request{method: http.MethodGet, path: couponPath(code) + "/exists"})
	if err != nil {
		return false, err
	}
	if data.Type() != jx.Bool {
		return false, errors.Errorf("decode exists: expected bool, got %s", data.Type())
	}
	return jx.DecodeBytes(data).Bool()
}
