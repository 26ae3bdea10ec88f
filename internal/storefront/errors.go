package storefront

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/storefront-sync/internal/domain/cart"
	"github.com/xenking/storefront-sync/internal/domain/coupon"
	"github.com/xenking/storefront-sync/internal/domain/product"
	"github.com/xenking/storefront-sync/internal/remote"
	"github.com/xenking/storefront-sync/pkg/retry"
)

// InputError rejects a call before anything is sent to the backend.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func inputErr(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}

// fromValidation converts the first validator failure into an InputError.
func fromValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	reason := fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return &InputError{Field: fe.Field(), Reason: "must satisfy " + reason}
}

// UserMessage turns err into a short sentence suitable for a shopper.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		input     *InputError
		exhausted *retry.ExhaustedError
		apiErr    *remote.APIError
	)
	switch {
	case errors.As(err, &input):
		return fmt.Sprintf("Please check the %s: %s.", input.Field, input.Reason)
	case errors.Is(err, coupon.ErrCouponExpired):
		return "This coupon has expired."
	case errors.Is(err, coupon.ErrCouponNotActive):
		return "This coupon is not active yet."
	case errors.Is(err, coupon.ErrCouponUsageLimitReached):
		return "This coupon has reached its usage limit."
	case errors.Is(err, coupon.ErrMinOrderAmount):
		return "Your order does not reach the minimum amount for this coupon."
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return "This coupon code is not valid."
	case errors.Is(err, cart.ErrItemNotFound):
		return "This item is no longer in your cart."
	case errors.Is(err, product.ErrNotFound):
		return "We could not find that product."
	case errors.As(err, &exhausted):
		return "We could not update your cart. It has been refreshed, please try again."
	case errors.Is(err, remote.ErrConflict):
		return "Your cart changed in the meantime. Please try again."
	case errors.Is(err, context.DeadlineExceeded):
		return "The store is taking too long to respond."
	case errors.As(err, &apiErr) && apiErr.Message != "" && apiErr.Status < 500:
		return apiErr.Message
	default:
		return "Something went wrong. Please try again."
	}
}

// retryable reports whether a failed mutation may succeed if repeated.
func retryable(err error) bool {
	var (
		input  *InputError
		apiErr *remote.APIError
	)
	switch {
	case errors.As(err, &input):
		return false
	case errors.As(err, &apiErr):
		return apiErr.Temporary()
	case errors.Is(err, cart.ErrItemNotFound):
		return false
	default:
		return true
	}
}
