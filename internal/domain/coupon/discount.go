package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount calculates the amount the coupon takes off an order. It does not
// check eligibility; call Check first.
func (c Coupon) Discount(orderAmount decimal.Decimal) (decimal.Decimal, error) {
	orderAmount = floorAtZero(orderAmount)

	switch c.Type {
	case DiscountPercentage:
		amount := orderAmount.Mul(c.Value).Div(hundred)
		if c.MaxDiscountAmount != nil && c.MaxDiscountAmount.IsPositive() {
			amount = decimal.Min(amount, *c.MaxDiscountAmount)
		}
		return floorAtZero(amount).Round(2), nil
	case DiscountFixed:
		amount := decimal.Min(c.Value, orderAmount)
		return floorAtZero(amount).Round(2), nil
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.Type)
	}
}

// FinalAmount returns the order amount after the discount, floored at zero.
func FinalAmount(orderAmount, discount decimal.Decimal) decimal.Decimal {
	return floorAtZero(orderAmount.Sub(discount)).Round(2)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
