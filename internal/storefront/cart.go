package storefront

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xenking/storefront-sync/internal/domain/cart"
	"github.com/xenking/storefront-sync/internal/domain/product"
	"github.com/xenking/storefront-sync/internal/store"
	"github.com/xenking/storefront-sync/internal/variant"
	"github.com/xenking/storefront-sync/pkg/coalesce"
	"github.com/xenking/storefront-sync/pkg/retry"
)

// Cart serves the shopper's cart. Quantity updates, removals and clearing
// are retried under the configured policy because they can race with the
// backend changing the cart on its own (stock updates, a cash-on-delivery
// order emptying it). When retries run out the cart is re-fetched so the
// store shows server truth.
type Cart struct {
	*core
	src    cart.Source
	policy retry.Policy

	loads *coalesce.Group[cart.Cart]
	// seq versions store writes so a load that started before a mutation
	// cannot overwrite the mutation's result.
	seq atomic.Uint64
}

func newCart(c *core, src cart.Source, policy retry.Policy) *Cart {
	return &Cart{
		core:   c,
		src:    src,
		policy: policy,
		// Loads share in-flight requests but are never served from cache.
		loads: group(c, "cart", 0, cart.Cart.Clone),
	}
}

func (c *Cart) nextKey() string {
	return "cart#" + strconv.FormatUint(c.seq.Add(1), 10)
}

// State returns a copy of the cart slot.
func (c *Cart) State() store.State[cart.Cart] {
	return c.store.Cart.Snapshot()
}

// Load fetches the cart from the backend.
func (c *Cart) Load(ctx context.Context) (_ cart.Cart, err error) {
	ctx, span := c.start(ctx, "Cart.Load")
	defer func() { end(span, err) }()

	slot := c.store.Cart
	key := c.nextKey()
	slot.Begin(key)

	v, err := c.loads.Do(ctx, "cart", c.src.GetCart)
	if err != nil {
		fail(ctx, c.core, "cart", slot, key, err)
		return cart.Cart{}, err
	}
	commit(ctx, c.core, "cart", slot, key, v)
	return v, nil
}

// mutate runs fn, retrying when retried is set, and stores the acknowledged
// cart.
func (c *Cart) mutate(ctx context.Context, op string, retried bool, fn func(ctx context.Context) (cart.Cart, error)) (_ cart.Cart, err error) {
	ctx, span := c.start(ctx, "Cart."+op)
	defer func() { end(span, err) }()

	var out cart.Cart
	if !retried {
		if out, err = fn(ctx); err != nil {
			return cart.Cart{}, err
		}
		c.store.Cart.Put(c.nextKey(), out)
		return out, nil
	}

	lg := zctx.From(ctx).With(zap.String("op", op))
	err = retry.DoNotify(ctx, c.policy, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			if !retryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		out = v
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		lg.Info("Retrying cart mutation",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})

	var exhausted *retry.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		span.SetAttributes(attribute.Int("attempts", exhausted.Attempts))
		c.metrics.Exhausted(ctx, op)
		lg.Warn("Cart mutation gave up, reloading cart", zap.Error(err))
		if _, lerr := c.Load(ctx); lerr != nil {
			lg.Warn("Cart reload failed", zap.Error(lerr))
		}
		return cart.Cart{}, err
	case err != nil:
		return cart.Cart{}, err
	}
	c.store.Cart.Put(c.nextKey(), out)
	return out, nil
}

// current returns the stored cart, or an empty one.
func (c *Cart) current() cart.Cart {
	v, _ := c.store.Cart.Get()
	return v
}

func checkID(field string, id int64) error {
	if id <= 0 {
		return inputErr(field, "must be positive")
	}
	return nil
}

// Add puts quantity units of a variant into the cart. It is not retried:
// repeating an add that reached the backend would add twice.
func (c *Cart) Add(ctx context.Context, variantID int64, quantity int) (cart.Cart, error) {
	if err := checkID("variantID", variantID); err != nil {
		return cart.Cart{}, err
	}
	if quantity < 1 {
		return cart.Cart{}, inputErr("quantity", "must be at least 1")
	}
	return c.mutate(ctx, "Add", false, func(ctx context.Context) (cart.Cart, error) {
		return c.src.AddItem(ctx, variantID, quantity)
	})
}

// UpdateQuantity sets an item's quantity, clamped to the stock recorded on
// the item. limited reports that the request exceeded the stock.
func (c *Cart) UpdateQuantity(ctx context.Context, itemID int64, quantity int) (_ cart.Cart, limited bool, err error) {
	if err := checkID("itemID", itemID); err != nil {
		return cart.Cart{}, false, err
	}

	var active *product.Variant
	if it, ok := c.current().Item(itemID); ok {
		active = &product.Variant{
			ID:            it.VariantID,
			ProductID:     it.ProductID,
			Size:          it.Size,
			Color:         it.Color,
			StockQuantity: it.StockQuantity,
			Status:        true,
		}
	}
	quantity, limited = variant.Clamp(quantity, active)
	if limited {
		zctx.From(ctx).Info("Quantity limited by stock",
			zap.Int64("item_id", itemID),
			zap.Int("quantity", quantity),
		)
	}

	out, err := c.mutate(ctx, "UpdateQuantity", true, func(ctx context.Context) (cart.Cart, error) {
		return c.src.UpdateQuantity(ctx, itemID, quantity)
	})
	return out, limited, err
}

// SetSelected includes or excludes an item from checkout.
func (c *Cart) SetSelected(ctx context.Context, itemID int64, selected bool) (cart.Cart, error) {
	if err := checkID("itemID", itemID); err != nil {
		return cart.Cart{}, err
	}
	return c.mutate(ctx, "SetSelected", false, func(ctx context.Context) (cart.Cart, error) {
		return c.src.UpdateSelection(ctx, itemID, selected)
	})
}

// SelectAll includes every item in checkout.
func (c *Cart) SelectAll(ctx context.Context) (cart.Cart, error) {
	return c.mutate(ctx, "SelectAll", false, func(ctx context.Context) (cart.Cart, error) {
		return c.src.SelectAll(ctx, true)
	})
}

// DeselectAll excludes every item from checkout.
func (c *Cart) DeselectAll(ctx context.Context) (cart.Cart, error) {
	return c.mutate(ctx, "DeselectAll", false, func(ctx context.Context) (cart.Cart, error) {
		return c.src.SelectAll(ctx, false)
	})
}

// Remove deletes an item.
func (c *Cart) Remove(ctx context.Context, itemID int64) (cart.Cart, error) {
	if err := checkID("itemID", itemID); err != nil {
		return cart.Cart{}, err
	}
	return c.mutate(ctx, "Remove", true, func(ctx context.Context) (cart.Cart, error) {
		return c.src.RemoveItem(ctx, itemID)
	})
}

// Clear empties the cart. A cart the backend already emptied counts as
// cleared.
func (c *Cart) Clear(ctx context.Context) error {
	_, err := c.mutate(ctx, "Clear", true, func(ctx context.Context) (cart.Cart, error) {
		if err := c.src.Clear(ctx); err != nil && !errors.Is(err, cart.ErrItemNotFound) {
			return cart.Cart{}, err
		}
		cleared := c.current()
		cleared.Items = []cart.Item{}
		cleared.UpdatedAt = c.now()
		return cleared, nil
	})
	return err
}

// ReconcilePaidOrders checks the given recently placed orders and clears the
// cart when one of them consumed it. It reports whether the cart was cleared.
// Orders whose status cannot be fetched are skipped.
func (c *Cart) ReconcilePaidOrders(ctx context.Context, orderIDs []string) (bool, error) {
	lg := zctx.From(ctx)
	for _, id := range orderIDs {
		if id == "" {
			continue
		}
		st, err := c.src.GetOrderStatus(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			lg.Warn("Order status unavailable", zap.String("order_id", id), zap.Error(err))
			continue
		}
		if !st.ClearsCart() {
			continue
		}
		if cur, ok := c.store.Cart.Get(); ok && cur.Empty() {
			return false, nil
		}
		lg.Info("Clearing cart for placed order",
			zap.String("order_id", id),
			zap.String("payment_method", st.PaymentMethod),
		)
		if err := c.Clear(ctx); err != nil {
			return false, errors.Wrapf(err, "clear cart for order %s", id)
		}
		return true, nil
	}
	return false, nil
}

func (c *Cart) reset() {
	c.loads.Reset()
	c.store.Cart.Clear()
}
