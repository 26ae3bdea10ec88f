package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrItemNotFound is returned when a cart item does not exist (or no longer
// exists after a concurrent modification).
var ErrItemNotFound = errors.New("cart item not found")

// ErrOrderNotFound is returned when an order status lookup finds nothing.
var ErrOrderNotFound = errors.New("order not found")

// Item is a cart line. Product fields are a snapshot taken when the item was
// added and are not refreshed on their own.
type Item struct {
	ID            int64
	VariantID     int64
	ProductID     int64
	ProductName   string
	ProductSlug   string
	ImageURL      string
	Price         decimal.Decimal
	Color         string
	Size          string
	SKU           string
	StockQuantity int
	Quantity      int
	Selected      bool
}

// LineTotal returns price * quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the shopper's cart as acknowledged by the backend.
type Cart struct {
	ID        int64
	Items     []Item
	UpdatedAt time.Time
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	out := c
	if c.Items != nil {
		out.Items = make([]Item, len(c.Items))
		copy(out.Items, c.Items)
	}
	return out
}

// Empty reports whether the cart has no items.
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// Item returns the item with the given id.
func (c Cart) Item(id int64) (Item, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// ItemCount returns the sum of quantities across all items.
func (c Cart) ItemCount() int {
	total := 0
	for _, it := range c.Items {
		total += it.Quantity
	}
	return total
}

// SelectedCount returns the sum of quantities of the selected items.
func (c Cart) SelectedCount() int {
	total := 0
	for _, it := range c.Items {
		if it.Selected {
			total += it.Quantity
		}
	}
	return total
}

// SelectedTotal returns the checkout subtotal for the selected items.
func (c Cart) SelectedTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		if it.Selected {
			sum = sum.Add(it.LineTotal())
		}
	}
	return sum
}

// OrderStatus is the subset of order state the cart reconciler cares about.
type OrderStatus struct {
	ID            string
	PaymentMethod string
	Paid          bool
}

// PaymentCOD is the cash-on-delivery payment method. The backend empties the
// cart itself when such an order is placed.
const PaymentCOD = "COD"

// ClearsCart reports whether the order consumed the cart: it was paid, or
// placed as cash-on-delivery.
func (o OrderStatus) ClearsCart() bool {
	return o.Paid || o.PaymentMethod == PaymentCOD
}

// Source is the remote cart collaborator. Mutations return the cart as
// acknowledged by the backend.
type Source interface {
	GetCart(ctx context.Context) (Cart, error)
	AddItem(ctx context.Context, variantID int64, quantity int) (Cart, error)
	UpdateQuantity(ctx context.Context, itemID int64, quantity int) (Cart, error)
	UpdateSelection(ctx context.Context, itemID int64, selected bool) (Cart, error)
	SelectAll(ctx context.Context, selected bool) (Cart, error)
	RemoveItem(ctx context.Context, itemID int64) (Cart, error)
	Clear(ctx context.Context) error
	GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error)
}
