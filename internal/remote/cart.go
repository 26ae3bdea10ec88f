package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-sync/internal/domain/cart"
)

var _ cart.Source = (*Client)(nil)

func itemPath(id int64) string {
	return "/cart/items/" + strconv.FormatInt(id, 10)
}

// cartCall performs a cart request and decodes the returned cart.
func (c *Client) cartCall(ctx context.Context, r request) (cart.Cart, error) {
	r.notFound = cart.ErrItemNotFound
	data, err := c.do(ctx, r)
	if err != nil {
		return cart.Cart{}, err
	}
	if data.Type() != jx.Object {
		c.degrade(ctx, "cart", "not_object")
		return cart.Cart{Items: []cart.Item{}}, nil
	}

	dto, err := decodeOne("cart", data, decCart)
	if err != nil {
		return cart.Cart{}, err
	}
	out := dto.cart
	if out.Items, err = decodeList(ctx, c, "cart", dto.items, decCartItem); err != nil {
		return cart.Cart{}, err
	}
	return out, nil
}

// GetCart fetches the shopper's cart.
func (c *Client) GetCart(ctx context.Context) (cart.Cart, error) {
	return c.cartCall(ctx, request{method: http.MethodGet, path: "/cart"})
}

// AddItem adds quantity units of a variant.
func (c *Client) AddItem(ctx context.Context, variantID int64, quantity int) (cart.Cart, error) {
	return c.cartCall(ctx, request{
		method: http.MethodPost,
		path:   "/cart/items",
		body: func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("variantId")
			e.Int64(variantID)
			e.FieldStart("quantity")
			e.Int(quantity)
			e.ObjEnd()
		},
	})
}

// UpdateQuantity sets the quantity of an item.
func (c *Client) UpdateQuantity(ctx context.Context, itemID int64, quantity int) (cart.Cart, error) {
	return c.cartCall(ctx, request{
		method: http.MethodPut,
		path:   itemPath(itemID),
		body: func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("quantity")
			e.Int(quantity)
			e.ObjEnd()
		},
	})
}

// UpdateSelection toggles whether an item is part of the checkout.
func (c *Client) UpdateSelection(ctx context.Context, itemID int64, selected bool) (cart.Cart, error) {
	return c.cartCall(ctx, request{
		method: http.MethodPut,
		path:   itemPath(itemID) + "/selection",
		body: func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("isSelected")
			e.Bool(selected)
			e.ObjEnd()
		},
	})
}

// SelectAll selects or deselects every item.
func (c *Client) SelectAll(ctx context.Context, selected bool) (cart.Cart, error) {
	path := "/cart/select-all"
	if !selected {
		path = "/cart/deselect-all"
	}
	return c.cartCall(ctx, request{method: http.MethodPut, path: path})
}

// RemoveItem deletes an item.
func (c *Client) RemoveItem(ctx context.Context, itemID int64) (cart.Cart, error) {
	return c.cartCall(ctx, request{method: http.MethodDelete, path: itemPath(itemID)})
}

// Clear empties the cart.
func (c *Client) Clear(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/cart", notFound: cart.ErrItemNotFound})
	return err
}

// GetOrderStatus looks up the payment state of an order.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (cart.OrderStatus, error) {
	data, err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/orders/" + url.PathEscape(orderID),
		notFound: cart.ErrOrderNotFound,
	})
	if err != nil {
		return cart.OrderStatus{}, err
	}
	st, err := decodeOne("order", data, decOrderStatus)
	if err != nil {
		return cart.OrderStatus{}, err
	}
	if st.ID == "" {
		st.ID = orderID
	}
	return st, nil
}
