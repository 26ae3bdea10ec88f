package store

import (
	"github.com/xenking/storefront-sync/internal/domain/cart"
	"github.com/xenking/storefront-sync/internal/domain/coupon"
	"github.com/xenking/storefront-sync/internal/domain/product"
)

// Store is the single owner of fetched entities, one slot per view-facing
// piece of state.
type Store struct {
	Listing  *Slot[product.Page]
	Product  *Slot[product.Product]
	Detail   *Slot[product.Detail]
	Featured *Slot[[]product.Product]
	Latest   *Slot[[]product.Product]
	OnSale   *Slot[[]product.Product]
	Related  *Slot[[]product.Product]

	Brands     *Slot[[]product.Brand]
	Brand      *Slot[product.Brand]
	Categories *Slot[[]product.Category]
	Category   *Slot[product.Category]
	Hierarchy  *Slot[product.Hierarchy]

	Cart *Slot[cart.Cart]

	Coupons *Slot[[]coupon.Coupon]
	Applied *Slot[coupon.Applied]
}

// New creates an empty store.
func New() *Store {
	return &Store{
		Listing:  NewSlot(product.Page.Clone),
		Product:  NewSlot(product.Product.Clone),
		Detail:   NewSlot(product.Detail.Clone),
		Featured: NewSlot(product.CloneProducts),
		Latest:   NewSlot(product.CloneProducts),
		OnSale:   NewSlot(product.CloneProducts),
		Related:  NewSlot(product.CloneProducts),

		Brands:     NewSlot(product.CloneBrands),
		Brand:      NewSlot(identity[product.Brand]),
		Categories: NewSlot(product.CloneCategories),
		Category:   NewSlot(product.Category.Clone),
		Hierarchy:  NewSlot(product.Hierarchy.Clone),

		Cart: NewSlot(cart.Cart.Clone),

		Coupons: NewSlot(coupon.CloneAll),
		Applied: NewSlot(coupon.Applied.Clone),
	}
}

// identity copies types that hold no pointers or slices.
func identity[T any](v T) T {
	return v
}
