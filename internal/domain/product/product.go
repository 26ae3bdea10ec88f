package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product, brand or category does
// not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item. Category and Brand are never zero in a
// normalized product: missing references are replaced by the Unknown
// sentinels (see Normalize).
type Product struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	Price       decimal.Decimal
	SalePrice   *decimal.Decimal
	Category    Category
	Brand       Brand
	Status      bool
	Featured    bool
	CreatedAt   time.Time
}

// OnSale reports whether the product carries a sale price below its list price.
func (p Product) OnSale() bool {
	return p.SalePrice != nil && p.SalePrice.LessThan(p.Price)
}

// EffectivePrice returns the sale price when the product is on sale and the
// list price otherwise.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.OnSale() {
		return *p.SalePrice
	}
	return p.Price
}

// Clone returns a deep copy of the product.
func (p Product) Clone() Product {
	out := p
	if p.SalePrice != nil {
		sp := *p.SalePrice
		out.SalePrice = &sp
	}
	out.Category = p.Category.Clone()
	return out
}

// Image is a gallery image attached to a product.
type Image struct {
	ID        int64
	ProductID int64
	URL       string
	AltText   string
	SortOrder int
	Primary   bool
}

// Page is one page of a product listing.
type Page struct {
	Items      []Product
	Page       int
	Size       int
	TotalItems int64
	TotalPages int
}

// Clone returns a deep copy of the page.
func (p Page) Clone() Page {
	out := p
	out.Items = CloneProducts(p.Items)
	return out
}

// Detail groups everything the product detail view needs.
type Detail struct {
	Product  Product
	Images   []Image
	Variants []Variant
}

// Clone returns a deep copy of the detail.
func (d Detail) Clone() Detail {
	return Detail{
		Product:  d.Product.Clone(),
		Images:   CloneImages(d.Images),
		Variants: CloneVariants(d.Variants),
	}
}

// CloneProducts deep-copies a product slice. A nil input yields nil.
func CloneProducts(in []Product) []Product {
	if in == nil {
		return nil
	}
	out := make([]Product, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// CloneImages copies an image slice. A nil input yields nil.
func CloneImages(in []Image) []Image {
	if in == nil {
		return nil
	}
	out := make([]Image, len(in))
	copy(out, in)
	return out
}

// Collection names the curated product lists served by the backend.
type Collection string

const (
	CollectionFeatured Collection = "featured"
	CollectionLatest   Collection = "latest"
	CollectionOnSale   Collection = "on-sale"
)

// Source is the remote catalog collaborator.
type Source interface {
	ListProducts(ctx context.Context, params ListParams) (Page, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	ListImages(ctx context.Context, productID int64) ([]Image, error)
	ListVariants(ctx context.Context, productID int64) ([]Variant, error)
	ListRelated(ctx context.Context, productID int64, limit int) ([]Product, error)
	ListCollection(ctx context.Context, c Collection, limit int) ([]Product, error)
}

// TaxonomySource is the remote brand and category collaborator.
type TaxonomySource interface {
	ListBrands(ctx context.Context, activeOnly bool) ([]Brand, error)
	GetBrand(ctx context.Context, id int64) (Brand, error)
	GetBrandBySlug(ctx context.Context, slug string) (Brand, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (Category, error)
	// GetHierarchy returns nil when the backend has no hierarchy for slug.
	GetHierarchy(ctx context.Context, slug string) (*Hierarchy, error)
}
