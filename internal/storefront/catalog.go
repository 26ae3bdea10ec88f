package storefront

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-sync/internal/domain/product"
	"github.com/xenking/storefront-sync/internal/store"
	"github.com/xenking/storefront-sync/pkg/coalesce"
)

// DefaultCollectionLimit is used when a collection is requested with a
// non-positive limit.
const DefaultCollectionLimit = 8

// Catalog serves product listings, curated collections and product detail.
type Catalog struct {
	*core
	src product.Source

	listing     *coalesce.Group[product.Page]
	collections *coalesce.Group[[]product.Product]
	products    *coalesce.Group[product.Product]
	images      *coalesce.Group[[]product.Image]
	variants    *coalesce.Group[[]product.Variant]
}

func newCatalog(c *core, src product.Source, ttl time.Duration) *Catalog {
	return &Catalog{
		core:        c,
		src:         src,
		listing:     group(c, "products", ttl, product.Page.Clone),
		collections: group(c, "collections", ttl, product.CloneProducts),
		products:    group(c, "product", ttl, product.Product.Clone),
		images:      group(c, "images", ttl, product.CloneImages),
		variants:    group(c, "variants", ttl, product.CloneVariants),
	}
}

// CatalogState is a snapshot of every catalog slot.
type CatalogState struct {
	Listing  store.State[product.Page]
	Featured store.State[[]product.Product]
	Latest   store.State[[]product.Product]
	OnSale   store.State[[]product.Product]
	Related  store.State[[]product.Product]
	Product  store.State[product.Product]
	Detail   store.State[product.Detail]
}

// State returns copies of the catalog slots.
func (c *Catalog) State() CatalogState {
	return CatalogState{
		Listing:  c.store.Listing.Snapshot(),
		Featured: c.store.Featured.Snapshot(),
		Latest:   c.store.Latest.Snapshot(),
		OnSale:   c.store.OnSale.Snapshot(),
		Related:  c.store.Related.Snapshot(),
		Product:  c.store.Product.Snapshot(),
		Detail:   c.store.Detail.Snapshot(),
	}
}

// normalize replaces missing brand and category references with the Unknown
// sentinels and reports every substitution.
func (c *Catalog) normalize(ctx context.Context, p *product.Product) {
	s := product.Normalize(p)
	if !s.Any() {
		return
	}
	if s.Brand {
		c.metrics.Degraded(ctx, "products", "unknown_brand")
	}
	if s.Category {
		c.metrics.Degraded(ctx, "products", "unknown_category")
	}
	zctx.From(ctx).Warn("Product missing references",
		zap.Int64("product_id", p.ID),
		zap.Bool("brand", s.Brand),
		zap.Bool("category", s.Category),
	)
}

func (c *Catalog) normalizeAll(ctx context.Context, ps []product.Product) []product.Product {
	for i := range ps {
		c.normalize(ctx, &ps[i])
	}
	return ps
}

func (c *Catalog) checkParams(p product.ListParams) error {
	if err := c.validate.Struct(p); err != nil {
		return fromValidation(err)
	}
	if p.MinPrice != nil && p.MinPrice.IsNegative() {
		return inputErr("MinPrice", "must not be negative")
	}
	if p.MaxPrice != nil && p.MaxPrice.IsNegative() {
		return inputErr("MaxPrice", "must not be negative")
	}
	if p.MinPrice != nil && p.MaxPrice != nil && p.MinPrice.GreaterThan(*p.MaxPrice) {
		return inputErr("MinPrice", "must not exceed MaxPrice")
	}
	return nil
}

// ListProducts loads one page of the product listing into the store and
// returns the resulting listing state. Failures are recorded in the state;
// the previous page stays available.
func (c *Catalog) ListProducts(ctx context.Context, params product.ListParams) store.State[product.Page] {
	ctx, span := c.start(ctx, "Catalog.ListProducts")
	defer span.End()

	params = params.WithDefaults()
	sig := params.Signature()
	span.SetAttributes(attribute.String("signature", sig))

	if err := c.checkParams(params); err != nil {
		return reject(ctx, c.core, "products", c.store.Listing, sig, err)
	}
	return discover(ctx, c.core, "products", c.store.Listing, c.listing, sig, func(ctx context.Context) (product.Page, error) {
		page, err := c.src.ListProducts(ctx, params)
		if err != nil {
			return product.Page{}, err
		}
		page.Items = c.normalizeAll(ctx, page.Items)
		return page, nil
	})
}

func (c *Catalog) collection(ctx context.Context, col product.Collection, slot *store.Slot[[]product.Product], limit int) store.State[[]product.Product] {
	ctx, span := c.start(ctx, "Catalog.Collection")
	defer span.End()

	if limit <= 0 {
		limit = DefaultCollectionLimit
	}
	sig := coalesce.Signature("products/"+string(col), map[string]any{"limit": limit})
	span.SetAttributes(attribute.String("signature", sig))

	return discover(ctx, c.core, string(col), slot, c.collections, sig, func(ctx context.Context) ([]product.Product, error) {
		ps, err := c.src.ListCollection(ctx, col, limit)
		if err != nil {
			return nil, err
		}
		return c.normalizeAll(ctx, ps), nil
	})
}

// Featured loads the featured collection.
func (c *Catalog) Featured(ctx context.Context, limit int) store.State[[]product.Product] {
	return c.collection(ctx, product.CollectionFeatured, c.store.Featured, limit)
}

// Latest loads the newest products.
func (c *Catalog) Latest(ctx context.Context, limit int) store.State[[]product.Product] {
	return c.collection(ctx, product.CollectionLatest, c.store.Latest, limit)
}

// OnSale loads the discounted products.
func (c *Catalog) OnSale(ctx context.Context, limit int) store.State[[]product.Product] {
	return c.collection(ctx, product.CollectionOnSale, c.store.OnSale, limit)
}

// Related loads products related to productID.
func (c *Catalog) Related(ctx context.Context, productID int64, limit int) store.State[[]product.Product] {
	ctx, span := c.start(ctx, "Catalog.Related")
	defer span.End()

	if limit <= 0 {
		limit = DefaultCollectionLimit
	}
	sig := coalesce.Signature("products/related", map[string]any{"id": productID, "limit": limit})
	if productID <= 0 {
		return reject(ctx, c.core, "related", c.store.Related, sig, inputErr("productID", "must be positive"))
	}
	return discover(ctx, c.core, "related", c.store.Related, c.collections, sig, func(ctx context.Context) ([]product.Product, error) {
		ps, err := c.src.ListRelated(ctx, productID, limit)
		if err != nil {
			return nil, err
		}
		return c.normalizeAll(ctx, ps), nil
	})
}

func slugKey(slug string) string { return "slug:" + slug }

func idKey(id int64) string { return "id:" + strconv.FormatInt(id, 10) }

// ProductBySlug returns the product with slug and makes it the selected
// product. Asking again for the selected product costs nothing.
func (c *Catalog) ProductBySlug(ctx context.Context, slug string) (_ product.Product, err error) {
	ctx, span := c.start(ctx, "Catalog.ProductBySlug")
	defer func() { end(span, err) }()

	if slug == "" {
		return product.Product{}, inputErr("slug", "must not be empty")
	}
	return lookup(ctx, c.core, "product", c.store.Product, c.products, slugKey(slug), func(ctx context.Context) (product.Product, error) {
		p, err := c.src.GetProductBySlug(ctx, slug)
		if err != nil {
			return product.Product{}, err
		}
		c.normalize(ctx, &p)
		return p, nil
	})
}

// ProductByID is ProductBySlug keyed by id.
func (c *Catalog) ProductByID(ctx context.Context, id int64) (_ product.Product, err error) {
	ctx, span := c.start(ctx, "Catalog.ProductByID")
	defer func() { end(span, err) }()

	if id <= 0 {
		return product.Product{}, inputErr("id", "must be positive")
	}
	return lookup(ctx, c.core, "product", c.store.Product, c.products, idKey(id), func(ctx context.Context) (product.Product, error) {
		p, err := c.src.GetProduct(ctx, id)
		if err != nil {
			return product.Product{}, err
		}
		c.normalize(ctx, &p)
		return p, nil
	})
}

// Images returns the gallery of a product.
func (c *Catalog) Images(ctx context.Context, productID int64) ([]product.Image, error) {
	if productID <= 0 {
		return nil, inputErr("productID", "must be positive")
	}
	return c.images.Do(ctx, idKey(productID), func(ctx context.Context) ([]product.Image, error) {
		return c.src.ListImages(ctx, productID)
	})
}

// Variants returns the size/color variants of a product.
func (c *Catalog) Variants(ctx context.Context, productID int64) ([]product.Variant, error) {
	if productID <= 0 {
		return nil, inputErr("productID", "must be positive")
	}
	return c.variants.Do(ctx, idKey(productID), func(ctx context.Context) ([]product.Variant, error) {
		return c.src.ListVariants(ctx, productID)
	})
}

// Detail loads everything the product page needs. Images and variants are
// fetched concurrently once the product is known. A failing gallery degrades
// to no images; failing variants fail the call.
func (c *Catalog) Detail(ctx context.Context, slug string) (_ product.Detail, err error) {
	ctx, span := c.start(ctx, "Catalog.Detail")
	defer func() { end(span, err) }()

	if slug == "" {
		return product.Detail{}, inputErr("slug", "must not be empty")
	}

	key := slugKey(slug)
	slot := c.store.Detail
	if d, ok := slot.GetKey(key); ok {
		if slot.Wanted() != key {
			slot.Put(key, d)
		}
		c.metrics.Outcome(ctx, "detail", "selected")
		return d, nil
	}
	slot.Begin(key)

	d, err := c.fetchDetail(ctx, slug)
	if err != nil {
		fail(ctx, c.core, "detail", slot, key, err)
		return product.Detail{}, err
	}
	commit(ctx, c.core, "detail", slot, key, d)
	return d, nil
}

func (c *Catalog) fetchDetail(ctx context.Context, slug string) (product.Detail, error) {
	p, err := c.ProductBySlug(ctx, slug)
	if err != nil {
		return product.Detail{}, err
	}

	d := product.Detail{Product: p}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		images, err := c.Images(gctx, p.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			c.metrics.Degraded(ctx, "images", "fetch_failed")
			zctx.From(ctx).Warn("Product images unavailable", zap.Int64("product_id", p.ID), zap.Error(err))
			images = []product.Image{}
		}
		d.Images = images
		return nil
	})
	g.Go(func() error {
		variants, err := c.Variants(gctx, p.ID)
		if err != nil {
			return errors.Wrap(err, "variants")
		}
		d.Variants = variants
		return nil
	})
	if err := g.Wait(); err != nil {
		return product.Detail{}, err
	}
	return d, nil
}

// ClearSelection forgets the selected product and its detail, as when the
// shopper leaves the product page.
func (c *Catalog) ClearSelection() {
	c.store.Product.Clear()
	c.store.Detail.Clear()
	c.store.Related.Clear()
}

func (c *Catalog) reset() {
	c.listing.Reset()
	c.collections.Reset()
	c.products.Reset()
	c.images.Reset()
	c.variants.Reset()
	c.store.Listing.Clear()
	c.store.Featured.Clear()
	c.store.Latest.Clear()
	c.store.OnSale.Clear()
	c.ClearSelection()
}
