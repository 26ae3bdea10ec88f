package storefront

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-sync/internal/domain/product"
	"github.com/xenking/storefront-sync/internal/store"
	"github.com/xenking/storefront-sync/pkg/coalesce"
)

// Taxonomy serves brands and categories.
type Taxonomy struct {
	*core
	src product.TaxonomySource

	brandLists    *coalesce.Group[[]product.Brand]
	brands        *coalesce.Group[product.Brand]
	categoryLists *coalesce.Group[[]product.Category]
	categories    *coalesce.Group[product.Category]
	hierarchies   *coalesce.Group[product.Hierarchy]
}

func newTaxonomy(c *core, src product.TaxonomySource, ttl time.Duration) *Taxonomy {
	return &Taxonomy{
		core:          c,
		src:           src,
		brandLists:    group(c, "brands", ttl, product.CloneBrands),
		brands:        group(c, "brand", ttl, func(b product.Brand) product.Brand { return b }),
		categoryLists: group(c, "categories", ttl, product.CloneCategories),
		categories:    group(c, "category", ttl, product.Category.Clone),
		hierarchies:   group(c, "hierarchy", ttl, product.Hierarchy.Clone),
	}
}

// TaxonomyState is a snapshot of every taxonomy slot.
type TaxonomyState struct {
	Brands     store.State[[]product.Brand]
	Brand      store.State[product.Brand]
	Categories store.State[[]product.Category]
	Category   store.State[product.Category]
	Hierarchy  store.State[product.Hierarchy]
}

// State returns copies of the taxonomy slots.
func (t *Taxonomy) State() TaxonomyState {
	return TaxonomyState{
		Brands:     t.store.Brands.Snapshot(),
		Brand:      t.store.Brand.Snapshot(),
		Categories: t.store.Categories.Snapshot(),
		Category:   t.store.Category.Snapshot(),
		Hierarchy:  t.store.Hierarchy.Snapshot(),
	}
}

func activeSig(endpoint string, activeOnly bool) string {
	return coalesce.Signature(endpoint, map[string]any{"active": activeOnly})
}

// Brands loads every brand, or only the active ones.
func (t *Taxonomy) Brands(ctx context.Context, activeOnly bool) store.State[[]product.Brand] {
	ctx, span := t.start(ctx, "Taxonomy.Brands")
	defer span.End()

	sig := activeSig("brands", activeOnly)
	return discover(ctx, t.core, "brands", t.store.Brands, t.brandLists, sig, func(ctx context.Context) ([]product.Brand, error) {
		return t.src.ListBrands(ctx, activeOnly)
	})
}

// BrandBySlug returns a brand and makes it the selected brand.
func (t *Taxonomy) BrandBySlug(ctx context.Context, slug string) (_ product.Brand, err error) {
	ctx, span := t.start(ctx, "Taxonomy.BrandBySlug")
	defer func() { end(span, err) }()

	if slug == "" {
		return product.Brand{}, inputErr("slug", "must not be empty")
	}
	return lookup(ctx, t.core, "brand", t.store.Brand, t.brands, slugKey(slug), func(ctx context.Context) (product.Brand, error) {
		return t.src.GetBrandBySlug(ctx, slug)
	})
}

// BrandByID returns a brand by id and makes it the selected brand.
func (t *Taxonomy) BrandByID(ctx context.Context, id int64) (_ product.Brand, err error) {
	ctx, span := t.start(ctx, "Taxonomy.BrandByID")
	defer func() { end(span, err) }()

	if id <= 0 {
		return product.Brand{}, inputErr("id", "must be positive")
	}
	return lookup(ctx, t.core, "brand", t.store.Brand, t.brands, idKey(id), func(ctx context.Context) (product.Brand, error) {
		return t.src.GetBrand(ctx, id)
	})
}

// Categories loads every category, or only the active ones.
func (t *Taxonomy) Categories(ctx context.Context, activeOnly bool) store.State[[]product.Category] {
	ctx, span := t.start(ctx, "Taxonomy.Categories")
	defer span.End()

	sig := activeSig("categories", activeOnly)
	return discover(ctx, t.core, "categories", t.store.Categories, t.categoryLists, sig, func(ctx context.Context) ([]product.Category, error) {
		return t.src.ListCategories(ctx, activeOnly)
	})
}

// CategoryBySlug returns a category and makes it the selected category.
func (t *Taxonomy) CategoryBySlug(ctx context.Context, slug string) (_ product.Category, err error) {
	ctx, span := t.start(ctx, "Taxonomy.CategoryBySlug")
	defer func() { end(span, err) }()

	if slug == "" {
		return product.Category{}, inputErr("slug", "must not be empty")
	}
	return lookup(ctx, t.core, "category", t.store.Category, t.categories, slugKey(slug), func(ctx context.Context) (product.Category, error) {
		return t.src.GetCategoryBySlug(ctx, slug)
	})
}

// CategoryByID returns a category by id and makes it the selected category.
func (t *Taxonomy) CategoryByID(ctx context.Context, id int64) (_ product.Category, err error) {
	ctx, span := t.start(ctx, "Taxonomy.CategoryByID")
	defer func() { end(span, err) }()

	if id <= 0 {
		return product.Category{}, inputErr("id", "must be positive")
	}
	return lookup(ctx, t.core, "category", t.store.Category, t.categories, idKey(id), func(ctx context.Context) (product.Category, error) {
		return t.src.GetCategory(ctx, id)
	})
}

// Hierarchy loads a category with its subcategories. A hierarchy the backend
// does not know is served as the empty hierarchy.
func (t *Taxonomy) Hierarchy(ctx context.Context, slug string) store.State[product.Hierarchy] {
	ctx, span := t.start(ctx, "Taxonomy.Hierarchy")
	defer span.End()

	key := slugKey(slug)
	if slug == "" {
		return reject(ctx, t.core, "hierarchy", t.store.Hierarchy, key, inputErr("slug", "must not be empty"))
	}
	return discover(ctx, t.core, "hierarchy", t.store.Hierarchy, t.hierarchies, key, func(ctx context.Context) (product.Hierarchy, error) {
		h, err := t.src.GetHierarchy(ctx, slug)
		if err != nil {
			return product.Hierarchy{}, err
		}
		if h == nil {
			t.metrics.Degraded(ctx, "hierarchy", "null")
			zctx.From(ctx).Warn("Null category hierarchy", zap.String("slug", slug))
			return product.EmptyHierarchy(), nil
		}
		if h.Children == nil {
			h.Children = []product.Category{}
		}
		return *h, nil
	})
}

func (t *Taxonomy) reset() {
	t.brandLists.Reset()
	t.brands.Reset()
	t.categoryLists.Reset()
	t.categories.Reset()
	t.hierarchies.Reset()
	t.store.Brands.Clear()
	t.store.Brand.Clear()
	t.store.Categories.Clear()
	t.store.Category.Clear()
	t.store.Hierarchy.Clear()
}
