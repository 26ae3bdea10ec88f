package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-sync/internal/domain/product"
)

var (
	_ product.Source         = (*Client)(nil)
	_ product.TaxonomySource = (*Client)(nil)
)

func (c *Client) get(ctx context.Context, path string, q url.Values) (jx.Raw, error) {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: q, notFound: product.ErrNotFound})
}

func (c *Client) getProducts(ctx context.Context, path string, q url.Values) ([]product.Product, error) {
	data, err := c.get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	return decodeList(ctx, c, "products", data, decProduct)
}

// ListProducts fetches one page of the filtered product listing.
func (c *Client) ListProducts(ctx context.Context, params product.ListParams) (product.Page, error) {
	q := url.Values{}
	for k, v := range params.WithDefaults().Query() {
		switch v := v.(type) {
		case string:
			q.Set(k, v)
		case int:
			q.Set(k, strconv.Itoa(v))
		case int64:
			q.Set(k, strconv.FormatInt(v, 10))
		}
	}

	data, err := c.get(ctx, "/products", q)
	if err != nil {
		return product.Page{}, err
	}
	if data.Type() == jx.Array {
		// Unpaged backends answer with a bare list.
		items, err := decodeList(ctx, c, "products", data, decProduct)
		if err != nil {
			return product.Page{}, err
		}
		return product.Page{Items: items, Size: len(items), TotalItems: int64(len(items)), TotalPages: 1}, nil
	}
	if data.Type() != jx.Object {
		c.degrade(ctx, "products", "not_page")
		return product.Page{Items: []product.Product{}}, nil
	}

	dto, err := decodeOne("products", data, decPage)
	if err != nil {
		return product.Page{}, err
	}
	page := dto.page
	if page.Items, err = decodeList(ctx, c, "products", dto.content, decProduct); err != nil {
		return product.Page{}, err
	}
	return page, nil
}

// GetProduct fetches a product by id.
func (c *Client) GetProduct(ctx context.Context, id int64) (product.Product, error) {
	data, err := c.get(ctx, "/products/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return product.Product{}, err
	}
	return decodeOne("product", data, decProduct)
}

// GetProductBySlug fetches a product by slug.
func (c *Client) GetProductBySlug(ctx context.Context, slug string) (product.Product, error) {
	data, err := c.get(ctx, "/products/slug/"+url.PathEscape(slug), nil)
	if err != nil {
		return product.Product{}, err
	}
	return decodeOne("product", data, decProduct)
}

// ListImages fetches the gallery of a product.
func (c *Client) ListImages(ctx context.Context, productID int64) ([]product.Image, error) {
	data, err := c.get(ctx, "/products/"+strconv.FormatInt(productID, 10)+"/images", nil)
	if err != nil {
		return nil, err
	}
	return decodeList(ctx, c, "images", data, decImage)
}

// ListVariants fetches the size/color variants of a product.
func (c *Client) ListVariants(ctx context.Context, productID int64) ([]product.Variant, error) {
	data, err := c.get(ctx, "/products/"+strconv.FormatInt(productID, 10)+"/variants", nil)
	if err != nil {
		return nil, err
	}
	return decodeList(ctx, c, "variants", data, decVariant)
}

// ListRelated fetches products related to productID.
func (c *Client) ListRelated(ctx context.Context, productID int64, limit int) ([]product.Product, error) {
	return c.getProducts(ctx, "/products/"+strconv.FormatInt(productID, 10)+"/related", limitQuery(limit))
}

// ListCollection fetches one of the curated collections.
func (c *Client) ListCollection(ctx context.Context, col product.Collection, limit int) ([]product.Product, error) {
	switch col {
	case product.CollectionFeatured, product.CollectionLatest, product.CollectionOnSale:
	default:
		return nil, errors.Errorf("unknown collection %q", col)
	}
	return c.getProducts(ctx, "/products/"+string(col), limitQuery(limit))
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

// ListBrands fetches all brands, or only the active ones.
func (c *Client) ListBrands(ctx context.Context, activeOnly bool) ([]product.Brand, error) {
	path := "/brands"
	if activeOnly {
		path = "/brands/active"
	}
	data, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeList(ctx, c, "brands", data, decBrand)
}

// GetBrand fetches a brand by id.
func (c *Client) GetBrand(ctx context.Context, id int64) (product.Brand, error) {
	data, err := c.get(ctx, "/brands/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return product.Brand{}, err
	}
	return decodeOne("brand", data, decBrand)
}

// GetBrandBySlug fetches a brand by slug.
func (c *Client) GetBrandBySlug(ctx context.Context, slug string) (product.Brand, error) {
	data, err := c.get(ctx, "/brands/slug/"+url.PathEscape(slug), nil)
	if err != nil {
		return product.Brand{}, err
	}
	return decodeOne("brand", data, decBrand)
}

// ListCategories fetches all categories, or only the active ones.
func (c *Client) ListCategories(ctx context.Context, activeOnly bool) ([]product.Category, error) {
	path := "/categories"
	if activeOnly {
		path = "/categories/active"
	}
	data, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeList(ctx, c, "categories", data, decCategory)
}

// GetCategory fetches a category by id.
func (c *Client) GetCategory(ctx context.Context, id int64) (product.Category, error) {
	data, err := c.get(ctx, "/categories/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return product.Category{}, err
	}
	return decodeOne("category", data, decCategory)
}

// GetCategoryBySlug fetches a category by slug.
func (c *Client) GetCategoryBySlug(ctx context.Context, slug string) (product.Category, error) {
	data, err := c.get(ctx, "/categories/slug/"+url.PathEscape(slug), nil)
	if err != nil {
		return product.Category{}, err
	}
	return decodeOne("category", data, decCategory)
}

// GetHierarchy fetches a category with its subcategories. It returns nil when
// the backend answers with a null hierarchy.
func (c *Client) GetHierarchy(ctx context.Context, slug string) (*product.Hierarchy, error) {
	data, err := c.get(ctx, "/categories/slug/"+url.PathEscape(slug)+"/hierarchy", nil)
	if err != nil {
		return nil, err
	}
	if data.Type() != jx.Object {
		return nil, nil
	}

	dto, err := decodeOne("hierarchy", data, decHierarchy)
	if err != nil {
		return nil, err
	}
	children, err := decodeList(ctx, c, "categories", dto.children, decCategory)
	if err != nil {
		return nil, err
	}
	return &product.Hierarchy{Parent: dto.parent, Children: children}, nil
}
