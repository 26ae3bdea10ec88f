package storefront

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xenking/storefront-sync/internal/domain/cart"
	"github.com/xenking/storefront-sync/internal/domain/coupon"
	"github.com/xenking/storefront-sync/internal/domain/product"
	"github.com/xenking/storefront-sync/pkg/retry"
)

// fakeSource implements every source. Hooks left nil fall back to canned
// data; calls are counted by method name.
type fakeSource struct {
	mu    sync.Mutex
	calls map[string]int

	listProducts  func(ctx context.Context, p product.ListParams) (product.Page, error)
	productBySlug func(ctx context.Context, slug string) (product.Product, error)
	images        func(ctx context.Context, id int64) ([]product.Image, error)
	variants      func(ctx context.Context, id int64) ([]product.Variant, error)
	collection    func(ctx context.Context, c product.Collection, limit int) ([]product.Product, error)

	brands    func(ctx context.Context, activeOnly bool) ([]product.Brand, error)
	hierarchy func(ctx context.Context, slug string) (*product.Hierarchy, error)

	getCart        func(ctx context.Context) (cart.Cart, error)
	addItem        func(ctx context.Context, variantID int64, qty int) (cart.Cart, error)
	updateQuantity func(ctx context.Context, itemID int64, qty int) (cart.Cart, error)
	removeItem     func(ctx context.Context, itemID int64) (cart.Cart, error)
	clear          func(ctx context.Context) error
	orderStatus    func(ctx context.Context, id string) (cart.OrderStatus, error)

	validate func(ctx context.Context, code string, amount decimal.Decimal) (coupon.Validation, error)
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: make(map[string]int)}
}

func (f *fakeSource) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeSource) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSource) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeSource) sources() Sources {
	return Sources{Products: f, Taxonomy: f, Cart: f, Coupons: f}
}

func tee() product.Product {
	return product.Product{
		ID:       1,
		Name:     "Tee",
		Slug:     "tee",
		Price:    decimal.NewFromInt(20),
		Brand:    product.Brand{ID: 2, Name: "Acme"},
		Category: product.Category{ID: 3, Name: "Shirts"},
	}
}

// Catalog.

func (f *fakeSource) ListProducts(ctx context.Context, p product.ListParams) (product.Page, error) {
	f.hit("ListProducts")
	if f.listProducts != nil {
		return f.listProducts(ctx, p)
	}
	return product.Page{Items: []product.Product{tee()}, Page: p.Page, Size: p.Size, TotalItems: 1, TotalPages: 1}, nil
}

func (f *fakeSource) GetProduct(_ context.Context, id int64) (product.Product, error) {
	f.hit("GetProduct")
	p := tee()
	p.ID = id
	return p, nil
}

func (f *fakeSource) GetProductBySlug(ctx context.Context, slug string) (product.Product, error) {
	f.hit("GetProductBySlug")
	if f.productBySlug != nil {
		return f.productBySlug(ctx, slug)
	}
	p := tee()
	p.Slug = slug
	return p, nil
}

func (f *fakeSource) ListImages(ctx context.Context, id int64) ([]product.Image, error) {
	f.hit("ListImages")
	if f.images != nil {
		return f.images(ctx, id)
	}
	return []product.Image{{ID: 1, ProductID: id, URL: "tee.jpg", Primary: true}}, nil
}

func (f *fakeSource) ListVariants(ctx context.Context, id int64) ([]product.Variant, error) {
	f.hit("ListVariants")
	if f.variants != nil {
		return f.variants(ctx, id)
	}
	return []product.Variant{{ID: 10, ProductID: id, Size: "M", Color: "Red", StockQuantity: 3, Status: true}}, nil
}

func (f *fakeSource) ListRelated(_ context.Context, _ int64, _ int) ([]product.Product, error) {
	f.hit("ListRelated")
	return []product.Product{tee()}, nil
}

func (f *fakeSource) ListCollection(ctx context.Context, c product.Collection, limit int) ([]product.Product, error) {
	f.hit("ListCollection")
	if f.collection != nil {
		return f.collection(ctx, c, limit)
	}
	return []product.Product{tee()}, nil
}

// Taxonomy.

func (f *fakeSource) ListBrands(ctx context.Context, activeOnly bool) ([]product.Brand, error) {
	f.hit("ListBrands")
	if f.brands != nil {
		return f.brands(ctx, activeOnly)
	}
	return []product.Brand{{ID: 2, Name: "Acme", Slug: "acme", Status: true}}, nil
}

func (f *fakeSource) GetBrand(_ context.Context, id int64) (product.Brand, error) {
	f.hit("GetBrand")
	return product.Brand{ID: id, Name: "Acme", Slug: "acme"}, nil
}

func (f *fakeSource) GetBrandBySlug(_ context.Context, slug string) (product.Brand, error) {
	f.hit("GetBrandBySlug")
	if slug == "missing" {
		return product.Brand{}, product.ErrNotFound
	}
	return product.Brand{ID: 2, Name: "Acme", Slug: slug}, nil
}

func (f *fakeSource) ListCategories(_ context.Context, _ bool) ([]product.Category, error) {
	f.hit("ListCategories")
	return []product.Category{{ID: 3, Name: "Shirts", Slug: "shirts"}}, nil
}

func (f *fakeSource) GetCategory(_ context.Context, id int64) (product.Category, error) {
	f.hit("GetCategory")
	return product.Category{ID: id, Name: "Shirts", Slug: "shirts"}, nil
}

func (f *fakeSource) GetCategoryBySlug(_ context.Context, slug string) (product.Category, error) {
	f.hit("GetCategoryBySlug")
	return product.Category{ID: 3, Name: "Shirts", Slug: slug}, nil
}

func (f *fakeSource) GetHierarchy(ctx context.Context, slug string) (*product.Hierarchy, error) {
	f.hit("GetHierarchy")
	if f.hierarchy != nil {
		return f.hierarchy(ctx, slug)
	}
	parent := int64(3)
	return &product.Hierarchy{
		Parent:   product.Category{ID: 3, Name: "Shirts", Slug: slug},
		Children: []product.Category{{ID: 4, Name: "Polos", ParentID: &parent}},
	}, nil
}

// Cart.

func sampleCart() cart.Cart {
	return cart.Cart{ID: 1, Items: []cart.Item{{
		ID:            100,
		VariantID:     10,
		ProductID:     1,
		ProductName:   "Tee",
		Price:         decimal.NewFromInt(20),
		Size:          "M",
		Color:         "Red",
		StockQuantity: 3,
		Quantity:      1,
		Selected:      true,
	}}}
}

func (f *fakeSource) GetCart(ctx context.Context) (cart.Cart, error) {
	f.hit("GetCart")
	if f.getCart != nil {
		return f.getCart(ctx)
	}
	return sampleCart(), nil
}

func (f *fakeSource) AddItem(ctx context.Context, variantID int64, qty int) (cart.Cart, error) {
	f.hit("AddItem")
	if f.addItem != nil {
		return f.addItem(ctx, variantID, qty)
	}
	c := sampleCart()
	c.Items[0].VariantID = variantID
	c.Items[0].Quantity = qty
	return c, nil
}

func (f *fakeSource) UpdateQuantity(ctx context.Context, itemID int64, qty int) (cart.Cart, error) {
	f.hit("UpdateQuantity")
	if f.updateQuantity != nil {
		return f.updateQuantity(ctx, itemID, qty)
	}
	c := sampleCart()
	c.Items[0].Quantity = qty
	return c, nil
}

func (f *fakeSource) UpdateSelection(_ context.Context, _ int64, selected bool) (cart.Cart, error) {
	f.hit("UpdateSelection")
	c := sampleCart()
	c.Items[0].Selected = selected
	return c, nil
}

func (f *fakeSource) SelectAll(_ context.Context, selected bool) (cart.Cart, error) {
	f.hit("SelectAll")
	c := sampleCart()
	c.Items[0].Selected = selected
	return c, nil
}

func (f *fakeSource) RemoveItem(ctx context.Context, itemID int64) (cart.Cart, error) {
	f.hit("RemoveItem")
	if f.removeItem != nil {
		return f.removeItem(ctx, itemID)
	}
	return cart.Cart{ID: 1, Items: []cart.Item{}}, nil
}

func (f *fakeSource) Clear(ctx context.Context) error {
	f.hit("Clear")
	if f.clear != nil {
		return f.clear(ctx)
	}
	return nil
}

func (f *fakeSource) GetOrderStatus(ctx context.Context, id string) (cart.OrderStatus, error) {
	f.hit("GetOrderStatus")
	if f.orderStatus != nil {
		return f.orderStatus(ctx, id)
	}
	return cart.OrderStatus{ID: id}, nil
}

// Coupons.

func save10() coupon.Coupon {
	return coupon.Coupon{ID: 1, Code: "SAVE10", Type: coupon.DiscountPercentage, Value: decimal.NewFromInt(10), Status: true}
}

func (f *fakeSource) ListValid(_ context.Context) ([]coupon.Coupon, error) {
	f.hit("ListValid")
	return []coupon.Coupon{save10()}, nil
}

func (f *fakeSource) GetByCode(_ context.Context, code string) (coupon.Coupon, error) {
	f.hit("GetByCode")
	if code != "SAVE10" {
		return coupon.Coupon{}, coupon.ErrInvalidCoupon
	}
	return save10(), nil
}

func (f *fakeSource) Validate(ctx context.Context, code string, amount decimal.Decimal) (coupon.Validation, error) {
	f.hit("Validate")
	if f.validate != nil {
		return f.validate(ctx, code, amount)
	}
	return coupon.Validation{Valid: true, Coupon: save10(), OrderAmount: amount}, nil
}

func (f *fakeSource) Exists(_ context.Context, code string) (bool, error) {
	f.hit("Exists")
	return code == "SAVE10", nil
}

// Test harness.

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	src    *fakeSource
	clock  *fakeClock
	reader *sdkmetric.ManualReader
	client *Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	m, err := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	h := &harness{src: newFakeSource(), clock: newFakeClock(), reader: reader}
	h.client = New(h.src.sources(),
		WithClock(h.clock.Now),
		WithMetrics(m),
		WithRetry(retry.Policy{MaxAttempts: 3, Delay: time.Millisecond, Multiplier: 1}),
	)
	return h
}

// counter sums the data points of an int64 counter whose attribute key has
// the given value.
func (h *harness) counter(t *testing.T, name, key, value string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					total += dp.Value
				}
			}
		}
	}
	return total
}
