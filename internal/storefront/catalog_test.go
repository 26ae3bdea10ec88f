package storefront

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-sync/internal/domain/product"
	"github.com/xenking/storefront-sync/internal/store"
)

func TestCatalog_DuplicateSearch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	params := product.ListParams{Search: "ao", Page: 0}

	first := h.client.Catalog.ListProducts(ctx, params)
	h.clock.Advance(500 * time.Millisecond)
	second := h.client.Catalog.ListProducts(ctx, params)

	assert.Equal(t, 1, h.src.count("ListProducts"))
	require.Equal(t, store.StatusReady, first.Status)
	require.Equal(t, store.StatusReady, second.Status)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, int64(1), h.counter(t, "storefront.coalesce.outcomes", "outcome", "hit"))

	h.clock.Advance(2 * time.Second)
	h.client.Catalog.ListProducts(ctx, params)
	assert.Equal(t, 2, h.src.count("ListProducts"), "TTL elapsed")
}

func TestCatalog_ConcurrentListingsShareOneCall(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.src.listProducts = func(ctx context.Context, p product.ListParams) (product.Page, error) {
		<-release
		return product.Page{Items: []product.Product{tee()}, Size: p.Size}, nil
	}

	const callers = 5
	var wg sync.WaitGroup
	states := make([]store.State[product.Page], callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			states[i] = h.client.Catalog.ListProducts(context.Background(), product.ListParams{Search: "ao"})
		}()
	}
	require.Eventually(t, func() bool {
		return h.src.count("ListProducts") == 1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, h.src.count("ListProducts"))
	for _, st := range states {
		require.Len(t, st.Data.Items, 1)
	}
}

func TestCatalog_ListProducts_FailureKeepsPreviousData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	params := product.ListParams{Page: 0}

	ok := h.client.Catalog.ListProducts(ctx, params)
	require.Equal(t, store.StatusReady, ok.Status)

	boom := errors.New("backend down")
	h.src.listProducts = func(context.Context, product.ListParams) (product.Page, error) {
		return product.Page{}, boom
	}
	h.clock.Advance(3 * time.Second)

	st := h.client.Catalog.ListProducts(ctx, params)
	assert.Equal(t, store.StatusFailed, st.Status)
	assert.ErrorIs(t, st.Err, boom)
	require.True(t, st.HasData)
	assert.Equal(t, ok.Data, st.Data)

	// The failure was not cached.
	h.src.listProducts = nil
	st = h.client.Catalog.ListProducts(ctx, params)
	assert.Equal(t, store.StatusReady, st.Status)
	assert.NoError(t, st.Err)
	assert.Equal(t, 3, h.src.count("ListProducts"))
}

func TestCatalog_ListProducts_InvalidParams(t *testing.T) {
	h := newHarness(t)

	st := h.client.Catalog.ListProducts(context.Background(), product.ListParams{Size: 500})

	var input *InputError
	require.True(t, errors.As(st.Err, &input))
	assert.Equal(t, "Size", input.Field)
	assert.Equal(t, store.StatusFailed, st.Status)
	assert.Zero(t, h.src.total())

	st = h.client.Catalog.ListProducts(context.Background(), product.ListParams{SortBy: "rating"})
	require.True(t, errors.As(st.Err, &input))
	assert.Equal(t, "SortBy", input.Field)
	assert.Zero(t, h.src.total())
}

func TestCatalog_NormalizesMissingReferences(t *testing.T) {
	h := newHarness(t)
	h.src.collection = func(context.Context, product.Collection, int) ([]product.Product, error) {
		return []product.Product{{ID: 7, Name: "Orphan"}}, nil
	}

	st := h.client.Catalog.Featured(context.Background(), 0)
	require.Len(t, st.Data, 1)
	assert.Equal(t, product.UnknownBrand(), st.Data[0].Brand)
	assert.Equal(t, product.UnknownCategory(), st.Data[0].Category)
	assert.Equal(t, int64(1), h.counter(t, "storefront.degraded", "kind", "unknown_brand"))
	assert.Equal(t, int64(1), h.counter(t, "storefront.degraded", "kind", "unknown_category"))
}

func TestCatalog_CollectionsUseSeparateSlots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var seen []product.Collection
	var mu sync.Mutex
	h.src.collection = func(_ context.Context, c product.Collection, limit int) ([]product.Product, error) {
		mu.Lock()
		seen = append(seen, c)
		mu.Unlock()
		assert.Equal(t, DefaultCollectionLimit, limit)
		return []product.Product{tee()}, nil
	}

	h.client.Catalog.Featured(ctx, 0)
	h.client.Catalog.Latest(ctx, 0)
	h.client.Catalog.OnSale(ctx, -1)

	assert.Equal(t, []product.Collection{product.CollectionFeatured, product.CollectionLatest, product.CollectionOnSale}, seen)
	state := h.client.Catalog.State()
	assert.True(t, state.Featured.HasData)
	assert.True(t, state.Latest.HasData)
	assert.True(t, state.OnSale.HasData)
	assert.False(t, state.Related.HasData)
}

func TestCatalog_ProductBySlug_SelectionCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.client.Catalog.ProductBySlug(ctx, "tee")
	require.NoError(t, err)
	assert.Equal(t, "tee", p.Slug)

	// Far beyond the TTL: the selected product is still served locally.
	h.clock.Advance(time.Hour)
	_, err = h.client.Catalog.ProductBySlug(ctx, "tee")
	require.NoError(t, err)
	assert.Equal(t, 1, h.src.count("GetProductBySlug"))
	assert.Equal(t, int64(1), h.counter(t, "storefront.coalesce.outcomes", "outcome", "selected"))

	_, err = h.client.Catalog.ProductBySlug(ctx, "polo")
	require.NoError(t, err)
	assert.Equal(t, 2, h.src.count("GetProductBySlug"))

	h.client.Catalog.ClearSelection()
	assert.False(t, h.client.Catalog.State().Product.HasData)
}

func TestCatalog_ProductBySlug_Errors(t *testing.T) {
	h := newHarness(t)
	h.src.productBySlug = func(context.Context, string) (product.Product, error) {
		return product.Product{}, product.ErrNotFound
	}

	_, err := h.client.Catalog.ProductBySlug(context.Background(), "ghost")
	require.ErrorIs(t, err, product.ErrNotFound)
	assert.Equal(t, store.StatusFailed, h.client.Catalog.State().Product.Status)

	_, err = h.client.Catalog.ProductBySlug(context.Background(), "")
	var input *InputError
	require.True(t, errors.As(err, &input))
	assert.Equal(t, 1, h.src.total())
}

func TestCatalog_StaleLookupDiscarded(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.src.productBySlug = func(_ context.Context, slug string) (product.Product, error) {
		if slug == "slow" {
			<-release
		}
		p := tee()
		p.Slug = slug
		return p, nil
	}

	done := make(chan product.Product)
	go func() {
		p, err := h.client.Catalog.ProductBySlug(context.Background(), "slow")
		assert.NoError(t, err)
		done <- p
	}()
	require.Eventually(t, func() bool {
		return h.src.count("GetProductBySlug") == 1
	}, time.Second, time.Millisecond)

	_, err := h.client.Catalog.ProductBySlug(context.Background(), "fast")
	require.NoError(t, err)

	close(release)
	slow := <-done
	assert.Equal(t, "slow", slow.Slug, "the caller still gets its own result")

	st := h.client.Catalog.State().Product
	assert.Equal(t, "fast", st.Data.Slug)
	assert.Equal(t, int64(1), h.counter(t, "storefront.stale_discards", "family", "product"))
}

func TestCatalog_Detail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d, err := h.client.Catalog.Detail(ctx, "tee")
	require.NoError(t, err)
	assert.Equal(t, "tee", d.Product.Slug)
	assert.Len(t, d.Images, 1)
	assert.Len(t, d.Variants, 1)

	_, err = h.client.Catalog.Detail(ctx, "tee")
	require.NoError(t, err)
	assert.Equal(t, 1, h.src.count("ListVariants"), "selected detail served locally")
}

func TestCatalog_Detail_ImageFailureDegrades(t *testing.T) {
	h := newHarness(t)
	h.src.images = func(context.Context, int64) ([]product.Image, error) {
		return nil, errors.New("gallery down")
	}

	d, err := h.client.Catalog.Detail(context.Background(), "tee")
	require.NoError(t, err)
	assert.NotNil(t, d.Images)
	assert.Empty(t, d.Images)
	assert.Len(t, d.Variants, 1)
	assert.Equal(t, int64(1), h.counter(t, "storefront.degraded", "family", "images"))
}

func TestCatalog_Detail_VariantFailureFails(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("variants down")
	h.src.variants = func(context.Context, int64) ([]product.Variant, error) {
		return nil, boom
	}

	_, err := h.client.Catalog.Detail(context.Background(), "tee")
	require.ErrorIs(t, err, boom)

	st := h.client.Catalog.State().Detail
	assert.Equal(t, store.StatusFailed, st.Status)
	assert.False(t, st.HasData)
}

func TestCatalog_CopyIsolation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	st := h.client.Catalog.ListProducts(ctx, product.ListParams{})
	require.Len(t, st.Data.Items, 1)
	st.Data.Items[0].Name = "mutated"
	st.Data.Items = append(st.Data.Items, product.Product{})

	again := h.client.Catalog.State().Listing
	require.Len(t, again.Data.Items, 1)
	assert.Equal(t, "Tee", again.Data.Items[0].Name)

	d, err := h.client.Catalog.Detail(ctx, "tee")
	require.NoError(t, err)
	d.Variants[0].StockQuantity = 99

	vs, err := h.client.Catalog.Variants(ctx, d.Product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, vs[0].StockQuantity)
}

func TestCatalog_RelatedRejectsBadID(t *testing.T) {
	h := newHarness(t)

	st := h.client.Catalog.Related(context.Background(), 0, 4)
	var input *InputError
	require.True(t, errors.As(st.Err, &input))
	assert.Zero(t, h.src.total())

	st = h.client.Catalog.Related(context.Background(), 1, 4)
	assert.Equal(t, store.StatusReady, st.Status)
}
