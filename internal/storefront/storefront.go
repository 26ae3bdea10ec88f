// Package storefront exposes the view-facing operations of the storefront:
// catalog browsing, taxonomy lookups, cart mutations and coupons. Reads go
// through a per-family coalescing cache, mutations that can race with the
// backend are retried, and every result lands in a shared store.Store.
package storefront

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront-sync/internal/domain/cart"
	"github.com/xenking/storefront-sync/internal/domain/coupon"
	"github.com/xenking/storefront-sync/internal/domain/product"
	"github.com/xenking/storefront-sync/internal/store"
	"github.com/xenking/storefront-sync/pkg/coalesce"
	"github.com/xenking/storefront-sync/pkg/retry"
)

const tracerName = "github.com/xenking/storefront-sync/internal/storefront"

// CacheConfig sets how long successful reads are served from memory.
type CacheConfig struct {
	ProductTTL  time.Duration `default:"2s" usage:"Freshness of product listings and lookups"`
	TaxonomyTTL time.Duration `default:"5m" usage:"Freshness of brands and categories"`
	CouponTTL   time.Duration `default:"30s" usage:"Freshness of coupon lookups and validations"`
}

// DefaultCacheConfig returns the default TTLs.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ProductTTL:  2 * time.Second,
		TaxonomyTTL: 5 * time.Minute,
		CouponTTL:   30 * time.Second,
	}
}

// Sources are the backend collaborators. remote.Client implements all four.
type Sources struct {
	Products product.Source
	Taxonomy product.TaxonomySource
	Cart     cart.Source
	Coupons  coupon.Source
}

// Option configures a Client.
type Option func(*options)

type options struct {
	cache   CacheConfig
	retry   retry.Policy
	metrics *Metrics
	tracer  trace.TracerProvider
	now     func() time.Time
	store   *store.Store
}

// WithCache overrides the cache TTLs.
func WithCache(c CacheConfig) Option {
	return func(o *options) { o.cache = c }
}

// WithRetry overrides the mutation retry policy.
func WithRetry(p retry.Policy) Option {
	return func(o *options) { o.retry = p }
}

// WithMetrics sets the instruments used to report outcomes.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracerProvider sets the provider spans are started from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithClock overrides time.Now for cache freshness and coupon windows.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithStore shares an existing store instead of creating one.
func WithStore(s *store.Store) Option {
	return func(o *options) { o.store = s }
}

// Client groups the four façades over one store.
type Client struct {
	Catalog  *Catalog
	Taxonomy *Taxonomy
	Cart     *Cart
	Coupons  *Coupons

	store *store.Store
}

// New creates a Client reading from and writing to src.
func New(src Sources, opts ...Option) *Client {
	o := options{
		cache:  DefaultCacheConfig(),
		retry:  retry.DefaultPolicy(),
		tracer: noop.NewTracerProvider(),
		now:    time.Now,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.store == nil {
		o.store = store.New()
	}

	c := &core{
		store:    o.store,
		metrics:  o.metrics,
		tracer:   o.tracer.Tracer(tracerName),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      o.now,
	}
	return &Client{
		Catalog:  newCatalog(c, src.Products, o.cache.ProductTTL),
		Taxonomy: newTaxonomy(c, src.Taxonomy, o.cache.TaxonomyTTL),
		Cart:     newCart(c, src.Cart, o.retry),
		Coupons:  newCoupons(c, src.Coupons, o.cache.CouponTTL),
		store:    o.store,
	}
}

// Store returns the store the client writes to.
func (c *Client) Store() *store.Store {
	return c.store
}

// Reset drops every cached read and clears the store. The cart and the
// applied coupon are cleared too.
func (c *Client) Reset() {
	c.Catalog.reset()
	c.Taxonomy.reset()
	c.Coupons.reset()
	c.Cart.reset()
}

// core is shared by the façades.
type core struct {
	store    *store.Store
	metrics  *Metrics
	tracer   trace.Tracer
	validate *validator.Validate
	now      func() time.Time
}

func (c *core) start(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "storefront."+name)
}

// end closes span, marking it failed when err is set.
func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func group[T any](c *core, family string, ttl time.Duration, clone func(T) T) *coalesce.Group[T] {
	return coalesce.New(ttl,
		coalesce.WithClone(clone),
		coalesce.WithClock[T](c.now),
		coalesce.WithObserver[T](func(o coalesce.Outcome) {
			c.metrics.Outcome(context.Background(), family, string(o))
		}),
	)
}

// discover runs a browsing read: the outcome is recorded in slot and never
// returned as an error.
func discover[T any](ctx context.Context, c *core, family string, slot *store.Slot[T], g *coalesce.Group[T], key string, fetch coalesce.Fetcher[T]) store.State[T] {
	slot.Begin(key)
	v, err := g.Do(ctx, key, fetch)
	if err != nil {
		fail(ctx, c, family, slot, key, err)
		return slot.Snapshot()
	}
	commit(ctx, c, family, slot, key, v)
	return slot.Snapshot()
}

// reject records an input error for a browsing read.
func reject[T any](ctx context.Context, c *core, family string, slot *store.Slot[T], key string, err error) store.State[T] {
	slot.Begin(key)
	fail(ctx, c, family, slot, key, err)
	return slot.Snapshot()
}

// lookup runs a required read. When the slot already holds the wanted entity
// it is returned without touching the cache or the network.
func lookup[T any](ctx context.Context, c *core, family string, slot *store.Slot[T], g *coalesce.Group[T], key string, fetch coalesce.Fetcher[T]) (T, error) {
	if v, ok := slot.GetKey(key); ok {
		if slot.Wanted() != key {
			// A newer lookup is in flight; this one takes precedence again.
			slot.Put(key, v)
		}
		c.metrics.Outcome(ctx, family, "selected")
		return v, nil
	}

	slot.Begin(key)
	v, err := g.Do(ctx, key, fetch)
	if err != nil {
		fail(ctx, c, family, slot, key, err)
		var zero T
		return zero, err
	}
	commit(ctx, c, family, slot, key, v)
	return v, nil
}

// commit stores v unless key was superseded while it was being fetched.
func commit[T any](ctx context.Context, c *core, family string, slot *store.Slot[T], key string, v T) {
	if slot.Commit(key, v) {
		return
	}
	c.metrics.StaleDiscard(ctx, family)
	zctx.From(ctx).Warn("Discarded stale result",
		zap.String("family", family),
		zap.String("key", key),
		zap.String("wanted", slot.Wanted()),
	)
}

// fail records err on slot, keeping its previous data.
func fail[T any](ctx context.Context, c *core, family string, slot *store.Slot[T], key string, err error) {
	lg := zctx.From(ctx).With(zap.String("family", family), zap.String("key", key))
	if !slot.Fail(key, err) {
		c.metrics.StaleDiscard(ctx, family)
		lg.Warn("Discarded stale failure", zap.Error(err))
		return
	}
	lg.Warn("Fetch failed", zap.Error(err))
}
