package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-sync/internal/storefront"
	"github.com/xenking/storefront-sync/pkg/health"
)

// warmer keeps the taxonomy and landing collections of a storefront client
// fresh, so the first view after a deploy is served from memory.
type warmer struct {
	client   *storefront.Client
	fresh    *health.Freshness
	interval time.Duration
	now      func() time.Time
}

// refresh reads every warmed family once and marks the freshness tracker when
// all of them succeeded. It returns the first failure.
func (w *warmer) refresh(ctx context.Context) error {
	lg := zctx.From(ctx)

	var first error
	note := func(family string, err error) {
		if err == nil {
			return
		}
		lg.Warn("Warm refresh failed", zap.String("family", family), zap.Error(err))
		if first == nil {
			first = errors.Wrap(err, family)
		}
	}

	note("brands", w.client.Taxonomy.Brands(ctx, true).Err)
	note("categories", w.client.Taxonomy.Categories(ctx, true).Err)
	note("featured", w.client.Catalog.Featured(ctx, storefront.DefaultCollectionLimit).Err)
	note("latest", w.client.Catalog.Latest(ctx, storefront.DefaultCollectionLimit).Err)

	if first != nil {
		return first
	}
	w.fresh.Mark(w.now())
	lg.Debug("Warm refresh done")
	return nil
}

// run refreshes immediately and then every interval until ctx is done.
func (w *warmer) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		_ = w.refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
