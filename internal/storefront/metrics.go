package storefront

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/xenking/storefront-sync/internal/storefront"

// Metrics counts how reads were served and how often the layer had to
// degrade. A nil *Metrics is valid and records nothing.
type Metrics struct {
	outcomes  metric.Int64Counter
	degraded  metric.Int64Counter
	exhausted metric.Int64Counter
	stale     metric.Int64Counter
}

// NewMetrics registers the storefront instruments with mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(meterName)

	var (
		m   Metrics
		err error
	)
	if m.outcomes, err = meter.Int64Counter("storefront.coalesce.outcomes",
		metric.WithDescription("Reads by how they were served (miss, hit, shared, selected)"),
	); err != nil {
		return nil, errors.Wrap(err, "outcomes counter")
	}
	if m.degraded, err = meter.Int64Counter("storefront.degraded",
		metric.WithDescription("Payloads repaired with sentinels or empty collections"),
	); err != nil {
		return nil, errors.Wrap(err, "degraded counter")
	}
	if m.exhausted, err = meter.Int64Counter("storefront.retry.exhausted",
		metric.WithDescription("Mutations that failed every retry attempt"),
	); err != nil {
		return nil, errors.Wrap(err, "exhausted counter")
	}
	if m.stale, err = meter.Int64Counter("storefront.stale_discards",
		metric.WithDescription("Fetch results dropped because a newer request superseded them"),
	); err != nil {
		return nil, errors.Wrap(err, "stale counter")
	}
	return &m, nil
}

// Outcome records how a read of family was served.
func (m *Metrics) Outcome(ctx context.Context, family, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("family", family),
		attribute.String("outcome", outcome),
	))
}

// Degraded records a repaired payload. Its signature matches
// remote.DegradedFunc.
func (m *Metrics) Degraded(ctx context.Context, family, kind string) {
	if m == nil {
		return
	}
	m.degraded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("family", family),
		attribute.String("kind", kind),
	))
}

// Exhausted records a mutation that ran out of attempts.
func (m *Metrics) Exhausted(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.exhausted.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// StaleDiscard records a superseded fetch result.
func (m *Metrics) StaleDiscard(ctx context.Context, family string) {
	if m == nil {
		return
	}
	m.stale.Add(ctx, 1, metric.WithAttributes(attribute.String("family", family)))
}
