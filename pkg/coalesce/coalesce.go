// Package coalesce deduplicates identical read requests.
//
// A Group keys requests by a signature. While a request for a signature is in
// flight, further callers with the same signature wait for that request
// instead of issuing their own. Successful results are kept for a fixed TTL
// and served from memory until they expire. Failures are never cached.
package coalesce

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Outcome describes how a call to Do was served.
type Outcome string

const (
	// OutcomeMiss means the caller issued the fetch.
	OutcomeMiss Outcome = "miss"
	// OutcomeHit means the result came from the TTL cache.
	OutcomeHit Outcome = "hit"
	// OutcomeShared means the caller joined a fetch issued by someone else.
	OutcomeShared Outcome = "shared"
)

// Fetcher performs the actual request. It runs detached from the cancellation
// of the caller that triggered it.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Record is the request-tracking state kept per signature.
type Record struct {
	Signature  string
	Timestamp  time.Time
	InProgress bool
}

type entry[T any] struct {
	record    Record
	value     T
	cached    bool
	settledAt time.Time
}

// Group coalesces requests returning T. The zero value is not usable; use New.
type Group[T any] struct {
	ttl     time.Duration
	clone   func(T) T
	now     func() time.Time
	observe func(Outcome)

	sf singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry[T]
}

// Option configures a Group.
type Option[T any] func(*Group[T])

// WithClone sets the function used to copy results before they are cached and
// before they are handed to each caller. Without it values are copied by
// assignment only, which is enough for types without pointers or slices.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(g *Group[T]) { g.clone = clone }
}

// WithClock overrides time.Now.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(g *Group[T]) { g.now = now }
}

// WithObserver registers a callback invoked once per Do with its outcome.
func WithObserver[T any](fn func(Outcome)) Option[T] {
	return func(g *Group[T]) { g.observe = fn }
}

// New creates a Group whose successful results stay fresh for ttl. A ttl of
// zero disables caching; in-flight requests are still shared.
func New[T any](ttl time.Duration, opts ...Option[T]) *Group[T] {
	g := &Group[T]{
		ttl:     ttl,
		clone:   func(v T) T { return v },
		now:     time.Now,
		observe: func(Outcome) {},
		entries: make(map[string]*entry[T]),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Do returns the result for signature, in order of preference: the result of
// an in-flight fetch for the same signature, a cached result younger than the
// TTL, or the result of a new call to fetch.
//
// ctx bounds only how long this caller waits. The fetch keeps running when
// the caller gives up, and its result is cached for later callers.
func (g *Group[T]) Do(ctx context.Context, signature string, fetch Fetcher[T]) (T, error) {
	var zero T

	g.mu.Lock()
	e := g.entryLocked(signature)
	if !e.record.InProgress && g.freshLocked(e) {
		v := g.clone(e.value)
		g.mu.Unlock()
		g.observe(OutcomeHit)
		return v, nil
	}
	g.mu.Unlock()

	var led bool
	ch := g.sf.DoChan(signature, func() (any, error) {
		led = true
		return g.run(ctx, signature, fetch)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		r := res.Val.(result[T])
		switch {
		case r.cached:
			g.observe(OutcomeHit)
		case led:
			g.observe(OutcomeMiss)
		default:
			g.observe(OutcomeShared)
		}
		return g.clone(r.value), nil
	}
}

type result[T any] struct {
	value  T
	cached bool
}

// run executes under singleflight, so at most one run per signature is active.
func (g *Group[T]) run(ctx context.Context, signature string, fetch Fetcher[T]) (result[T], error) {
	g.mu.Lock()
	e := g.entryLocked(signature)
	// A caller that saw the previous fetch in flight may start a new run just
	// after it settled; serve it from the fresh result instead of refetching.
	if g.freshLocked(e) {
		v := e.value
		g.mu.Unlock()
		return result[T]{value: v, cached: true}, nil
	}
	e.record.InProgress = true
	e.record.Timestamp = g.now()
	g.mu.Unlock()

	v, err := fetch(context.WithoutCancel(ctx))

	g.mu.Lock()
	defer g.mu.Unlock()

	e = g.entryLocked(signature)
	e.record.InProgress = false
	e.record.Timestamp = g.now()
	if err != nil {
		var zero T
		e.value = zero
		e.cached = false
		return result[T]{}, err
	}
	e.value = g.clone(v)
	e.cached = true
	e.settledAt = e.record.Timestamp
	return result[T]{value: e.value}, nil
}

// Record returns the tracking record for signature.
func (g *Group[T]) Record(signature string) (Record, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[signature]
	if !ok {
		return Record{}, false
	}
	return e.record, true
}

// Invalidate drops the cached result for signature. An in-flight fetch is not
// affected and will cache its result when it settles.
func (g *Group[T]) Invalidate(signature string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.entries[signature]; ok {
		var zero T
		e.value = zero
		e.cached = false
	}
}

// Reset drops every cached result.
func (g *Group[T]) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for sig, e := range g.entries {
		if !e.record.InProgress {
			delete(g.entries, sig)
			continue
		}
		var zero T
		e.value = zero
		e.cached = false
	}
}

func (g *Group[T]) entryLocked(signature string) *entry[T] {
	e, ok := g.entries[signature]
	if !ok {
		e = &entry[T]{record: Record{Signature: signature}}
		g.entries[signature] = e
	}
	return e
}

func (g *Group[T]) freshLocked(e *entry[T]) bool {
	return e.cached && g.ttl > 0 && g.now().Sub(e.settledAt) < g.ttl
}
