package health

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
)

// Goroutines fails when the process runs more than limit goroutines.
func Goroutines(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("goroutine count %d exceeds %d", n, limit)
		}
		return nil
	}
}

// Freshness records the time of the last successful background sync.
type Freshness struct {
	last atomic.Int64
}

// Mark records a successful sync at t.
func (f *Freshness) Mark(t time.Time) {
	f.last.Store(t.UnixNano())
}

// Last returns the time of the last successful sync, or the zero time.
func (f *Freshness) Last() time.Time {
	ns := f.last.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Check fails when no sync succeeded within maxAge before now().
func (f *Freshness) Check(maxAge time.Duration, now func() time.Time) CheckFunc {
	return func(context.Context) error {
		last := f.Last()
		if last.IsZero() {
			return errors.New("no successful sync yet")
		}
		if age := now().Sub(last); age > maxAge {
			return errors.Errorf("last sync %s ago exceeds %s", age.Truncate(time.Second), maxAge)
		}
		return nil
	}
}
