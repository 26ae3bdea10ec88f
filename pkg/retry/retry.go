// Package retry runs a mutating operation until it succeeds or a bounded
// number of sequential attempts has failed.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
)

// Operation is a single attempt. It is never invoked concurrently with itself.
type Operation func(ctx context.Context) error

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `default:"3" usage:"Total attempts for a conflicting mutation"`
	// Delay is the wait between the first and second attempt.
	Delay time.Duration `default:"1s" usage:"Wait between attempts"`
	// Multiplier scales Delay after each failure. Values <= 1 keep the delay
	// fixed.
	Multiplier float64 `default:"1" usage:"Delay multiplier (1 = fixed delay)"`
}

// DefaultPolicy is three attempts one second apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: time.Second, Multiplier: 1}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Permanent marks err as not worth retrying. Do returns it unwrapped
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do invokes op up to p.MaxAttempts times, waiting between failed attempts.
// It returns nil on the first success, the error itself when op returns a
// Permanent error, ctx.Err() when ctx ends while waiting, and an
// *ExhaustedError otherwise.
func Do(ctx context.Context, p Policy, op Operation) error {
	return do(ctx, p, op, nil)
}

// DoNotify is like Do but calls notify after every failed attempt that will
// be retried.
func DoNotify(ctx context.Context, p Policy, op Operation, notify func(attempt int, err error, wait time.Duration)) error {
	return do(ctx, p, op, notify)
}

func do(ctx context.Context, p Policy, op Operation, notify func(int, error, time.Duration)) error {
	maxAttempts := max(p.MaxAttempts, 1)

	var (
		attempts int
		last     error
		stopped  bool
	)
	attempt := func() error {
		attempts++
		err := op(ctx)
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			stopped = true
			last = perm.Err
			return err
		}
		last = err
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(maxAttempts-1)), ctx)

	var n backoff.Notify
	if notify != nil {
		n = func(err error, wait time.Duration) {
			notify(attempts, err, wait)
		}
	}

	err := backoff.RetryNotify(attempt, b, n)
	switch {
	case err == nil:
		return nil
	case stopped:
		return last
	case attempts < maxAttempts:
		// ctx ended while waiting for the next attempt.
		return err
	default:
		return &ExhaustedError{Attempts: attempts, Last: last}
	}
}

func (p Policy) backOff() backoff.BackOff {
	if p.Multiplier <= 1 {
		return backoff.NewConstantBackOff(p.Delay)
	}
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     p.Delay,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         backoff.DefaultMaxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	eb.Reset()
	return eb
}
