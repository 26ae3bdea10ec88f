package roundtrip

import (
	"fmt"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// PanicError is returned in place of a panic raised further down the chain.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("roundtrip: panic: %v", e.Value)
}

// Recover turns a panic in the wrapped RoundTripper into a *PanicError and
// logs it with a stack trace.
func Recover() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(req *http.Request) (resp *http.Response, err error) {
			defer func() {
				if rec := recover(); rec != nil {
					zctx.From(req.Context()).Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("url", req.URL.Redacted()),
						zap.Stack("stack"),
					)
					if resp != nil && resp.Body != nil {
						_ = resp.Body.Close()
					}
					resp, err = nil, &PanicError{Value: rec}
				}
			}()
			return next.RoundTrip(req)
		})
	}
}
