package roundtrip

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Logging logs every request at Debug and every failure or non-2xx response
// at Warn, using the logger carried by the request context.
func Logging() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)

			lg := zctx.From(req.Context()).With(
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Duration("duration", time.Since(start)),
			)
			if id := req.Header.Get(HeaderRequestID); id != "" {
				lg = lg.With(zap.String("request_id", id))
			}

			switch {
			case err != nil:
				lg.Warn("Request failed", zap.Error(err))
			case resp.StatusCode >= 300:
				lg.Warn("Request rejected", zap.Int("status", resp.StatusCode))
			default:
				lg.Debug("Request done", zap.Int("status", resp.StatusCode))
			}
			return resp, err
		})
	}
}
