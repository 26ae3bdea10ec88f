// Package remote is the HTTP client for the storefront backend. It implements
// the product, taxonomy, cart and coupon sources.
package remote

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 8 << 20

// DegradedFunc is notified when a payload had to be repaired, e.g. a
// collection that was not an array.
type DegradedFunc func(ctx context.Context, family, kind string)

// Client talks to the backend REST API. Every response is wrapped in an
// envelope of the form {"data": ..., "message": ...}.
type Client struct {
	base     *url.URL
	http     *http.Client
	degraded DegradedFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. The transport of hc is
// used as is; wrap it with otelhttp yourself if you need traces.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDegraded registers the callback for repaired payloads.
func WithDegraded(fn DegradedFunc) Option {
	return func(c *Client) { c.degraded = fn }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base: u,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		degraded: func(context.Context, string, string) {},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// request describes one API call.
type request struct {
	method   string
	path     string
	query    url.Values
	body     func(e *jx.Encoder)
	notFound error
}

// do executes r and returns the raw "data" member of the envelope. A missing
// data member yields a nil Raw.
func (c *Client) do(ctx context.Context, r request) (jx.Raw, error) {
	u := *c.base
	u.Path = c.base.Path + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		var e jx.Encoder
		r.body(&e)
		body = bytes.NewReader(e.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", r.method, r.path)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	data, message, decodeErr := decodeEnvelope(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr != nil {
			message = ""
		}
		return nil, newAPIError(resp.StatusCode, message, r.notFound)
	}
	if decodeErr != nil {
		return nil, errors.Wrapf(decodeErr, "decode %s", r.path)
	}
	return data, nil
}

// decodeEnvelope extracts the data member and the message of a response. An
// empty body is a valid envelope with neither.
func decodeEnvelope(raw []byte) (data jx.Raw, message string, err error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, "", nil
	}
	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return nil, "", errors.New("envelope is not an object")
	}
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "data":
			v, err := d.Raw()
			if err != nil {
				return errors.Wrap(err, "data")
			}
			data = v
			return nil
		case "message":
			if d.Next() != jx.String {
				return d.Skip()
			}
			message, err = d.Str()
			return err
		default:
			return d.Skip()
		}
	})
	return data, message, err
}

// decodeList decodes data as an array of T. Anything other than an array
// (including null or a missing member) yields an empty slice and is reported
// as a degraded payload.
func decodeList[T any](ctx context.Context, c *Client, family string, data jx.Raw, item func(*jx.Decoder) (T, error)) ([]T, error) {
	out := []T{}
	if data.Type() != jx.Array {
		c.degrade(ctx, family, "not_array")
		return out, nil
	}
	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		v, err := item(d)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "decode %s", family)
	}
	return out, nil
}

// decodeOne decodes data as a single T.
func decodeOne[T any](family string, data jx.Raw, item func(*jx.Decoder) (T, error)) (T, error) {
	var zero T
	if data.Type() != jx.Object {
		return zero, errors.Errorf("decode %s: expected object, got %s", family, data.Type())
	}
	v, err := item(jx.DecodeBytes(data))
	if err != nil {
		return zero, errors.Wrapf(err, "decode %s", family)
	}
	return v, nil
}

func (c *Client) degrade(ctx context.Context, family, kind string) {
	zctx.From(ctx).Warn("Degraded payload",
		zap.String("family", family),
		zap.String("kind", kind),
	)
	c.degraded(ctx, family, kind)
}
