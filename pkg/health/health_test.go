package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

type response struct {
	Status string
	Checks map[string]string
}

func serve(t *testing.T, h http.HandlerFunc) (int, response) {
	t.Helper()
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp response
	d := jx.DecodeBytes(w.Body.Bytes())
	require.NoError(t, d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "status":
			s, err := d.Str()
			resp.Status = s
			return err
		case "checks":
			resp.Checks = map[string]string{}
			return d.ObjBytes(func(d *jx.Decoder, name []byte) error {
				return d.ObjBytes(func(d *jx.Decoder, field []byte) error {
					if string(field) != "error" {
						return d.Skip()
					}
					s, err := d.Str()
					resp.Checks[string(name)] = s
					return err
				})
			})
		default:
			return d.Skip()
		}
	}))
	return w.Code, resp
}

func runN(m *Monitor, idx, n int) {
	for range n {
		m.probes[idx].run(context.Background(), epoch)
	}
}

func TestLive_AllPassing(t *testing.T) {
	m := New()
	m.Add(Probe{Name: "a", Check: passing()})
	m.Add(Probe{Name: "b", Check: passing()})

	code, resp := serve(t, m.Live)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestLive_FailingProbe(t *testing.T) {
	m := New()
	m.Add(Probe{Name: "goroutines", Check: failing("too many")})

	runN(m, 0, 2)
	code, _ := serve(t, m.Live)
	assert.Equal(t, http.StatusOK, code, "below failure threshold")

	runN(m, 0, 1)
	code, resp := serve(t, m.Live)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "too many", resp.Checks["goroutines"])
}

func TestProbe_CustomThresholds(t *testing.T) {
	down := true
	m := New()
	m.Add(Probe{
		Name:             "upstream",
		Kind:             Readiness,
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Check: func(context.Context) error {
			if down {
				return errors.New("down")
			}
			return nil
		},
	})
	m.SetReady(true)

	runN(m, 0, 1)
	assert.False(t, m.IsReady())

	down = false
	runN(m, 0, 1)
	assert.False(t, m.IsReady(), "one success is below threshold")
	runN(m, 0, 1)
	assert.True(t, m.IsReady())
}

func TestReady_Gate(t *testing.T) {
	m := New()
	m.Add(Probe{Name: "upstream", Kind: Readiness, Check: passing()})

	code, resp := serve(t, m.Ready)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, resp.Checks, "_readiness")

	m.SetReady(true)
	code, _ = serve(t, m.Ready)
	assert.Equal(t, http.StatusOK, code)

	m.SetReady(false)
	code, _ = serve(t, m.Ready)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReady_OnlyFailingListed(t *testing.T) {
	m := New()
	m.Add(Probe{Name: "sync", Kind: Readiness, Check: passing()})
	m.Add(Probe{Name: "upstream", Kind: Readiness, Check: failing("connection refused")})
	m.Add(Probe{Name: "goroutines", Kind: Liveness, Check: failing("ignored")})
	m.SetReady(true)

	runN(m, 1, 3)
	runN(m, 2, 3)

	code, resp := serve(t, m.Ready)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"upstream": "connection refused"}, resp.Checks)
}

func TestRegister(t *testing.T) {
	m := New()
	m.SetReady(true)
	mux := http.NewServeMux()
	m.Register(mux)

	for _, path := range []string{"/livez", "/readyz"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestStartStop(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	m := New()
	m.Add(Probe{Name: "count", Check: func(context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	}})

	m.Start(t.Context(), time.Hour)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs == 1
	}, time.Second, 5*time.Millisecond, "probe runs immediately on start")

	m.Stop()
	m.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	m := New()
	m.Add(Probe{Name: "live", Check: failing("err")})
	m.Add(Probe{Name: "ready", Kind: Readiness, Check: passing()})
	m.SetReady(true)
	m.Start(t.Context(), time.Millisecond)
	defer m.Stop()

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 50 {
				m.IsReady()
				m.Live(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				m.Ready(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		})
	}
	wg.Wait()
}

func TestGoroutines(t *testing.T) {
	assert.NoError(t, Goroutines(100000)(context.Background()))
	assert.ErrorContains(t, Goroutines(0)(context.Background()), "exceeds")
}

func TestFreshness(t *testing.T) {
	var f Freshness
	now := epoch
	check := f.Check(time.Minute, func() time.Time { return now })

	assert.ErrorContains(t, check(context.Background()), "no successful sync")
	assert.True(t, f.Last().IsZero())

	f.Mark(epoch.Add(-30 * time.Second))
	assert.NoError(t, check(context.Background()))
	assert.True(t, f.Last().Equal(epoch.Add(-30*time.Second)))

	now = epoch.Add(2 * time.Minute)
	assert.ErrorContains(t, check(context.Background()), "exceeds 1m0s")
}
