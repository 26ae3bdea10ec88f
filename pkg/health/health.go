// Package health tracks liveness and readiness of the sync daemon.
//
// Every probe runs in its own goroutine. A probe flips to unhealthy only after
// FailureThreshold consecutive failures and back after SuccessThreshold
// consecutive successes, so a single slow upstream call does not flap the
// readiness endpoint.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the endpoint a probe contributes to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

func (k Kind) String() string {
	if k == Readiness {
		return "readiness"
	}
	return "liveness"
}

// Probe describes a single periodic check.
type Probe struct {
	Name  string
	Kind  Kind
	Check CheckFunc

	// Timeout bounds one run of Check. Defaults to 5s.
	Timeout time.Duration
	// FailureThreshold defaults to 3.
	FailureThreshold int
	// SuccessThreshold defaults to 1.
	SuccessThreshold int
}

func (p Probe) withDefaults() Probe {
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Second
	}
	if p.FailureThreshold <= 0 {
		p.FailureThreshold = 3
	}
	if p.SuccessThreshold <= 0 {
		p.SuccessThreshold = 1
	}
	return p
}

// probe is the runtime state of a Probe. The counters are owned by the single
// goroutine calling run; healthy, lastErr and checkedAt are read by handlers.
type probe struct {
	Probe

	healthy   atomic.Bool
	lastErr   atomic.Pointer[error]
	checkedAt atomic.Int64

	fails int
	oks   int
}

func (p *probe) err() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

func (p *probe) run(ctx context.Context, now time.Time) {
	checkCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	err := p.Check(checkCtx)
	p.lastErr.Store(&err)
	p.checkedAt.Store(now.UnixNano())

	was := p.healthy.Load()
	if err != nil {
		p.oks = 0
		p.fails++
		if p.fails >= p.FailureThreshold {
			p.healthy.Store(false)
		}
	} else {
		p.fails = 0
		p.oks++
		if p.oks >= p.SuccessThreshold {
			p.healthy.Store(true)
		}
	}

	if is := p.healthy.Load(); is != was {
		lg := zctx.From(ctx).With(zap.String("probe", p.Name), zap.Stringer("kind", p.Kind))
		if is {
			lg.Info("Probe recovered")
		} else {
			lg.Warn("Probe failing", zap.Error(err), zap.Int("failures", p.fails))
		}
	}
}

// Monitor runs probes and serves their aggregated state.
type Monitor struct {
	ready atomic.Bool
	now   func() time.Time

	mu     sync.RWMutex
	probes []*probe
	cancel context.CancelFunc
}

// New creates a Monitor. It reports not ready until SetReady(true).
func New() *Monitor {
	return &Monitor{now: time.Now}
}

// Add registers a probe. Probes start healthy and must be added before Start.
func (m *Monitor) Add(p Probe) {
	pr := &probe{Probe: p.withDefaults()}
	pr.healthy.Store(true)

	m.mu.Lock()
	m.probes = append(m.probes, pr)
	m.mu.Unlock()
}

// Start runs every probe immediately and then on each interval tick until
// Stop is called or ctx is done.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancel = cancel
	probes := append([]*probe(nil), m.probes...)
	m.mu.Unlock()

	for _, p := range probes {
		go m.loop(ctx, p, interval)
	}
}

func (m *Monitor) loop(ctx context.Context, p *probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.run(ctx, m.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx, m.now())
		}
	}
}

// Stop cancels the probe goroutines. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// SetReady toggles the manual readiness gate, e.g. to drain on shutdown.
func (m *Monitor) SetReady(ready bool) {
	m.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness probe passes.
func (m *Monitor) IsReady() bool {
	if !m.ready.Load() {
		return false
	}
	for _, p := range m.snapshot(Readiness) {
		if !p.healthy.Load() {
			return false
		}
	}
	return true
}

func (m *Monitor) snapshot(kind Kind) []*probe {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*probe
	for _, p := range m.probes {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Register mounts /livez and /readyz on mux.
func (m *Monitor) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /livez", m.Live)
	mux.HandleFunc("GET /readyz", m.Ready)
}

// Live answers 200 when every liveness probe passes and 503 otherwise.
func (m *Monitor) Live(w http.ResponseWriter, _ *http.Request) {
	m.write(w, m.snapshot(Liveness), "")
}

// Ready answers 200 when IsReady holds and 503 otherwise.
func (m *Monitor) Ready(w http.ResponseWriter, _ *http.Request) {
	gate := ""
	if !m.ready.Load() {
		gate = "service is not ready"
	}
	m.write(w, m.snapshot(Readiness), gate)
}

// write renders
//
//	{"status":"ok|unhealthy","checks":{"<name>":{"error":"...","checked_at":"..."}}}
//
// listing only failing probes.
func (m *Monitor) write(w http.ResponseWriter, probes []*probe, gate string) {
	var failing []*probe
	for _, p := range probes {
		if !p.healthy.Load() {
			failing = append(failing, p)
		}
	}
	healthy := len(failing) == 0 && gate == ""

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) {
			if healthy {
				e.Str("ok")
			} else {
				e.Str("unhealthy")
			}
		})
		if healthy {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				if gate != "" {
					e.Field("_readiness", func(e *jx.Encoder) {
						e.Obj(func(e *jx.Encoder) {
							e.Field("error", func(e *jx.Encoder) { e.Str(gate) })
						})
					})
				}
				for _, p := range failing {
					e.Field(p.Name, func(e *jx.Encoder) { encodeFailure(e, p) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write(e.Bytes())
}

func encodeFailure(e *jx.Encoder, p *probe) {
	e.Obj(func(e *jx.Encoder) {
		msg := "check is unhealthy"
		if err := p.err(); err != nil {
			msg = err.Error()
		}
		e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
		if ns := p.checkedAt.Load(); ns != 0 {
			e.Field("checked_at", func(e *jx.Encoder) {
				e.Str(time.Unix(0, ns).UTC().Format(time.RFC3339))
			})
		}
	})
}
