package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/storefront-sync/internal/remote"
	"github.com/xenking/storefront-sync/internal/storefront"
	"github.com/xenking/storefront-sync/pkg/health"
	"github.com/xenking/storefront-sync/pkg/roundtrip"
)

// Run builds the remote client and the storefront sync layer, keeps the
// storefront caches warm, serves the probe endpoints and handles graceful
// shutdown. It is the single wiring point for the daemon.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	ctx = zctx.Base(ctx, lg)
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("api", cfg.API.BaseURL),
	)

	metrics, err := storefront.NewMetrics(m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}

	// Outgoing chain: recover, tag, log, throttle, then trace the actual send.
	transport := roundtrip.Wrap(
		otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
		roundtrip.Recover(),
		roundtrip.RequestID(),
		roundtrip.Logging(),
		roundtrip.RateLimitWithCleanup(ctx, roundtrip.RateLimitConfig{
			Max:    cfg.API.RateLimit.Max,
			Window: cfg.API.RateLimit.Window,
		}),
	)
	api, err := remote.New(cfg.API.BaseURL,
		remote.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout, Transport: transport}),
		remote.WithDegraded(metrics.Degraded),
	)
	if err != nil {
		return errors.Wrap(err, "create api client")
	}

	client := storefront.New(
		storefront.Sources{Products: api, Taxonomy: api, Cart: api, Coupons: api},
		storefront.WithCache(cfg.Cache),
		storefront.WithRetry(cfg.Retry),
		storefront.WithMetrics(metrics),
		storefront.WithTracerProvider(m.TracerProvider()),
	)

	w := &warmer{
		client:   client,
		fresh:    new(health.Freshness),
		interval: cfg.Sync.Interval,
		now:      time.Now,
	}

	monitor := health.New()
	monitor.Add(health.Probe{
		Name:    "api",
		Kind:    health.Readiness,
		Timeout: cfg.API.Timeout,
		Check: func(ctx context.Context) error {
			_, err := api.ListBrands(ctx, true)
			return err
		},
	})
	monitor.Add(health.Probe{
		Name:  "sync",
		Kind:  health.Readiness,
		Check: w.fresh.Check(cfg.Sync.MaxAge, time.Now),
	})
	monitor.Add(health.Probe{
		Name:    "goroutines",
		Kind:    health.Liveness,
		Timeout: time.Second,
		Check:   health.Goroutines(10000),
	})

	go w.run(ctx)
	monitor.Start(ctx, 10*time.Second)
	monitor.SetReady(true)

	mux := http.NewServeMux()
	monitor.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           mux,
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		monitor.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down probe server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		monitor.Stop()
		client.Reset()
		close(shutdownDone)
	}()

	lg.Info("Probe server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
