package monitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doc-johnson/xray-reality-vpn/internal/adapters/accesslog"
	"github.com/doc-johnson/xray-reality-vpn/internal/adapters/counter"
	"github.com/doc-johnson/xray-reality-vpn/internal/adapters/observability"
	"github.com/doc-johnson/xray-reality-vpn/internal/adapters/registry"
	"github.com/doc-johnson/xray-reality-vpn/internal/adapters/store"
	"github.com/doc-johnson/xray-reality-vpn/internal/app/pipeline"
	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	registry      Registry
	counter       CounterSource
	log           LogSource
	store         ArtifactStore
	observability Observability
	now           func() time.Time
}

// WithRegistry replaces the configured identity registry.
func WithRegistry(r Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = r
	}
}

// WithCounterSource replaces the relay stats client.
func WithCounterSource(c CounterSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.counter = c
	}
}

// WithLogSource replaces the access log reader.
func WithLogSource(l LogSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.log = l
	}
}

// WithStore replaces the file store, e.g. to publish somewhere other than disk.
func WithStore(s ArtifactStore) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.store = s
	}
}

// WithObservability plugs in a custom logging and metrics backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithClock sets the clock a pass reads its run time from.
func WithClock(now func() time.Time) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.now = now
	}
}

// Runtime runs reconciliation passes against the configured relay, either
// once or on a fixed interval.
type Runtime struct {
	cfg      *Config
	deps     pipeline.Deps
	closers  []io.Closer
	db       *sql.DB
	running  atomic.Bool
	lastPass atomic.Int64
	wg       sync.WaitGroup

	metricsSrv *http.Server
}

// NewRuntime bootstraps the default adapters for cfg. Any of them can be
// replaced with a RuntimeOption.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	rt := &Runtime{cfg: cfg}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs(nil, observability.NewLogger(os.Stderr, cfg.Logging.Level))
	}

	reg := overrides.registry
	if reg == nil {
		var err error
		reg, err = rt.defaultRegistry(obs)
		if err != nil {
			return nil, err
		}
	}

	src := overrides.counter
	if src == nil {
		switch cfg.Counter.Kind {
		case "cli":
			src = counter.NewCLISource(cfg.Counter.Binary, cfg.Counter.Addr, cfg.Counter.Pattern)
		default:
			g, err := counter.DialGRPC(cfg.Counter.Addr, cfg.Counter.Pattern)
			if err != nil {
				_ = rt.Close()
				return nil, err
			}
			rt.closers = append(rt.closers, g)
			src = g
		}
	}

	logSrc := overrides.log
	if logSrc == nil {
		loc, err := cfg.LogLocation()
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("log location: %w", err)
		}
		logSrc = accesslog.NewFileLog(cfg.Log.Path, loc, cfg.Log.MaxLineBytes)
	}

	st := overrides.store
	if st == nil {
		st = store.NewFileStore(cfg.ArtifactPaths())
	}

	now := overrides.now
	if now == nil {
		now = time.Now
	}

	rt.deps = pipeline.Deps{
		Registry: reg,
		Counter:  src,
		Log:      logSrc,
		Store:    st,
		Obs:      obs,
		Now:      now,
	}
	return rt, nil
}

func (r *Runtime) defaultRegistry(obs Observability) (Registry, error) {
	switch r.cfg.Registry.Kind {
	case "", "file":
		return registry.NewFileRegistry(r.cfg.Registry.Path, obs), nil
	case "xray_config":
		return registry.NewXrayConfigRegistry(r.cfg.Registry.Path), nil
	case "postgres":
		db, err := sql.Open("postgres", r.cfg.Registry.ConnString)
		if err != nil {
			return nil, fmt.Errorf("open registry database: %w", err)
		}
		r.db = db
		return registry.NewPostgresRegistry(db, r.cfg.Registry.Table), nil
	default:
		return nil, fmt.Errorf("registry.kind %q: %w", r.cfg.Registry.Kind, domain.ErrUnknownRegistry)
	}
}

// RunOnce runs a single reconciliation pass.
func (r *Runtime) RunOnce(ctx context.Context) (*Report, error) {
	rep, err := pipeline.RunPass(ctx, r.deps, r.cfg.Policy)
	if rep != nil {
		r.lastPass.Store(rep.At.Unix())
	}
	return rep, err
}

// ResetTotals zeroes the stored traffic totals of one identity.
func (r *Runtime) ResetTotals(ctx context.Context, name string) error {
	return pipeline.ResetTotals(ctx, r.deps.Store, r.deps.Obs, name, r.cfg.Policy.LockTimeout)
}

// Run serves metrics and runs a pass every schedule interval until ctx is
// cancelled. A tick that arrives while a pass is still running is dropped.
func (r *Runtime) Run(ctx context.Context) error {
	interval := r.cfg.Schedule.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	r.startMetrics()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return r.Shutdown(shutdownCtx)
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runtime) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !r.running.CompareAndSwap(false, true) {
		r.deps.Obs.LogInfo("pass_skipped_overlap")
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Store(false)
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.deps.Obs.LogError("pass_failed", err)
		}
	}()
}

// Handler exposes /metrics and /healthz. Health turns unavailable once no
// pass has completed for three intervals.
func (r *Runtime) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		last := r.lastPass.Load()
		interval := r.cfg.Schedule.Interval
		if interval <= 0 {
			interval = time.Minute
		}
		if last != 0 && time.Since(time.Unix(last, 0)) > 3*interval {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("stale"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return router
}

func (r *Runtime) startMetrics() {
	if r.cfg.Metrics.Addr == "" || r.cfg.Metrics.Addr == "off" {
		return
	}
	r.metricsSrv = &http.Server{
		Addr:              r.cfg.Metrics.Addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.deps.Obs.LogError("metrics_server_exited", err)
		}
	}()
}

// Shutdown stops the metrics server and releases adapter connections.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if err := r.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases the relay API connection and registry database.
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
		r.db = nil
	}
	return errors.Join(errs...)
}
