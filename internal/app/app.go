// Package app wires the registry, event bus, command handlers, generator and
// HTTP surface into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"simguard/internal/commands"
	"simguard/internal/config"
	"simguard/internal/generator"
	"simguard/internal/handlers"
	"simguard/internal/metrics"
	"simguard/internal/policy"
	"simguard/internal/registry"
	"simguard/pkg/realtime"
)

const (
	requestTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// App is a fully wired service instance.
type App struct {
	cfg       config.Config
	log       *slog.Logger
	store     *registry.Store
	bus       *realtime.Broadcaster
	commands  *commands.Handler
	generator *generator.Generator
	router    chi.Router
}

// Option customises New.
type Option func(*options)

type options struct {
	registry prometheus.Registerer
	gatherer prometheus.Gatherer
	policy   policy.Policy
}

// WithRegistry registers metrics with reg and serves them from /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
		o.gatherer = reg
	}
}

// WithPolicy replaces the random policy.
func WithPolicy(p policy.Policy) Option {
	return func(o *options) { o.policy = p }
}

// New builds the service from cfg. The only failure is an unreadable or
// invalid seed file.
func New(cfg config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	o := options{
		registry: prometheus.DefaultRegisterer,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if o.policy == nil {
		o.policy = policy.NewRandom(cfg.Generator.Seed)
	}

	seed, err := registry.LoadSeed(cfg.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}

	m := metrics.MustNewMetrics(o.registry)
	store := registry.NewStore(seed)
	bus := realtime.NewBroadcaster(
		realtime.WithQueueSize(cfg.Bus.QueueSize),
		realtime.WithPingInterval(cfg.WS.PingInterval),
		realtime.WithWriteTimeout(cfg.WS.WriteTimeout),
		realtime.WithLogger(log.With("component", "bus")),
		realtime.WithObserver(m),
	)
	cmds := commands.NewHandler(commands.Dependencies{
		Store:     store,
		Publisher: bus,
		Policy:    o.policy,
		Recorder:  m,
		Logger:    log.With("component", "commands"),
	})

	a := &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		bus:      bus,
		commands: cmds,
	}

	var trigger func()
	if cfg.Generator.Enabled {
		a.generator = generator.New(cmds, o.policy, generator.Config{
			MinInterval: cfg.Generator.MinInterval,
			MaxInterval: cfg.Generator.MaxInterval,
		}, generator.WithRecorder(m), generator.WithLogger(log.With("component", "generator")))
		trigger = a.generator.Trigger
	}

	a.router = a.routes(trigger, o.gatherer)
	return a, nil
}

func (a *App) routes(trigger func(), gatherer prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	// Long-lived streams stay outside the request timeout.
	handlers.NewLiveHandler(a.bus, a.store, a.cfg.WS.WriteTimeout, a.cfg.WS.PingInterval, a.log.With("component", "live")).RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		handlers.NewHomeHandler(a.store).RegisterRoutes(r)
		handlers.NewAPIHandler(a.commands, a.bus, trigger, a.log.With("component", "api")).RegisterRoutes(r)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	})
	return r
}

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run serves HTTP on the configured address and runs the generator until
// ctx is cancelled, then shuts both down.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.HTTP.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       a.cfg.HTTP.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Streams only end once their subscribers are gone.
		a.bus.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	if a.generator != nil {
		g.Go(func() error {
			return a.generator.Run(gctx)
		})
	}

	err := g.Wait()
	a.log.Info("stopped")
	return err
}
