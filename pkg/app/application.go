package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"medbook/pkg/config"
	"medbook/pkg/contracts"
	"medbook/pkg/metrics"
	"medbook/pkg/middleware"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"
)

// Runner is a background loop owned by the application. It must return when
// ctx is cancelled.
type Runner func(ctx context.Context) error

type namedRunner struct {
	name string
	run  Runner
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore middleware.IdempotencyStore
	rateLimiter      *middleware.KeyRateLimiter
	healthHandler    http.Handler
	appHttpHandler   http.Handler
	runners          []namedRunner
}

func NewApplication(cfg *config.Config) *Application {
	metrics.Register()
	return &Application{cfg: cfg}
}

// SetApp wires the public API: health endpoints with minimal middleware,
// the application routes behind the full stack, and /metrics.
func (a *Application) SetApp(health contracts.Handler, appHandler contracts.Handler) {
	a.setHealthHandler(health)
	a.setAppHandler(appHandler)
	a.setServer(a.cfg.Port, a.appHttpHandler)
}

// SetHealthOnly serves health and metrics on the metrics port. Used by
// processes without a public API.
func (a *Application) SetHealthOnly(health contracts.Handler) {
	a.setHealthHandler(health)
	a.setServer(a.cfg.MetricsPort, nil)
}

// AddRunner registers a background loop started by Run.
func (a *Application) AddRunner(name string, run Runner) {
	a.runners = append(a.runners, namedRunner{name: name, run: run})
}

func (a *Application) setHealthHandler(health contracts.Handler) {
	healthRouter := httprouter.New()
	health.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Debug("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(appHandler contracts.Handler) {
	appRouter := httprouter.New()
	appHandler.RegisterRoutes(appRouter)

	if a.cfg.Client.Redis != nil {
		a.idempotencyStore = middleware.NewRedisIdempotencyStore(a.cfg.Client.Redis, a.cfg.IdempotencyTTL, a.cfg.Log)
	} else {
		a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	}
	a.rateLimiter = middleware.NewKeyRateLimiter(
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		middleware.DefaultKeyExtractor,
		a.cfg.Log,
	)

	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore, middleware.IdempotencyKeyHeader, a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.RateLimit(a.rateLimiter)(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(a.cfg.RequestTimeout)(appHttpHandler)
	appHttpHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Recovery(a.cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	a.cfg.Log.Debug("Application endpoints configured with full middleware stack")
}

func (a *Application) setServer(port string, appHandler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	if appHandler != nil {
		mux.Handle("/", appHandler)
	}

	a.server = &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", port)
}

// Run blocks until SIGINT/SIGTERM or until the server or a runner fails,
// then shuts everything down.
func (a *Application) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx); err != nil {
		a.cfg.Log.Fatal("Application failed", "error", err)
	}
	a.cfg.Log.Info("Application stopped gracefully")
}

func (a *Application) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.cfg.Log.Info("Shutting down HTTP server")
			return a.shutdownServer()
		})
	}

	for _, r := range a.runners {
		r := r
		g.Go(func() error {
			a.cfg.Log.Info("Starting background runner", "runner", r.name)
			err := r.run(gctx)
			a.cfg.Log.Info("Background runner stopped", "runner", r.name, "error", err)
			return err
		})
	}

	err := g.Wait()
	a.stopBackground()
	return err
}

func (a *Application) shutdownServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		return a.server.Close()
	}
	return nil
}

func (a *Application) stopBackground() {
	if a.idempotencyStore != nil {
		a.idempotencyStore.Stop()
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
}
