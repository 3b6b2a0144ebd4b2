package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/recoverfleet/drsorch/internal/adapter/drsbackend"
	drshttp "github.com/recoverfleet/drsorch/internal/adapter/http"
	drsnats "github.com/recoverfleet/drsorch/internal/adapter/nats"
	"github.com/recoverfleet/drsorch/internal/adapter/natskv"
	drsotel "github.com/recoverfleet/drsorch/internal/adapter/otel"
	"github.com/recoverfleet/drsorch/internal/adapter/postgres"
	"github.com/recoverfleet/drsorch/internal/adapter/ristretto"
	"github.com/recoverfleet/drsorch/internal/adapter/tiered"
	"github.com/recoverfleet/drsorch/internal/adapter/ws"
	"github.com/recoverfleet/drsorch/internal/config"
	"github.com/recoverfleet/drsorch/internal/domain/execution"
	"github.com/recoverfleet/drsorch/internal/logger"
	"github.com/recoverfleet/drsorch/internal/middleware"
	"github.com/recoverfleet/drsorch/internal/port/cache"
	"github.com/recoverfleet/drsorch/internal/resilience"
	"github.com/recoverfleet/drsorch/internal/secrets"
	"github.com/recoverfleet/drsorch/internal/service"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLogger := logger.New(cfg.Logging)
	defer closeLogger.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"backend", cfg.Backend.URL,
		"poll_interval", cfg.Monitor.PollInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownTelemetry, err := drsotel.Init(ctx, cfg.Telemetry, cfg.Logging.Service, version)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("postgres ready")

	// NATS JetStream
	queue, err := drsnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// Job-log cache: in-process ristretto L1 backed by a NATS KV L2, so a
	// restart does not refetch every job log at once.
	jobLogCache, err := newJobLogCache(ctx, queue, cfg.Monitor)
	if err != nil {
		return fmt.Errorf("job log cache: %w", err)
	}

	// DRS backend. The API key comes from a reloadable vault so it can be
	// rotated with SIGHUP instead of a restart.
	vault, err := secrets.NewVault(secrets.EnvLoader("DRSORCH_BACKEND_API_KEY"))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	go reloadOnSIGHUP(ctx, vault)

	backend := drsbackend.NewClient(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.Timeout)
	backend.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	backend.SetKeySource(func() string { return vault.Get("DRSORCH_BACKEND_API_KEY") })

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewStore(pool)

	metrics, err := drsotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	estimator := execution.Estimator{FailedWaveCredit: cfg.Recovery.FailedWaveCredit}
	controller := execution.Controller{DisallowCancelOnFinalWave: cfg.Recovery.DisallowCancelOnFinalWave}

	planSvc := service.NewPlanService(store, cfg.Recovery.MaxServersPerWave)
	monitorSvc := service.NewMonitorService(backend, jobLogCache, queue, hub, estimator, cfg.Monitor)
	monitorSvc.SetMetrics(metrics)
	commandSvc := service.NewCommandService(backend, store, queue, monitorSvc, controller)
	commandSvc.SetMetrics(metrics)
	terminationSvc := service.NewTerminationService(backend, queue, hub, monitorSvc, controller)

	monitorSvc.Start(ctx)

	// --- HTTP ---
	handlers := &drshttp.Handlers{
		Plans:       planSvc,
		Monitor:     monitorSvc,
		Commands:    commandSvc,
		Termination: terminationSvc,
		Hub:         hub,
		Queue:       queue,
	}

	limiter := middleware.NewRateLimiter(10, 20)
	defer limiter.StartCleanup(time.Minute, 10*time.Minute)()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(drshttp.Logger)
	r.Use(drshttp.SecurityHeaders)
	r.Use(drshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(drsotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(limiter.Handler)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	drshttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := queue.Drain(); err != nil {
		slog.Warn("nats drain", "error", err)
	}
	return nil
}

// reloadOnSIGHUP re-reads secrets whenever the process receives SIGHUP.
func reloadOnSIGHUP(ctx context.Context, vault *secrets.Vault) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := vault.Reload(); err != nil {
				slog.Warn("secret reload failed", "error", err)
				continue
			}
			slog.Info("secrets reloaded")
		}
	}
}

// newJobLogCache builds the two-tier job-log cache. L2 failures are not
// fatal: without the KV bucket the monitor just runs on the in-process tier.
func newJobLogCache(ctx context.Context, queue *drsnats.Queue, cfg config.Monitor) (cache.Cache, error) {
	l1, err := ristretto.New(cfg.CacheSizeMB << 20)
	if err != nil {
		return nil, err
	}

	kv, err := queue.KeyValue(ctx, "joblogs", cfg.JobLogCacheTTL)
	if err != nil {
		slog.Warn("nats kv unavailable, job-log cache is in-process only", "error", err)
		return l1, nil
	}
	return tiered.New(l1, natskv.New(kv), cfg.JobLogCacheTTL), nil
}
