// Package main is the entrypoint for the ContentPilot API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/contentpilot/internal/ai"
	"github.com/kiranshivaraju/contentpilot/internal/api"
	"github.com/kiranshivaraju/contentpilot/internal/api/handler"
	mw "github.com/kiranshivaraju/contentpilot/internal/api/middleware"
	"github.com/kiranshivaraju/contentpilot/internal/api/response"
	"github.com/kiranshivaraju/contentpilot/internal/cache"
	"github.com/kiranshivaraju/contentpilot/internal/config"
	"github.com/kiranshivaraju/contentpilot/internal/events"
	"github.com/kiranshivaraju/contentpilot/internal/generation"
	"github.com/kiranshivaraju/contentpilot/internal/media"
	"github.com/kiranshivaraju/contentpilot/internal/metrics"
	"github.com/kiranshivaraju/contentpilot/internal/planner"
	"github.com/kiranshivaraju/contentpilot/internal/poller"
	"github.com/kiranshivaraju/contentpilot/internal/publish"
	"github.com/kiranshivaraju/contentpilot/internal/pushlive"
	"github.com/kiranshivaraju/contentpilot/internal/recovery"
	"github.com/kiranshivaraju/contentpilot/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	migrationsDir   = "migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast when it is invalid
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, migrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 6. Events are optional
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		np, err := events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer np.Close()
		publisher = np
		slog.Info("nats connected", "subject_prefix", cfg.NATS.SubjectPrefix)
	}

	// 7. Domain services
	pgStore := store.NewPostgresStore(pool)
	m := metrics.New()

	gen := planner.NewGenerator(aiProvider, pgStore, cfg.AI.InferenceTimeout, cfg.AI.MaxTokens,
		planner.WithObserver(m))
	orchestrator := generation.New(pgStore, media.NewHTTPClient(cfg.Media),
		generation.WithCache(redisCache),
		generation.WithPublisher(publisher),
		generation.WithObserver(m),
		generation.WithSubmitTimeout(cfg.Media.SubmitTimeout),
	)
	coordinator := poller.NewCoordinator(
		poller.New(pgStore, cfg.Polling.Interval, cfg.Polling.MaxAttempts),
		poller.WithCache(redisCache),
		poller.WithPublisher(publisher),
		poller.WithObserver(m),
	)
	pusher := pushlive.New(pgStore, publish.NewHTTPClient(cfg.Publish),
		pushlive.WithPublisher(publisher),
		pushlive.WithObserver(m),
		pushlive.WithDefaultTimezone(cfg.Publish.DefaultTimezone),
	)
	sweeper := recovery.New(pgStore, recovery.WithPublisher(publisher), recovery.WithObserver(m))

	// 8. Build router with dependencies
	deps := api.Dependencies{
		Auth:         mw.NewAuth(pgStore),
		RateLimit:    mw.NewRateLimit(redisCache, cfg.RateLimit.PerMinute),
		HTTPObserver: m,

		HealthHandler:  healthHandler(pgStore, redisCache),
		MetricsHandler: m.Handler(),

		AssistantHandler:    handler.NewAssistantHandler(gen, pgStore),
		ListPlansHandler:    handler.NewListPlansHandler(pgStore),
		GetPlanHandler:      handler.NewGetPlanHandler(pgStore),
		ReplaceItemsHandler: handler.NewReplaceItemsHandler(pgStore),
		ResetPlansHandler:   handler.NewResetPlansHandler(pgStore),
		GenerateHandler:     handler.NewGenerateHandler(pgStore, orchestrator, coordinator),
		WatchStatusHandler:  handler.NewWatchStatusHandler(pgStore, coordinator, redisCache),
		WatchStartHandler:   handler.NewWatchStartHandler(pgStore, coordinator),
		WatchCancelHandler:  handler.NewWatchCancelHandler(pgStore, coordinator),
		PushLiveHandler:     handler.NewPushLiveHandler(pgStore, pusher),

		PurgeHandler:     handler.NewPurgeHandler(sweeper),
		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout, // covers sync media generation
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := drain(shutdownCtx, srv, coordinator, orchestrator); err != nil {
		return err
	}
	slog.Info("server stopped gracefully")
	return nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type waiter interface {
	Wait(ctx context.Context) error
}

// drain stops the HTTP server, then the poll watches, then waits for async
// submissions. Every step runs even if an earlier one fails; only the server
// error is returned.
func drain(ctx context.Context, srv, watches shutdowner, submissions waiter) error {
	srvErr := srv.Shutdown(ctx)
	if srvErr != nil {
		slog.Error("http server did not shut down cleanly", "error", srvErr)
	}
	if err := watches.Shutdown(ctx); err != nil {
		slog.Warn("poll watches did not stop in time", "error", err)
	}
	if err := submissions.Wait(ctx); err != nil {
		slog.Warn("async submissions still running at shutdown", "error", err)
	}
	if srvErr != nil {
		return fmt.Errorf("server shutdown: %w", srvErr)
	}
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database and cache connectivity.
func healthHandler(db, c pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
