// Command worker runs a Conduit pipeline worker: it registers the
// built-in pipelines and step contracts with the engine, serves runs
// until interrupted, and drains gracefully on SIGINT/SIGTERM.
//
// Configuration comes from the environment; see conduit.ConfigFromEnv.
// The audit backend is selected with AUDIT_BACKEND (memory, redis, or
// postgres) plus AUDIT_REDIS_ADDR or AUDIT_POSTGRES_DSN.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/audit"
	"github.com/xraph/conduit/audit/pgrecorder"
	"github.com/xraph/conduit/audit/redisrecorder"
	"github.com/xraph/conduit/driver"
	"github.com/xraph/conduit/engine/local"
	"github.com/xraph/conduit/ext"
	"github.com/xraph/conduit/middleware"
	"github.com/xraph/conduit/observability"
	"github.com/xraph/conduit/pipeline"
	"github.com/xraph/conduit/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("worker exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := conduit.ConfigFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder, cleanup, err := newRecorder(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	extensions := ext.NewRegistry(logger)
	extensions.Register(audit.New(recorder, audit.WithLogger(logger)))
	extensions.Register(observability.NewMetricsExtension())

	eng := local.New(
		local.WithLogger(logger),
		local.WithMaxConcurrentSteps(cfg.MaxConcurrentSteps),
	)
	pipeline.RegisterHandlers(eng)

	drv := driver.New(eng, pipeline.Contracts(),
		driver.WithLogger(logger),
		driver.WithEmitter(extensions),
		driver.WithMiddleware(
			middleware.Logging(logger),
			middleware.Tracing(),
			middleware.Metrics(),
			middleware.Recovery(),
		),
	)

	w := worker.New(eng, drv, pipeline.Defaults(),
		worker.WithConfig(cfg),
		worker.WithExtensions(extensions),
		worker.WithLogger(logger),
	)
	if err := w.Start(ctx); err != nil {
		return err
	}

	logger.Info("worker running",
		slog.String("engine_address", cfg.EngineAddress),
		slog.String("task_queue", cfg.TaskQueue),
		slog.String("build_id", cfg.BuildID),
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return w.Stop(stopCtx)
}

// newRecorder selects the audit backend from the environment.
func newRecorder(ctx context.Context, logger *slog.Logger) (audit.Recorder, func(), error) {
	switch backend := os.Getenv("AUDIT_BACKEND"); backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: envOr("AUDIT_REDIS_ADDR", "localhost:6379"),
		})
		logger.Info("audit backend: redis")
		return redisrecorder.New(client), func() { _ = client.Close() }, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, os.Getenv("AUDIT_POSTGRES_DSN"))
		if err != nil {
			return nil, nil, err
		}
		rec := pgrecorder.New(pool)
		if err := rec.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("audit backend: postgres")
		return rec, pool.Close, nil

	default:
		logger.Info("audit backend: memory")
		return audit.NewMemoryRecorder(), func() {}, nil
	}
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
