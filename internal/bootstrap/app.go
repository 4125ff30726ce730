// Package bootstrap wires the process-wide dependencies shared by the api
// and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/infrastructure/config"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/edi-gateway/internal/infrastructure/redis"
	"github.com/cassiomorais/edi-gateway/internal/repository/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const tracerFlushTimeout = 5 * time.Second

type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	// Metrics is nil when observability.enable_metrics is off.
	Metrics *observability.Metrics

	tracer *sdktrace.TracerProvider
}

// New loads configuration and connects to PostgreSQL and Redis. Tracing is
// best effort: a collector that cannot be reached only costs the spans.
func New(ctx context.Context, serviceName string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	obs := cfg.Observability
	logger := observability.InitLogger(obs.LogLevel, obs.LogFormat, os.Stdout).
		With().Str("service", serviceName).Str("instance", cfg.InstanceID).Logger()
	observability.SetGlobal(logger)

	app := &App{Config: cfg, Logger: logger}

	if obs.EnableTracing {
		app.tracer, err = observability.InitTracer(serviceName, obs.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		}
	}
	if obs.EnableMetrics {
		app.Metrics = observability.NewMetrics(obs.MetricsPrefix, nil)
	}

	app.Pool, err = postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	app.Redis, err = infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info().
		Str("environment", os.Getenv("ENV")).
		Bool("tracing", app.tracer != nil).
		Bool("metrics", app.Metrics != nil).
		Msg("Connected to PostgreSQL and Redis")
	return app, nil
}

// Close releases whatever New managed to open and flushes pending spans.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), tracerFlushTimeout)
		defer cancel()
		observability.Shutdown(ctx, a.tracer)
	}
}
