package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/bootstrap"
	"github.com/cassiomorais/edi-gateway/internal/domain/outbox"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/edi-gateway/internal/infrastructure/redis"
	"github.com/cassiomorais/edi-gateway/internal/repository/postgres"
	"github.com/cassiomorais/edi-gateway/internal/service"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const retentionLockKey = "edi:retention"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "edi-worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	delivery, err := bootstrap.NewDelivery(app)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to wire delivery services")
	}

	workerCfg := app.Config.Worker
	publisher := infraRedis.NewEventPublisher(app.Redis, workerCfg.EventStream, workerCfg.EventStreamMaxLen)
	relay := service.NewOutboxRelay(delivery.Outbox, publisher, delivery.TxManager, workerCfg.OutboxBatchSize,
		service.WithLogger(observability.Component(app.Logger, "outbox_relay")),
		service.WithMetrics(app.Metrics),
	)

	app.Logger.Info().
		Str("stream", publisher.Stream()).
		Dur("retention_window", app.Config.Retention.Window).
		Dur("retention_interval", app.Config.Retention.Interval).
		Msg("Worker started")

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Retention job, one instance at a time.
	g.Go(func() error {
		lock := infraRedis.NewDistributedLock(app.Redis, retentionLockKey, app.Config.Retention.LockTTL)
		logger := observability.Component(app.Logger, "retention")
		return every(gCtx, app.Config.Retention.Interval, func(ctx context.Context) {
			runRetention(ctx, logger, lock, app.Config.Retention.LockTTL, delivery.Retention)
		})
	})

	// 2. Outbox relay: delivery events to the Redis stream.
	g.Go(func() error {
		return every(gCtx, workerCfg.OutboxPollInterval, func(ctx context.Context) {
			if _, err := relay.RelayPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				app.Logger.Error().Err(err).Msg("Outbox relay error")
			}
		})
	})

	// 3. Housekeeping of relayed events and idempotency keys.
	g.Go(func() error {
		return every(gCtx, workerCfg.IdempotencyCleanupInterval, func(ctx context.Context) {
			if n, err := delivery.Idempotency.Cleanup(ctx); err != nil {
				app.Logger.Error().Err(err).Msg("Idempotency cleanup error")
			} else if n > 0 {
				app.Logger.Info().Int64("deleted", n).Msg("Expired idempotency keys removed")
			}
			before := time.Now().Add(-workerCfg.OutboxRetention)
			if n, err := delivery.Outbox.DeletePublished(ctx, before); err != nil {
				app.Logger.Error().Err(err).Msg("Outbox cleanup error")
			} else if n > 0 {
				app.Logger.Info().Int64("deleted", n).Msg("Relayed outbox entries removed")
			}
			reportOutboxBacklog(ctx, app, delivery.Outbox)
		})
	})

	// 4. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func reportOutboxBacklog(ctx context.Context, app *bootstrap.App, repo *postgres.OutboxRepository) {
	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		app.Logger.Error().Err(err).Msg("Outbox backlog query error")
		return
	}
	if app.Metrics != nil {
		for status, n := range counts {
			app.Metrics.OutboxBacklog.WithLabelValues(string(status)).Set(float64(n))
		}
	}
	if failed := counts[outbox.StatusFailed]; failed > 0 {
		app.Logger.Warn().Int64("failed", failed).Msg("Outbox holds events that exhausted their retries")
	}
}

// every runs fn immediately and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runRetention(ctx context.Context, logger zerolog.Logger, lock *infraRedis.DistributedLock, ttl time.Duration, retention *service.RetentionService) {
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Could not acquire retention lock")
		return
	}
	if !acquired {
		logger.Debug().Msg("Retention running on another instance, skipping")
		return
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Msg("Failed to release retention lock")
		}
	}()

	runCtx, stop := context.WithCancel(ctx)
	kept := make(chan struct{})
	go func() {
		defer close(kept)
		keepLock(runCtx, stop, logger, lock, ttl)
	}()
	defer func() {
		stop()
		<-kept
	}()

	res, err := retention.Cleanup(runCtx, time.Now())
	if err != nil {
		logger.Error().Err(err).Int64("purged_bundles", res.PurgedBundles).Msg("Retention run failed")
		return
	}
	logger.Info().
		Time("cutoff", res.Cutoff).
		Int64("bundles", res.PurgedBundles).
		Int64("messages", res.PurgedMessages).
		Int64("documents", res.PurgedDocuments).
		Msg("Retention run completed")
}

// keepLock extends the lease while a run is in progress. Losing the lease
// cancels the run; committed batches stay purged.
func keepLock(ctx context.Context, stop context.CancelFunc, logger zerolog.Logger, lock *infraRedis.DistributedLock, ttl time.Duration) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Extend(ctx, ttl); err != nil {
				if ctx.Err() == nil {
					logger.Error().Err(err).Msg("Retention lock lost, stopping run")
					stop()
				}
				return
			}
		}
	}
}
