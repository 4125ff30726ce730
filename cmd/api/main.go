package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/edi-gateway/internal/bootstrap"
	"github.com/cassiomorais/edi-gateway/internal/controller"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "edi-api: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	app, err := bootstrap.New(ctx, "edi-api")
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	delivery, err := bootstrap.NewDelivery(app)
	if err != nil {
		return fmt.Errorf("wire delivery services: %w", err)
	}

	router := controller.NewRouter(controller.RouterDeps{
		HealthChecks: []controller.HealthCheck{
			{Name: "database", Ping: app.Pool.Ping},
			{Name: "redis", Ping: func(ctx context.Context) error { return app.Redis.Ping(ctx).Err() }},
		},
		Enqueuer:         delivery.Enqueuer,
		Peeker:           delivery.Peek,
		Dequeuer:         delivery.Dequeue,
		IdempotencyStore: delivery.Idempotency,
		IdempotencyTTL:   app.Config.Worker.IdempotencyTTL,
		Metrics:          app.Metrics,
		CORSConfig:       app.Config.Server.CORS,
		JWTSecret:        app.Config.Auth.JWTSecret,
		RateLimit:        app.Config.Server.RateLimit,
	})

	srvCfg := app.Config.Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", srvCfg.Port),
		Handler:      router,
		ReadTimeout:  srvCfg.ReadTimeout,
		WriteTimeout: srvCfg.WriteTimeout,
		IdleTimeout:  srvCfg.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.Logger.Info().
			Str("addr", srv.Addr).
			Int("rate_limit", srvCfg.RateLimit).
			Str("storage_backend", string(app.Config.Storage.Backend)).
			Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		app.Logger.Info().Msg("Shutting down server...")
		// In-flight peeks finish their transaction before the pool closes.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), srvCfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	app.Logger.Info().Msg("Server exited")
	return err
}
