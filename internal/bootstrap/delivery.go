package bootstrap

import (
	"fmt"

	"github.com/cassiomorais/edi-gateway/internal/codec"
	"github.com/cassiomorais/edi-gateway/internal/domain/document"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/blobstore"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/observability"
	"github.com/cassiomorais/edi-gateway/internal/repository/postgres"
	"github.com/cassiomorais/edi-gateway/internal/service"
)

// Delivery holds the repositories and services shared by the API and the worker.
type Delivery struct {
	Bundles     *postgres.BundleRepository
	Messages    *postgres.MessageRepository
	Documents   *postgres.DocumentRepository
	Outbox      *postgres.OutboxRepository
	Idempotency *postgres.IdempotencyRepository
	TxManager   *postgres.TxManager
	Storage     document.Storage

	Enqueuer  *service.Enqueuer
	Peek      *service.PeekService
	Dequeue   *service.DequeueService
	Retention *service.RetentionService
}

func NewDelivery(app *App) (*Delivery, error) {
	cfg := app.Config

	hub, err := cfg.Hub.Actor()
	if err != nil {
		return nil, fmt.Errorf("hub actor: %w", err)
	}
	categories, err := cfg.Peek.MessageCategories()
	if err != nil {
		return nil, fmt.Errorf("peek categories: %w", err)
	}
	storage, err := blobstore.New(cfg.Storage, app.Metrics, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("document storage: %w", err)
	}

	d := &Delivery{
		Bundles:     postgres.NewBundleRepository(app.Pool),
		Messages:    postgres.NewMessageRepository(app.Pool),
		Documents:   postgres.NewDocumentRepository(app.Pool),
		Outbox:      postgres.NewOutboxRepository(app.Pool),
		Idempotency: postgres.NewIdempotencyRepository(app.Pool),
		TxManager:   postgres.NewTxManager(app.Pool),
		Storage:     storage,
	}

	opts := func(component string) []service.Option {
		return []service.Option{
			service.WithLogger(observability.Component(app.Logger, component)),
			service.WithMetrics(app.Metrics),
			service.WithConflictPolicy(service.ConflictPolicy{
				MaxAttempts: cfg.Bundling.MaxConflictRetries,
				Delay:       cfg.Bundling.RetryDelay,
			}),
		}
	}

	d.Enqueuer = service.NewEnqueuer(d.Messages,
		service.NewBundleAssigner(d.Bundles, cfg.Bundling.MaxMessageCount), d.TxManager, opts("enqueuer")...)
	d.Peek = service.NewPeekService(d.Bundles, d.Messages, d.Documents, d.Outbox, d.Storage,
		codec.NewRegistry(), d.TxManager, categories, hub, opts("peek")...)
	d.Dequeue = service.NewDequeueService(d.Bundles, d.Outbox, d.TxManager, opts("dequeue")...)
	d.Retention = service.NewRetentionService(d.Bundles, d.Messages, d.Documents, d.Storage, d.TxManager,
		cfg.Retention.Window, cfg.Retention.BatchSize, opts("retention")...)
	return d, nil
}
