package service

import (
	"context"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/outbox"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultRelayBatchSize = 100

// EventPublisher delivers outbox entries to audit subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, e *outbox.Entry) error
	Stream() string
}

// OutboxRelay moves delivery events from the outbox table to the event stream.
type OutboxRelay struct {
	outboxRepo outbox.Repository
	publisher  EventPublisher
	txManager  TransactionManager
	batchSize  int
	options
}

func NewOutboxRelay(
	outboxRepo outbox.Repository,
	publisher EventPublisher,
	txManager TransactionManager,
	batchSize int,
	opts ...Option,
) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = DefaultRelayBatchSize
	}
	return &OutboxRelay{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		txManager:  txManager,
		batchSize:  batchSize,
		options:    newOptions(opts),
	}
}

type RelayResult struct {
	Published int
	Failed    int
}

// RelayPending publishes one batch of pending entries. Entries are marked in
// the transaction that selected them, so a crash before commit publishes
// them again; subscribers deduplicate on the event id.
func (r *OutboxRelay) RelayPending(ctx context.Context) (result RelayResult, err error) {
	ctx, span := tracer.Start(ctx, "OutboxRelay.RelayPending")
	defer func() { endSpan(span, err) }()
	start := time.Now()

	err = r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		result = RelayResult{}
		entries, err := r.outboxRepo.GetPending(txCtx, r.batchSize)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := r.publisher.Publish(ctx, e); err != nil {
				r.logger.Error().Err(err).
					Str("outbox_id", e.ID.String()).
					Str("event_type", e.EventType).
					Int("retry_count", e.RetryCount).
					Msg("failed to publish delivery event")
				if err := r.outboxRepo.MarkFailed(txCtx, e.ID); err != nil {
					return err
				}
				result.Failed++
				continue
			}
			if err := r.outboxRepo.MarkPublished(txCtx, e.ID); err != nil {
				return err
			}
			result.Published++
		}
		return nil
	})
	if err != nil {
		return RelayResult{}, err
	}

	span.SetAttributes(
		attribute.Int("edi.published", result.Published),
		attribute.Int("edi.failed", result.Failed),
	)
	if r.metrics != nil {
		stream := r.publisher.Stream()
		r.metrics.WorkerMessagesProcessed.WithLabelValues(stream, "success").Add(float64(result.Published))
		r.metrics.WorkerMessagesProcessed.WithLabelValues(stream, "failure").Add(float64(result.Failed))
		r.metrics.WorkerProcessingDuration.WithLabelValues("outbox_relay").Observe(time.Since(start).Seconds())
	}
	return result, nil
}
