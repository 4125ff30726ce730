package service

import (
	"context"
	"errors"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/bundle"
	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/outbox"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DequeueService acknowledges delivered bundles.
type DequeueService struct {
	bundleRepo bundle.Repository
	outboxRepo outbox.Repository
	txManager  TransactionManager
	options
}

// NewDequeueService creates a new DequeueService.
func NewDequeueService(
	bundleRepo bundle.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	opts ...Option,
) *DequeueService {
	return &DequeueService{
		bundleRepo: bundleRepo,
		outboxRepo: outboxRepo,
		txManager:  txManager,
		options:    newOptions(opts),
	}
}

// Dequeue retires the bundle delivered under messageID. The requester must
// be the bundle's receiver. Acknowledging twice succeeds.
func (s *DequeueService) Dequeue(ctx context.Context, messageID string, requester actor.Actor) (err error) {
	ctx, span := tracer.Start(ctx, "DequeueService.Dequeue", trace.WithAttributes(
		attribute.String("edi.message_id", messageID),
		attribute.String("edi.receiver", requester.String()),
	))
	defer func() { endSpan(span, err) }()

	if messageID == "" {
		s.countDequeue("unknown")
		return domainErrors.ErrUnknownMessageID
	}

	var dequeued bool
	err = s.withConflictRetry(ctx, "dequeue", func() error {
		return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			b, err := s.bundleRepo.GetByMessageID(txCtx, messageID)
			if errors.Is(err, domainErrors.ErrBundleNotFound) {
				return domainErrors.ErrUnknownMessageID
			}
			if err != nil {
				return err
			}
			if !b.OwnedBy(requester) {
				return domainErrors.ErrForeignMessageID
			}

			now := s.now()
			changed, err := b.Dequeue(now)
			if err != nil {
				return err
			}
			dequeued = changed
			if !changed {
				return nil
			}
			if err := s.bundleRepo.Update(txCtx, b); err != nil {
				return err
			}

			return s.outboxRepo.Insert(txCtx, outbox.NewBundleDequeued(outbox.DeliveryEvent{
				BundleID:       b.ID,
				MessageID:      messageID,
				ReceiverNumber: string(b.Receiver.Number),
				ReceiverRole:   b.Receiver.Role.Code(),
				DocumentType:   string(b.DocumentType),
				BusinessReason: string(b.BusinessReason),
				MessageCount:   b.MessageCount,
				OccurredAt:     now,
			}))
		})
	})

	switch {
	case errors.Is(err, domainErrors.ErrUnknownMessageID):
		s.countDequeue("unknown")
	case errors.Is(err, domainErrors.ErrForeignMessageID):
		s.logger.Warn().Str("message_id", messageID).Str("requester", requester.String()).Msg("dequeue of foreign message id")
		s.countDequeue("foreign")
	case err != nil:
		s.countDequeue("error")
	case dequeued:
		s.countDequeue("dequeued")
		s.logger.Info().Str("message_id", messageID).Str("receiver", requester.String()).Msg("bundle dequeued")
	default:
		s.countDequeue("already_dequeued")
	}
	return err
}

func (s *DequeueService) countDequeue(result string) {
	if s.metrics != nil {
		s.metrics.DequeuesTotal.WithLabelValues(result).Inc()
	}
}
