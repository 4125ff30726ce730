package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/bundle"
	"github.com/cassiomorais/edi-gateway/internal/domain/document"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultRetentionBatchSize = 500

// RetentionService purges dequeued bundles once the retention window has passed.
type RetentionService struct {
	bundleRepo   bundle.Repository
	messageRepo  message.Repository
	documentRepo document.Repository
	storage      document.Storage
	txManager    TransactionManager
	window       time.Duration
	batchSize    int
	options
}

// NewRetentionService creates a new RetentionService.
func NewRetentionService(
	bundleRepo bundle.Repository,
	messageRepo message.Repository,
	documentRepo document.Repository,
	storage document.Storage,
	txManager TransactionManager,
	window time.Duration,
	batchSize int,
	opts ...Option,
) *RetentionService {
	if batchSize <= 0 {
		batchSize = DefaultRetentionBatchSize
	}
	return &RetentionService{
		bundleRepo:   bundleRepo,
		messageRepo:  messageRepo,
		documentRepo: documentRepo,
		storage:      storage,
		txManager:    txManager,
		window:       window,
		batchSize:    batchSize,
		options:      newOptions(opts),
	}
}

// Cleanup deletes bundles dequeued at or before now minus the retention
// window, together with their messages and documents. Each batch commits
// atomically; a failed batch is rolled back and the run stops. Bundles that
// were never dequeued are never touched.
func (s *RetentionService) Cleanup(ctx context.Context, now time.Time) (result RetentionResult, err error) {
	ctx, span := tracer.Start(ctx, "RetentionService.Cleanup")
	defer func() { endSpan(span, err) }()

	result.Cutoff = now.UTC().Add(-s.window)
	span.SetAttributes(attribute.String("edi.cutoff", result.Cutoff.Format(time.RFC3339)))

	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
		}
		if s.metrics != nil {
			s.metrics.RetentionRuns.WithLabelValues(status).Inc()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := s.purgeBatch(ctx, result.Cutoff)
		if err != nil {
			s.logger.Error().Err(err).
				Int("batch", result.Batches+1).
				Time("cutoff", result.Cutoff).
				Msg("retention batch rolled back")
			return result, fmt.Errorf("retention batch %d: %w", result.Batches+1, err)
		}
		if batch.bundles == 0 {
			break
		}

		result.Batches++
		result.PurgedBundles += batch.bundles
		result.PurgedMessages += batch.messages
		result.PurgedDocuments += int64(len(batch.docs))
		if s.metrics != nil {
			s.metrics.RetentionPurgedBundles.Add(float64(batch.bundles))
		}

		// Blobs go only after the rows are gone; a failure leaves orphans, not dangling rows.
		if len(batch.docs) > 0 {
			if err := s.storage.Purge(ctx, batch.docs); err != nil {
				s.logger.Warn().Err(err).Int("documents", len(batch.docs)).Msg("purging document blobs failed")
			}
		}

		s.logger.Info().
			Int("batch", result.Batches).
			Int64("bundles", batch.bundles).
			Int64("messages", batch.messages).
			Int("documents", len(batch.docs)).
			Msg("retention batch committed")

		if batch.bundles < int64(s.batchSize) {
			break
		}
	}

	s.logger.Info().
		Time("cutoff", result.Cutoff).
		Int("batches", result.Batches).
		Int64("bundles", result.PurgedBundles).
		Msg("retention run finished")
	return result, nil
}

type purgedBatch struct {
	bundles  int64
	messages int64
	docs     []*document.MarketDocument
}

func (s *RetentionService) purgeBatch(ctx context.Context, cutoff time.Time) (purgedBatch, error) {
	var batch purgedBatch
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		bundles, err := s.bundleRepo.ListPurgeable(txCtx, cutoff, s.batchSize)
		if err != nil {
			return fmt.Errorf("list purgeable bundles: %w", err)
		}
		if len(bundles) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(bundles))
		for _, b := range bundles {
			if !b.CanBePurged(cutoff) {
				return fmt.Errorf("bundle %s is not purgeable", b.ID)
			}
			ids = append(ids, b.ID)
		}

		docs, err := s.documentRepo.ListByBundles(txCtx, ids)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		if _, err := s.documentRepo.DeleteByBundles(txCtx, ids); err != nil {
			return fmt.Errorf("delete documents: %w", err)
		}
		messages, err := s.messageRepo.DeleteByBundles(txCtx, ids)
		if err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		deleted, err := s.bundleRepo.DeleteByIDs(txCtx, ids)
		if err != nil {
			return fmt.Errorf("delete bundles: %w", err)
		}
		if deleted != int64(len(ids)) {
			return fmt.Errorf("deleted %d of %d bundles", deleted, len(ids))
		}

		batch = purgedBatch{bundles: deleted, messages: messages, docs: docs}
		return nil
	})
	if err != nil {
		return purgedBatch{}, err
	}
	return batch, nil
}
