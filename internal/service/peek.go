package service

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/codec"
	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/bundle"
	"github.com/cassiomorais/edi-gateway/internal/domain/document"
	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/cassiomorais/edi-gateway/internal/domain/outbox"
	"github.com/cassiomorais/edi-gateway/pkg/saga"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PeekService hands out the next bundle of a receiver as a market document.
type PeekService struct {
	bundleRepo   bundle.Repository
	messageRepo  message.Repository
	documentRepo document.Repository
	outboxRepo   outbox.Repository
	storage      document.Storage
	registry     *codec.Registry
	txManager    TransactionManager
	categories   message.Categories
	hub          actor.Actor
	options
}

// NewPeekService creates a new PeekService. hub is the sender written in
// every document header.
func NewPeekService(
	bundleRepo bundle.Repository,
	messageRepo message.Repository,
	documentRepo document.Repository,
	outboxRepo outbox.Repository,
	storage document.Storage,
	registry *codec.Registry,
	txManager TransactionManager,
	categories message.Categories,
	hub actor.Actor,
	opts ...Option,
) *PeekService {
	if categories == nil {
		categories = message.DefaultCategories()
	}
	return &PeekService{
		bundleRepo:   bundleRepo,
		messageRepo:  messageRepo,
		documentRepo: documentRepo,
		outboxRepo:   outboxRepo,
		storage:      storage,
		registry:     registry,
		txManager:    txManager,
		categories:   categories,
		hub:          hub,
		options:      newOptions(opts),
	}
}

// Peek returns the document of the receiver's next bundle. Repeated peeks
// return the same MessageId and the same bytes until the bundle is dequeued.
// The first peek of a bundle freezes it; later messages of the class go to
// a new bundle.
func (s *PeekService) Peek(ctx context.Context, req PeekRequest) (result *PeekResult, err error) {
	ctx, span := tracer.Start(ctx, "PeekService.Peek", trace.WithAttributes(
		attribute.String("edi.receiver", req.Receiver.String()),
		attribute.String("edi.category", string(req.Category)),
		attribute.String("edi.format", string(req.Format)),
	))
	defer func() { endSpan(span, err) }()

	if err := req.Receiver.Validate(); err != nil {
		return nil, err
	}
	if err := req.Format.Validate(); err != nil {
		return nil, err
	}
	types, err := s.categories.DocumentTypes(req.Category)
	if err != nil {
		return nil, err
	}

	result, err = s.peekGenerated(ctx, req, types)
	if err != nil {
		return nil, err
	}
	if result == nil {
		err = s.withConflictRetry(ctx, "peek", func() error {
			return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
				r, err := s.materialize(txCtx, req, types)
				if err != nil {
					return err
				}
				result = r
				return nil
			})
		})
		if err != nil {
			s.countPeek("error", req.Format)
			return nil, err
		}
	}

	switch {
	case !result.Found:
		s.countPeek("empty", req.Format)
	case result.Generated:
		s.countPeek("generated", req.Format)
	default:
		s.countPeek("cached", req.Format)
	}
	if result.Found {
		span.SetAttributes(
			attribute.String("edi.bundle_id", result.BundleID.String()),
			attribute.String("edi.message_id", result.MessageID),
		)
	}
	return result, nil
}

// peekGenerated serves a frozen bundle whose document already exists
// without opening a write transaction. It returns nil when the slow path
// has to run.
func (s *PeekService) peekGenerated(ctx context.Context, req PeekRequest, types []message.DocumentType) (*PeekResult, error) {
	b, err := s.bundleRepo.NextForPeek(ctx, req.Receiver, types)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return &PeekResult{Found: false, Format: req.Format}, nil
	}
	if !b.IsClosedForAssignment() {
		return nil, nil
	}
	return s.loadExisting(ctx, b, req.Format)
}

func (s *PeekService) loadExisting(ctx context.Context, b *bundle.Bundle, format message.DocumentFormat) (*PeekResult, error) {
	doc, err := s.documentRepo.Get(ctx, b.ID, format)
	if errors.Is(err, domainErrors.ErrDocumentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	payload, err := s.storage.Load(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &PeekResult{
		Found:     true,
		BundleID:  b.ID,
		MessageID: doc.MessageID,
		Format:    format,
		Document:  payload,
	}, nil
}

// materialize generates the document of the next bundle and freezes the
// bundle in the same transaction. The version checked bundle write orders
// it against concurrent enqueues of the class.
func (s *PeekService) materialize(ctx context.Context, req PeekRequest, types []message.DocumentType) (*PeekResult, error) {
	b, err := s.bundleRepo.NextForPeek(ctx, req.Receiver, types)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return &PeekResult{Found: false, Format: req.Format}, nil
	}
	if b.IsClosedForAssignment() {
		existing, err := s.loadExisting(ctx, b, req.Format)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	msgs, err := s.messageRepo.GetByBundle(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if len(msgs) != b.MessageCount {
		// An enqueue committed between the bundle and message reads.
		return nil, domainErrors.ErrOptimisticLockFailed
	}

	messageID := uuid.NewString()
	if b.MessageID != nil {
		messageID = *b.MessageID
	}
	now := s.now()

	payload, err := s.encode(b, req.Format, messageID, msgs, now)
	if err != nil {
		return nil, err
	}

	// Nothing is written when the caller gave up during encoding.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := document.New(b.ID, req.Format, messageID, payload)
	if err != nil {
		return nil, err
	}
	event := outbox.NewBundlePeeked(outbox.DeliveryEvent{
		BundleID:       b.ID,
		MessageID:      messageID,
		ReceiverNumber: string(b.Receiver.Number),
		ReceiverRole:   b.Receiver.Role.Code(),
		DocumentType:   string(b.DocumentType),
		BusinessReason: string(b.BusinessReason),
		Format:         string(req.Format),
		MessageCount:   b.MessageCount,
		OccurredAt:     now,
	})

	// The stored blob outlives a rolled back transaction, so it is the one
	// step that needs undoing.
	var froze bool
	err = saga.New("materialize-document",
		saga.Step{
			Name:    "store document",
			Execute: func(ctx context.Context) error { return s.storage.Store(ctx, doc) },
			Compensate: func(ctx context.Context) error {
				return s.storage.Purge(ctx, []*document.MarketDocument{doc})
			},
		},
		saga.Step{
			Name: "freeze bundle",
			Execute: func(ctx context.Context) error {
				var err error
				if froze, err = b.Freeze(messageID, now); err != nil {
					return err
				}
				// A further format still writes the bundle, so a dequeue
				// committed since NextForPeek fails this peek.
				if !froze {
					if err := b.AttachDocument(); err != nil {
						return err
					}
				}
				return s.bundleRepo.Update(ctx, b)
			},
		},
		saga.Step{
			Name:    "add document",
			Execute: func(ctx context.Context) error { return s.documentRepo.Add(ctx, doc) },
		},
		saga.Step{
			Name:    "record peek",
			Execute: func(ctx context.Context) error { return s.outboxRepo.Insert(ctx, event) },
		},
	).Run(ctx)
	if err != nil {
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) && stepErr.CompensationErr != nil {
			s.logger.Warn().Err(stepErr.CompensationErr).
				Str("bundle_id", b.ID.String()).
				Msg("orphaned document blob left behind")
		}
		return nil, err
	}

	s.logger.Info().
		Str("bundle_id", b.ID.String()).
		Str("message_id", messageID).
		Str("receiver", b.Receiver.String()).
		Str("document_format", string(req.Format)).
		Int("message_count", b.MessageCount).
		Bool("frozen_now", froze).
		Msg("bundle document generated")

	return &PeekResult{
		Found:     true,
		BundleID:  b.ID,
		MessageID: messageID,
		Format:    req.Format,
		Document:  payload,
		Generated: true,
	}, nil
}

func (s *PeekService) encode(b *bundle.Bundle, format message.DocumentFormat, messageID string, msgs []*message.OutgoingMessage, now time.Time) ([]byte, error) {
	records := make([]codec.Record, 0, len(msgs))
	for _, m := range msgs {
		records = append(records, codec.Record{MessageID: m.ID, Data: m.Record})
	}
	header := codec.NewHeader(messageID, b.DocumentType, b.BusinessReason, s.hub, b.Receiver, now)

	start := time.Now()
	payload, err := s.registry.Encode(b.DocumentType, format, header, records)
	if s.metrics != nil {
		s.metrics.DocumentGenerationDuration.
			WithLabelValues(string(b.DocumentType), string(format)).
			Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.logEncodingError(b, format, err)
		return nil, err
	}
	return payload, nil
}

func (s *PeekService) logEncodingError(b *bundle.Bundle, format message.DocumentFormat, err error) {
	if s.metrics != nil {
		s.metrics.DocumentEncodingErrors.WithLabelValues(string(b.DocumentType), string(format)).Inc()
	}
	event := s.logger.Error().Err(err).
		Str("bundle_id", b.ID.String()).
		Str("receiver", b.Receiver.String()).
		Str("document_type", string(b.DocumentType)).
		Str("document_format", string(format))
	var recErr *codec.RecordEncodingError
	if errors.As(err, &recErr) {
		event = event.Str("message_id", recErr.MessageID.String())
	}
	event.Msg("bundle encoding failed")
}

func (s *PeekService) countPeek(result string, format message.DocumentFormat) {
	if s.metrics != nil {
		s.metrics.PeeksTotal.WithLabelValues(result, string(format)).Inc()
	}
}
