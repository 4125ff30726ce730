package service

import (
	"context"

	"github.com/cassiomorais/edi-gateway/internal/domain/bundle"
	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/cassiomorais/edi-gateway/internal/domain/queue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BundleAssigner places messages into bundles of their receiver's queue.
type BundleAssigner struct {
	bundleRepo      bundle.Repository
	maxMessageCount int
}

// NewBundleAssigner creates a new BundleAssigner.
func NewBundleAssigner(bundleRepo bundle.Repository, maxMessageCount int) *BundleAssigner {
	if maxMessageCount <= 0 {
		maxMessageCount = bundle.DefaultMaxMessageCount
	}
	return &BundleAssigner{bundleRepo: bundleRepo, maxMessageCount: maxMessageCount}
}

// Assign adds msg to the accepting bundle of its class or opens a new one,
// and writes the bundle back with a version check. A concurrent writer of
// the same class makes it fail with ErrOptimisticLockFailed; the caller
// retries against fresh state.
func (a *BundleAssigner) Assign(ctx context.Context, msg *message.OutgoingMessage) (queue.Placement, error) {
	q, err := queue.New(msg.Receiver, a.maxMessageCount)
	if err != nil {
		return queue.Placement{}, err
	}

	current, err := a.bundleRepo.GetAccepting(ctx, msg.Key())
	if err != nil {
		return queue.Placement{}, err
	}

	p, err := q.Place(msg, current)
	if err != nil {
		return queue.Placement{}, err
	}

	if p.Created {
		err = a.bundleRepo.Create(ctx, p.Bundle)
	} else {
		err = a.bundleRepo.Update(ctx, p.Bundle)
	}
	if err != nil {
		return queue.Placement{}, err
	}
	return p, nil
}

// Enqueuer is the entry point producers use to hand over outgoing messages.
type Enqueuer struct {
	messageRepo message.Repository
	assigner    *BundleAssigner
	txManager   TransactionManager
	options
}

// NewEnqueuer creates a new Enqueuer.
func NewEnqueuer(
	messageRepo message.Repository,
	assigner *BundleAssigner,
	txManager TransactionManager,
	opts ...Option,
) *Enqueuer {
	return &Enqueuer{
		messageRepo: messageRepo,
		assigner:    assigner,
		txManager:   txManager,
		options:     newOptions(opts),
	}
}

// Enqueue persists msg assigned to a bundle. When ctx carries the caller's
// transaction the message commits or rolls back with it. On success msg
// holds its bundle assignment.
func (e *Enqueuer) Enqueue(ctx context.Context, msg *message.OutgoingMessage) (err error) {
	ctx, span := tracer.Start(ctx, "Enqueuer.Enqueue", trace.WithAttributes(
		attribute.String("edi.receiver", msg.Receiver.String()),
		attribute.String("edi.document_type", string(msg.DocumentType)),
	))
	defer func() { endSpan(span, err) }()

	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.AssignedBundleID != nil {
		return errors.ErrMessageAlreadyQueued
	}

	var (
		assigned message.OutgoingMessage
		placed   queue.Placement
	)
	err = e.withConflictRetry(ctx, "enqueue", func() error {
		attempt := *msg
		return e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			p, err := e.assigner.Assign(txCtx, &attempt)
			if err != nil {
				return err
			}
			if err := e.messageRepo.Add(txCtx, &attempt); err != nil {
				return err
			}
			assigned, placed = attempt, p
			return nil
		})
	})
	if err != nil {
		e.logger.Error().Err(err).
			Str("message_id", msg.ID.String()).
			Str("receiver", msg.Receiver.String()).
			Str("document_type", string(msg.DocumentType)).
			Msg("enqueue failed")
		return err
	}

	*msg = assigned
	span.SetAttributes(attribute.String("edi.bundle_id", placed.Bundle.ID.String()))
	if e.metrics != nil {
		e.metrics.MessagesEnqueued.WithLabelValues(string(msg.DocumentType)).Inc()
		if placed.Created {
			e.metrics.BundlesCreated.WithLabelValues(string(msg.DocumentType)).Inc()
		}
	}
	e.logger.Debug().
		Str("message_id", msg.ID.String()).
		Str("bundle_id", placed.Bundle.ID.String()).
		Int("position", msg.BundlePosition).
		Bool("new_bundle", placed.Created).
		Msg("message enqueued")
	return nil
}

// EnqueueAll enqueues the messages in order inside one transaction. The
// messages are only updated when all of them were enqueued.
func (e *Enqueuer) EnqueueAll(ctx context.Context, msgs []*message.OutgoingMessage) error {
	attempts := make([]message.OutgoingMessage, len(msgs))
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for i, msg := range msgs {
			attempts[i] = *msg
			if err := e.Enqueue(txCtx, &attempts[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i := range msgs {
		*msgs[i] = attempts[i]
	}
	return nil
}
