package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/codec"
	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/bundle"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/observability"
	"github.com/cassiomorais/edi-gateway/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// logBuffer collects log output from services running on several goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// harness wires every delivery service against the in-memory repositories.
type harness struct {
	messages  *testutil.MockMessageRepository
	bundles   *testutil.MockBundleRepository
	documents *testutil.MockDocumentRepository
	outbox    *testutil.MockOutboxRepository
	storage   *testutil.MockDocumentStorage
	tx        *testutil.MockTransactionManager
	registry  *codec.Registry
	metrics   *observability.Metrics
	logs      *logBuffer

	enqueuer  *Enqueuer
	peek      *PeekService
	dequeue   *DequeueService
	retention *RetentionService
}

type harnessConfig struct {
	maxMessageCount int
	batchSize       int
	conflict        ConflictPolicy
	// serial runs every transaction under one lock with rollback.
	// Otherwise transactions pass straight through and concurrent
	// writers meet the repositories' version checks.
	serial bool
}

func defaultHarnessConfig() harnessConfig {
	return harnessConfig{
		maxMessageCount: bundle.DefaultMaxMessageCount,
		batchSize:       DefaultRetentionBatchSize,
		conflict:        ConflictPolicy{MaxAttempts: 5, Delay: 0},
		serial:          true,
	}
}

func newHarness(t *testing.T, cfgs ...func(*harnessConfig)) *harness {
	t.Helper()
	cfg := defaultHarnessConfig()
	for _, c := range cfgs {
		c(&cfg)
	}

	h := &harness{
		messages:  testutil.NewMockMessageRepository(),
		bundles:   testutil.NewMockBundleRepository(),
		documents: testutil.NewMockDocumentRepository(),
		outbox:    testutil.NewMockOutboxRepository(),
		storage:   testutil.NewMockDocumentStorage(),
		registry:  codec.NewRegistry(),
		metrics:   observability.NewMetrics("edi_test", prometheus.NewRegistry()),
		logs:      &logBuffer{},
	}
	h.tx = testutil.NewMockTransactionManager(h.messages, h.bundles, h.documents, h.outbox)
	if !cfg.serial {
		h.tx.WithTransactionFunc = func(ctx context.Context, fn func(ctx context.Context) error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx)
		}
	}

	opts := []Option{
		WithLogger(zerolog.New(h.logs)),
		WithMetrics(h.metrics),
		WithClock(testutil.FixedClock(testNow)),
		WithConflictPolicy(cfg.conflict),
	}
	h.enqueuer = NewEnqueuer(h.messages, NewBundleAssigner(h.bundles, cfg.maxMessageCount), h.tx, opts...)
	h.peek = NewPeekService(h.bundles, h.messages, h.documents, h.outbox, h.storage, h.registry, h.tx,
		message.DefaultCategories(), testutil.HubActor, opts...)
	h.dequeue = NewDequeueService(h.bundles, h.outbox, h.tx, opts...)
	h.retention = NewRetentionService(h.bundles, h.messages, h.documents, h.storage, h.tx,
		30*24*time.Hour, cfg.batchSize, opts...)
	return h
}

func (h *harness) enqueue(t *testing.T, receiver actor.Actor, reason message.BusinessReason) *message.OutgoingMessage {
	t.Helper()
	msg := testutil.NewTestMessage(receiver, reason)
	require.NoError(t, h.enqueuer.Enqueue(context.Background(), msg))
	return msg
}

func (h *harness) peekXML(t *testing.T, receiver actor.Actor) *PeekResult {
	t.Helper()
	res, err := h.peek.Peek(context.Background(), PeekRequest{
		Receiver: receiver,
		Category: message.CategoryAggregations,
		Format:   message.FormatCIMXML,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) bundleOf(t *testing.T, msg *message.OutgoingMessage) *bundle.Bundle {
	t.Helper()
	require.NotNil(t, msg.AssignedBundleID)
	b, err := h.bundles.GetByID(context.Background(), *msg.AssignedBundleID)
	require.NoError(t, err)
	return b
}
