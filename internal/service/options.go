package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/observability"
	"github.com/cassiomorais/edi-gateway/pkg/retry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/cassiomorais/edi-gateway/internal/service")

// ConflictPolicy bounds the optimistic concurrency retries of one operation.
type ConflictPolicy struct {
	MaxAttempts uint
	Delay       time.Duration
}

func DefaultConflictPolicy() ConflictPolicy {
	return ConflictPolicy{MaxAttempts: 10, Delay: 5 * time.Millisecond}
}

// Option configures the ambient dependencies of the delivery services.
type Option func(*options)

type options struct {
	logger   zerolog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
	conflict ConflictPolicy
}

func newOptions(opts []Option) options {
	o := options{
		logger:   zerolog.Nop(),
		now:      time.Now,
		conflict: DefaultConflictPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.conflict.MaxAttempts == 0 {
		o.conflict.MaxAttempts = 1
	}
	return o
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics enables Prometheus instrumentation. Services work without it.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithConflictPolicy(p ConflictPolicy) Option {
	return func(o *options) { o.conflict = p }
}

func isConflict(err error) bool {
	return errors.Is(err, domainErrors.ErrOptimisticLockFailed)
}

// withConflictRetry reruns fn against fresh state while it reports an
// optimistic lock conflict. Exhaustion surfaces as ErrConcurrencyRetriesExhausted.
func (o *options) withConflictRetry(ctx context.Context, operation string, fn func() error) error {
	cfg := retry.ConflictConfig(o.conflict.MaxAttempts, o.conflict.Delay, isConflict)
	cfg.OnRetry = func(n uint, err error) {
		if o.metrics != nil {
			o.metrics.ConcurrencyConflicts.WithLabelValues(operation).Inc()
		}
		o.logger.Debug().Str("operation", operation).Uint("attempt", n+1).Err(err).Msg("concurrency conflict, retrying")
	}

	err := retry.Do(ctx, cfg, fn)
	if isConflict(err) {
		return fmt.Errorf("%s: %w: %w", operation, domainErrors.ErrConcurrencyRetriesExhausted, err)
	}
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
