package blobstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/cassiomorais/edi-gateway/internal/domain/document"
	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/config"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const breakerName = "azblob"

var tracer = otel.Tracer("github.com/cassiomorais/edi-gateway/internal/infrastructure/blobstore")

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = stderrors.New("document blob store unavailable")

// BlobAPI is the subset of *azblob.Client used by the store.
type BlobAPI interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
	DeleteBlob(ctx context.Context, containerName, blobName string, o *azblob.DeleteBlobOptions) (azblob.DeleteBlobResponse, error)
}

// Azure stores document bytes as block blobs named <bundle id>/<format>.
// Every call goes through one circuit breaker so a failing storage account
// fails peeks fast instead of holding database transactions open.
type Azure struct {
	api            BlobAPI
	container      string
	requestTimeout time.Duration
	breaker        *gobreaker.CircuitBreaker[[]byte]
	metrics        *observability.Metrics
	logger         zerolog.Logger
}

// NewAzureClient builds an azblob client from a connection string, or from
// the account URL and the default Azure credential chain.
func NewAzureClient(cfg config.AzureConfig) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("create blob client from connection string: %w", err)
		}
		return client, nil
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create azure credential: %w", err)
	}
	client, err := azblob.NewClient(cfg.AccountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return client, nil
}

func NewAzure(api BlobAPI, cfg config.AzureConfig, metrics *observability.Metrics, logger zerolog.Logger) *Azure {
	s := &Azure{
		api:            api,
		container:      cfg.Container,
		requestTimeout: cfg.RequestTimeout,
		metrics:        metrics,
		logger:         logger,
	}
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A missing blob is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || bloberror.HasCode(err, bloberror.BlobNotFound) || stderrors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("blob store circuit breaker changed state")
			if s.metrics != nil {
				s.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return s
}

func (s *Azure) execute(ctx context.Context, op string, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}
	out, err := s.breaker.Execute(func() ([]byte, error) { return fn(ctx) })
	result := "success"
	switch {
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
		err = fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	case err != nil:
		result = "failure"
	}
	if s.metrics != nil {
		s.metrics.CircuitBreakerRequests.WithLabelValues(breakerName, result).Inc()
	}
	return out, err
}

// Store uploads the payload and replaces it with a blob reference.
func (s *Azure) Store(ctx context.Context, doc *document.MarketDocument) error {
	name := doc.BlobName()
	ctx, span := s.startSpan(ctx, "blobstore.Store", name)
	defer span.End()

	_, err := s.execute(ctx, "store", func(ctx context.Context) ([]byte, error) {
		_, err := s.api.UploadBuffer(ctx, s.container, name, doc.Payload, &azblob.UploadBufferOptions{
			HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(doc.Format.ContentType())},
			Metadata:    map[string]*string{"message_id": to.Ptr(doc.MessageID)},
		})
		return nil, err
	})
	if err != nil {
		endSpan(span, err)
		return fmt.Errorf("upload blob %s/%s: %w", s.container, name, err)
	}
	doc.BlobRef = &name
	doc.Payload = nil
	return nil
}

func (s *Azure) Load(ctx context.Context, doc *document.MarketDocument) ([]byte, error) {
	if doc.BlobRef == nil {
		if doc.Payload != nil {
			return doc.Payload, nil
		}
		return nil, errors.ErrDocumentNotFound
	}
	name := *doc.BlobRef
	ctx, span := s.startSpan(ctx, "blobstore.Load", name)
	defer span.End()

	payload, err := s.execute(ctx, "load", func(ctx context.Context) ([]byte, error) {
		resp, err := s.api.DownloadStream(ctx, s.container, name, nil)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, errors.ErrDocumentNotFound
		}
		endSpan(span, err)
		return nil, fmt.Errorf("download blob %s/%s: %w", s.container, name, err)
	}
	return payload, nil
}

// Purge deletes the blobs of purged documents. Missing blobs are ignored so
// that a partially failed purge can simply run again.
func (s *Azure) Purge(ctx context.Context, docs []*document.MarketDocument) error {
	ctx, span := tracer.Start(ctx, "blobstore.Purge", trace.WithAttributes(
		attribute.String("container", s.container),
		attribute.Int("object_count", len(docs)),
	))
	defer span.End()

	var errs []error
	for _, doc := range docs {
		if doc.BlobRef == nil {
			continue
		}
		name := *doc.BlobRef
		_, err := s.execute(ctx, "delete", func(ctx context.Context) ([]byte, error) {
			_, err := s.api.DeleteBlob(ctx, s.container, name, nil)
			return nil, err
		})
		if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
			errs = append(errs, fmt.Errorf("delete blob %s/%s: %w", s.container, name, err))
		}
	}
	err := stderrors.Join(errs...)
	if err != nil {
		span.SetAttributes(attribute.Int("failed_object_count", len(errs)))
		endSpan(span, err)
	}
	return err
}

func (s *Azure) startSpan(ctx context.Context, name, blobName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("container", s.container),
		attribute.String("blob", blobName),
	))
}

func endSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
