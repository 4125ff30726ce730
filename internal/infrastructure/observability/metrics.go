package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Queue metrics
	MessagesEnqueued     *prometheus.CounterVec
	BundlesCreated       *prometheus.CounterVec
	ConcurrencyConflicts *prometheus.CounterVec

	// Delivery metrics
	PeeksTotal                 *prometheus.CounterVec
	DequeuesTotal              *prometheus.CounterVec
	DocumentGenerationDuration *prometheus.HistogramVec
	DocumentEncodingErrors     *prometheus.CounterVec

	// Retention metrics
	RetentionPurgedBundles prometheus.Counter
	RetentionRuns          *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec

	// Worker metrics
	WorkerMessagesProcessed  *prometheus.CounterVec
	WorkerProcessingDuration *prometheus.HistogramVec
	OutboxBacklog            *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		MessagesEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_enqueued_total",
				Help:      "Total number of outgoing messages enqueued by document type",
			},
			[]string{"document_type"},
		),
		BundlesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bundles_created_total",
				Help:      "Total number of bundles opened by document type",
			},
			[]string{"document_type"},
		),
		ConcurrencyConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "concurrency_conflicts_total",
				Help:      "Total number of optimistic concurrency conflicts by operation",
			},
			[]string{"operation"},
		),
		PeeksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "peeks_total",
				Help:      "Total number of peeks by result and document format",
			},
			[]string{"result", "format"},
		),
		DequeuesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dequeues_total",
				Help:      "Total number of dequeue requests by result",
			},
			[]string{"result"},
		),
		DocumentGenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "document_generation_duration_seconds",
				Help:      "Market document generation duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"document_type", "format"},
		),
		DocumentEncodingErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_encoding_errors_total",
				Help:      "Total number of bundles that failed to encode",
			},
			[]string{"document_type", "format"},
		),
		RetentionPurgedBundles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retention_purged_bundles_total",
				Help:      "Total number of dequeued bundles purged by retention",
			},
		),
		RetentionRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retention_runs_total",
				Help:      "Total number of retention runs by status",
			},
			[]string{"status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response body size in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Total number of circuit breaker requests",
			},
			[]string{"name", "result"},
		),
		WorkerMessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_messages_processed_total",
				Help:      "Total number of worker messages processed",
			},
			[]string{"stream", "status"},
		),
		WorkerProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "worker_processing_duration_seconds",
				Help:      "Worker job duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
			},
			[]string{"job"},
		),
		OutboxBacklog: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "outbox_entries",
				Help:      "Delivery events in the outbox by status",
			},
			[]string{"status"},
		),
	}

	// Register all collectors
	factory.MustRegister(
		m.MessagesEnqueued,
		m.BundlesCreated,
		m.ConcurrencyConflicts,
		m.PeeksTotal,
		m.DequeuesTotal,
		m.DocumentGenerationDuration,
		m.DocumentEncodingErrors,
		m.RetentionPurgedBundles,
		m.RetentionRuns,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.CircuitBreakerState,
		m.CircuitBreakerRequests,
		m.WorkerMessagesProcessed,
		m.WorkerProcessingDuration,
		m.OutboxBacklog,
	)

	return m
}
