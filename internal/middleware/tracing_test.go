package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTracer(t *testing.T) (*tracetest.SpanRecorder, otelhttp.Option) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, otelhttp.WithTracerProvider(tp)
}

func TestTracing_NamesSpanAfterRoutePattern(t *testing.T) {
	sr, opt := newRecordingTracer(t)

	r := chi.NewRouter()
	r.Use(Tracing(opt))
	r.Get("/peek/{category}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/peek/aggregations", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /peek/{category}", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
}

func TestTracing_NamesSpanAfterMountedRoutePattern(t *testing.T) {
	sr, opt := newRecordingTracer(t)

	r := chi.NewRouter()
	r.Use(Tracing(opt))
	r.Route("/api/v1", func(r chi.Router) {
		r.Delete("/dequeue/{messageId}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	for _, id := range []string{"a1", "b2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/api/v1/dequeue/"+id, nil))
	}

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "DELETE /api/v1/dequeue/{messageId}", s.Name())
	}
}

func TestTracing_WithoutChiRoutePattern(t *testing.T) {
	sr, opt := newRecordingTracer(t)

	wrapped := Tracing(opt)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest("GET", "/unknown", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /unknown", spans[0].Name())
}

func TestTracing_HandlerSeesActiveSpan(t *testing.T) {
	_, opt := newRecordingTracer(t)

	var valid bool
	wrapped := Tracing(opt)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		valid = trace.SpanContextFromContext(r.Context()).IsValid()
		w.WriteHeader(http.StatusOK)
	}))

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/dequeue/x", nil))

	assert.True(t, valid, "handler should run inside the server span")
}

func TestTracing_PreservesResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"200 OK", http.StatusOK},
		{"202 Accepted", http.StatusAccepted},
		{"400 Bad Request", http.StatusBadRequest},
		{"500 Internal Server Error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Tracing()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(tt.statusCode)
				w.Write([]byte("<doc/>"))
			}))

			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Equal(t, "<doc/>", w.Body.String())
			assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
		})
	}
}
