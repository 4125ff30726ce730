package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/codec"
	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/bundle"
	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/edi-gateway/internal/middleware"
	"github.com/cassiomorais/edi-gateway/internal/repository/postgres"
	"github.com/cassiomorais/edi-gateway/internal/service"
	"github.com/cassiomorais/edi-gateway/internal/testutil"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

type memoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*postgres.IdempotencyEntry
}

func (s *memoryIdempotencyStore) Get(_ context.Context, key string) (*postgres.IdempotencyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key], nil
}

func (s *memoryIdempotencyStore) Set(_ context.Context, e *postgres.IdempotencyEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Key] = e
	return nil
}

type testAPI struct {
	handler  http.Handler
	messages *testutil.MockMessageRepository
	bundles  *testutil.MockBundleRepository
}

func newTestAPI(t *testing.T, extra ...service.Option) *testAPI {
	t.Helper()
	messages := testutil.NewMockMessageRepository()
	bundles := testutil.NewMockBundleRepository()
	documents := testutil.NewMockDocumentRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	tx := testutil.NewMockTransactionManager(messages, bundles, documents, outboxRepo)

	metrics := observability.NewMetrics("edi_router_test", prometheus.NewRegistry())
	opts := append([]service.Option{service.WithMetrics(metrics)}, extra...)

	handler := NewRouter(RouterDeps{
		Enqueuer: service.NewEnqueuer(messages, service.NewBundleAssigner(bundles, 500), tx, opts...),
		Peeker: service.NewPeekService(bundles, messages, documents, outboxRepo, testutil.NewMockDocumentStorage(),
			codec.NewRegistry(), tx, message.DefaultCategories(), testutil.HubActor, opts...),
		Dequeuer:         service.NewDequeueService(bundles, outboxRepo, tx, opts...),
		IdempotencyStore: &memoryIdempotencyStore{entries: map[string]*postgres.IdempotencyEntry{}},
		IdempotencyTTL:   time.Hour,
		JWTSecret:        testSecret,
	})
	return &testAPI{handler: handler, messages: messages, bundles: bundles}
}

func tokenFor(t *testing.T, a actor.Actor) string {
	t.Helper()
	claims := customMW.Claims{
		ActorNumber: string(a.Number),
		ActorRole:   a.Role.Code(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (api *testAPI) do(t *testing.T, as *actor.Actor, method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, *as))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, req)
	return w
}

func enqueueBody(receiver actor.Actor) string {
	return fmt.Sprintf(`{
		"document_type": "NotifyAggregatedMeasureData",
		"receiver_number": %q,
		"receiver_role": %q,
		"business_reason": "BalanceFixing",
		"grid_area": "804",
		"record": %s
	}`, receiver.Number, receiver.Role.Code(), testutil.AggregatedRecord(uuid.NewString(), 2))
}

func (api *testAPI) enqueue(t *testing.T, receiver actor.Actor) EnqueueMessageResponse {
	t.Helper()
	w := api.do(t, &testutil.HubActor, http.MethodPost, "/api/v1/outgoing-messages", strings.NewReader(enqueueBody(receiver)), nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp EnqueueMessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (api *testAPI) peekXML(t *testing.T, as actor.Actor) *httptest.ResponseRecorder {
	t.Helper()
	return api.do(t, &as, http.MethodGet, "/peek/aggregations", nil, map[string]string{"Content-Type": "application/xml"})
}

func TestRouter_PeekDequeueScenario(t *testing.T) {
	api := newTestAPI(t)
	supplier := testutil.SupplierA

	first := api.enqueue(t, supplier)
	for i := 0; i < 2; i++ {
		resp := api.enqueue(t, supplier)
		assert.Equal(t, first.BundleID, resp.BundleID)
	}

	peeked := api.peekXML(t, supplier)
	require.Equal(t, http.StatusOK, peeked.Code, peeked.Body.String())
	assert.Equal(t, "application/xml", peeked.Header().Get("Content-Type"))
	m1 := peeked.Header().Get(MessageIDHeader)
	require.NotEmpty(t, m1)
	assert.Equal(t, 3, strings.Count(peeked.Body.String(), "<cim:Series>"))

	again := api.peekXML(t, supplier)
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, m1, again.Header().Get(MessageIDHeader))
	assert.Equal(t, peeked.Body.Bytes(), again.Body.Bytes())

	// A message enqueued after the freeze opens a second bundle, and the
	// frozen bundle keeps being offered until it is dequeued.
	fourth := api.enqueue(t, supplier)
	assert.NotEqual(t, first.BundleID, fourth.BundleID)
	assert.Equal(t, 1, fourth.BundlePosition)
	assert.Equal(t, m1, api.peekXML(t, supplier).Header().Get(MessageIDHeader))

	w := api.do(t, &supplier, http.MethodDelete, "/dequeue/"+m1, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, &supplier, http.MethodDelete, "/dequeue/"+m1, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code, "dequeue is idempotent")

	second := api.peekXML(t, supplier)
	require.Equal(t, http.StatusOK, second.Code)
	m2 := second.Header().Get(MessageIDHeader)
	assert.NotEqual(t, m1, m2)
	assert.Equal(t, 1, strings.Count(second.Body.String(), "<cim:Series>"))

	require.Equal(t, http.StatusOK, api.do(t, &supplier, http.MethodDelete, "/dequeue/"+m2, nil, nil).Code)
	empty := api.peekXML(t, supplier)
	assert.Equal(t, http.StatusNoContent, empty.Code)
	assert.Empty(t, empty.Body.String())
}

func TestRouter_PeekAllAndFormats(t *testing.T) {
	api := newTestAPI(t)
	supplier := testutil.SupplierA
	api.enqueue(t, supplier)

	w := api.do(t, &supplier, http.MethodGet, "/peek", nil, map[string]string{"Accept": "application/json"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.True(t, json.Valid(w.Body.Bytes()))

	w = api.do(t, &supplier, http.MethodGet, "/peek/wholesale", nil, map[string]string{"Content-Type": "application/xml"})
	assert.Equal(t, http.StatusNoContent, w.Code, "other categories are independent")

	w = api.do(t, &testutil.SupplierB, http.MethodGet, "/peek", nil, map[string]string{"Content-Type": "application/xml"})
	assert.Equal(t, http.StatusNoContent, w.Code, "queues are per actor")
}

func TestRouter_ClientErrors(t *testing.T) {
	api := newTestAPI(t)
	supplier := testutil.SupplierA
	api.enqueue(t, supplier)

	peeked := api.peekXML(t, supplier)
	require.Equal(t, http.StatusOK, peeked.Code)
	token := peeked.Header().Get(MessageIDHeader)

	tests := []struct {
		name    string
		as      *actor.Actor
		method  string
		target  string
		headers map[string]string
		status  int
		code    string
	}{
		{"unknown content type", &supplier, http.MethodGet, "/peek/aggregations", map[string]string{"Content-Type": "text/csv"}, http.StatusBadRequest, "unsupported_content_type"},
		{"missing content type", &supplier, http.MethodGet, "/peek/aggregations", nil, http.StatusBadRequest, "unsupported_content_type"},
		{"unknown category", &supplier, http.MethodGet, "/peek/timeseries", map[string]string{"Content-Type": "application/xml"}, http.StatusBadRequest, "unknown_category"},
		{"unknown message id", &supplier, http.MethodDelete, "/dequeue/" + uuid.NewString(), nil, http.StatusBadRequest, "unknown_message_id"},
		{"foreign message id", &testutil.SupplierB, http.MethodDelete, "/dequeue/" + token, nil, http.StatusBadRequest, "unknown_message_id"},
		{"same number other role", &testutil.GridB, http.MethodDelete, "/dequeue/" + token, nil, http.StatusBadRequest, "unknown_message_id"},
		{"no token", nil, http.MethodGet, "/peek", nil, http.StatusUnauthorized, "auth_required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, tt.as, tt.method, tt.target, nil, tt.headers)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}

	// The rejected dequeues left the bundle in place.
	assert.Equal(t, token, api.peekXML(t, supplier).Header().Get(MessageIDHeader))
}

func TestRouter_EnqueueRequiresHubRole(t *testing.T) {
	api := newTestAPI(t)
	supplier := testutil.SupplierA

	w := api.do(t, &supplier, http.MethodPost, "/api/v1/outgoing-messages", strings.NewReader(enqueueBody(supplier)), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, api.messages.Count())
}

func TestRouter_EnqueueValidation(t *testing.T) {
	api := newTestAPI(t)
	hub := testutil.HubActor

	tests := []struct {
		name string
		body string
	}{
		{"unknown document type", strings.Replace(enqueueBody(testutil.SupplierA), "NotifyAggregatedMeasureData", "NotifySomething", 1)},
		{"unknown role", strings.Replace(enqueueBody(testutil.SupplierA), `"DDQ"`, `"XYZ"`, 1)},
		{"bad receiver number", strings.Replace(enqueueBody(testutil.SupplierA), "5790000000001", "57900000000AB", 1)},
		{"not json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, &hub, http.MethodPost, "/api/v1/outgoing-messages", strings.NewReader(tt.body), nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Zero(t, api.messages.Count())
}

func TestRouter_EnqueueConflictRetriesExhausted(t *testing.T) {
	api := newTestAPI(t, service.WithConflictPolicy(service.ConflictPolicy{MaxAttempts: 3}))
	attempts := 0
	api.bundles.CreateFunc = func(ctx context.Context, b *bundle.Bundle) error {
		attempts++
		return domainErrors.ErrOptimisticLockFailed
	}

	w := api.do(t, &testutil.HubActor, http.MethodPost, "/api/v1/outgoing-messages",
		strings.NewReader(enqueueBody(testutil.SupplierA)), nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "busy", resp.Code)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, api.messages.Count())
}

func TestRouter_EnqueueIdempotencyKey(t *testing.T) {
	api := newTestAPI(t)
	hub := testutil.HubActor
	body := enqueueBody(testutil.SupplierA)
	headers := map[string]string{"Idempotency-Key": "calc-42-supplier-a"}

	first := api.do(t, &hub, http.MethodPost, "/api/v1/outgoing-messages", strings.NewReader(body), headers)
	require.Equal(t, http.StatusAccepted, first.Code, first.Body.String())
	replay := api.do(t, &hub, http.MethodPost, "/api/v1/outgoing-messages", strings.NewReader(body), headers)
	require.Equal(t, http.StatusAccepted, replay.Code)

	assert.Equal(t, "true", replay.Header().Get("X-Idempotency-Replayed"))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, 1, api.messages.Count())
}

func TestHealthController_Readiness(t *testing.T) {
	ok := HealthCheck{Name: "database", Ping: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }}

	w := httptest.NewRecorder()
	NewHealthController(ok).Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"database":"ok"}}`, w.Body.String())

	w = httptest.NewRecorder()
	NewHealthController(ok, down).Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"not ready","checks":{"database":"ok","redis":"unavailable"}}`, w.Body.String())
}
