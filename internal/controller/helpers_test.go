package controller

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cassiomorais/edi-gateway/internal/codec"
	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		payload      any
		expectedBody string
	}{
		{
			name:         "simple map",
			status:       http.StatusOK,
			payload:      map[string]string{"status": "ok"},
			expectedBody: `{"status":"ok"}`,
		},
		{
			name:         "error response",
			status:       http.StatusBadRequest,
			payload:      ErrorResponse{Error: "bad request", Code: "invalid_input"},
			expectedBody: `{"error":"bad request","code":"invalid_input"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeJSON(w, tt.status, tt.payload)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestWriteError_ValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.NewValidationError("receiver_number", "must be a GLN or EIC"))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "validation_error", response.Code)
	assert.Contains(t, response.Error, "receiver_number")
}

func TestWriteError_DomainErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"unknown category", domainErrors.ErrUnknownCategory, http.StatusBadRequest, "unknown_category"},
		{"unsupported content type", domainErrors.ErrUnsupportedContentType, http.StatusBadRequest, "unsupported_content_type"},
		{"unknown message id", domainErrors.ErrUnknownMessageID, http.StatusBadRequest, "unknown_message_id"},
		{"foreign message id", domainErrors.ErrForeignMessageID, http.StatusBadRequest, "unknown_message_id"},
		{"wrapped unknown message id", fmt.Errorf("dequeue: %w", domainErrors.ErrUnknownMessageID), http.StatusBadRequest, "unknown_message_id"},
		{"already queued", domainErrors.ErrMessageAlreadyQueued, http.StatusConflict, "message_already_queued"},
		{"duplicate idempotency key", domainErrors.ErrDuplicateIdempotencyKey, http.StatusConflict, "duplicate_request"},
		{"optimistic lock failed", domainErrors.ErrOptimisticLockFailed, http.StatusConflict, "conflict"},
		{
			"retries exhausted after conflicts",
			fmt.Errorf("enqueue: %w: %w", domainErrors.ErrConcurrencyRetriesExhausted, domainErrors.ErrOptimisticLockFailed),
			http.StatusServiceUnavailable, "busy",
		},
		{"forbidden", domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
		{
			"unsupported format",
			&codec.UnsupportedFormatError{DocumentType: message.RejectRequestWholesaleSettlement, Format: message.FormatEbix},
			http.StatusBadRequest, "unsupported_format",
		},
		{
			"record encoding",
			&codec.RecordEncodingError{MessageID: uuid.New(), Err: &codec.UnmappedCodeError{Table: "quality", Value: "Guessed"}},
			http.StatusInternalServerError, "document_encoding_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedCode, response.Code)
		})
	}
}

func TestWriteError_RetriesExhausted_SetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, fmt.Errorf("peek: %w", domainErrors.ErrConcurrencyRetriesExhausted))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestWriteError_GenericDomainError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.NewDomainError("custom_error", "custom error message", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "custom_error", response.Code)
	assert.Equal(t, "custom error message", response.Error)
}

func TestWriteError_UnknownError_FallbackToInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, errors.New("unexpected error"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "internal_error", response.Code)
	assert.Equal(t, "internal server error", response.Error)
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"invalid json", `{invalid json}`, "body"},
		{"empty body", ``, "body"},
		{"missing record", `{"document_type":"NotifyAggregatedMeasureData","receiver_number":"5790000000001","receiver_role":"DDQ","business_reason":"BalanceFixing"}`, "Record"},
		{"bad grid area", `{"document_type":"NotifyAggregatedMeasureData","receiver_number":"5790000000001","receiver_role":"DDQ","business_reason":"BalanceFixing","grid_area":"80A","record":{}}`, "GridArea"},
		{"bad calculation id", `{"document_type":"NotifyAggregatedMeasureData","receiver_number":"5790000000001","receiver_role":"DDQ","business_reason":"BalanceFixing","calculation_id":"nope","record":{}}`, "CalculationID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/outgoing-messages", strings.NewReader(tt.body))

			var dst EnqueueMessageRequest
			err := decodeAndValidate(req, &dst)

			var validationErr *domainErrors.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.wantField, validationErr.Field)
		})
	}
}

func TestEnqueueMessageRequest_ToParams(t *testing.T) {
	related := uuid.NewString()
	req := EnqueueMessageRequest{
		DocumentType:       string(message.NotifyAggregatedMeasureData),
		ReceiverNumber:     "5790000000001",
		ReceiverRole:       "DDQ",
		BusinessReason:     string(message.BalanceFixing),
		RelatedToMessageID: &related,
		Record:             json.RawMessage(`{"transactionId":"t1"}`),
	}

	p, err := req.ToParams()
	require.NoError(t, err)
	assert.Equal(t, "5790000000001/DDQ", p.Receiver.String())
	require.NotNil(t, p.RelatedToMessageID)
	assert.Equal(t, related, p.RelatedToMessageID.String())
	assert.Nil(t, p.CalculationID)
	assert.JSONEq(t, `{"transactionId":"t1"}`, string(p.Record))

	req.ReceiverRole = "XXX"
	_, err = req.ToParams()
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
}
