package controller

import (
	"errors"
	"net/http"

	"github.com/cassiomorais/edi-gateway/internal/codec"
	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

// Actors rely on 400 for every rejected peek or dequeue request. Exhausted
// retries wrap the last conflict, so they are matched before it.
var errorMappings = []errorMapping{
	{domainErrors.ErrUnknownCategory, http.StatusBadRequest, "unknown_category"},
	{domainErrors.ErrUnsupportedContentType, http.StatusBadRequest, "unsupported_content_type"},
	{domainErrors.ErrUnknownMessageID, http.StatusBadRequest, "unknown_message_id"},
	{domainErrors.ErrForeignMessageID, http.StatusBadRequest, "unknown_message_id"},
	{domainErrors.ErrMessageAlreadyQueued, http.StatusConflict, "message_already_queued"},
	{domainErrors.ErrDuplicateIdempotencyKey, http.StatusConflict, "duplicate_request"},
	{domainErrors.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{domainErrors.ErrConcurrencyRetriesExhausted, http.StatusServiceUnavailable, "busy"},
	{domainErrors.ErrOptimisticLockFailed, http.StatusConflict, "conflict"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	var unsupported *codec.UnsupportedFormatError
	if errors.As(err, &unsupported) {
		resp.Code = "unsupported_format"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			switch m.err {
			case domainErrors.ErrOptimisticLockFailed:
				resp.Error = "concurrent modification, please retry"
			case domainErrors.ErrConcurrencyRetriesExhausted:
				w.Header().Set("Retry-After", "1")
				resp.Error = "queue is busy, please retry"
			}
			writeJSON(w, m.status, resp)
			return
		}
	}

	var (
		recordErr   *codec.RecordEncodingError
		unmappedErr *codec.UnmappedCodeError
	)
	if errors.As(err, &recordErr) || errors.As(err, &unmappedErr) {
		// The service already logged the offending message.
		resp.Code = "document_encoding_failed"
		resp.Error = "document could not be generated"
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
