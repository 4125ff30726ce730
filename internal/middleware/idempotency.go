package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/repository/postgres"
	"github.com/rs/zerolog/log"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotencyReplayedHeader = "X-Idempotency-Replayed"

	maxIdempotencyBodySize = 1 << 20
)

// IdempotencyStore persists responses by idempotency key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*postgres.IdempotencyEntry, error)
	Set(ctx context.Context, entry *postgres.IdempotencyEntry) error
}

// Idempotency replays the stored response of a request carrying a known
// Idempotency-Key. Keys are scoped to the calling actor, and a key reused
// for a different request body is rejected with 409.
func Idempotency(store IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if a, ok := GetActor(r.Context()); ok {
				key = a.String() + ":" + key
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotencyBodySize+1))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_body", "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := requestHash(r, body)

			entry, err := store.Get(r.Context(), key)
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Str("idempotency_key", key).Msg("idempotency lookup failed")
			}
			if entry != nil {
				if entry.RequestHash != hash {
					writeError(w, http.StatusConflict, "duplicate_request",
						domainErrors.ErrDuplicateIdempotencyKey.Error()+": key was used for a different request")
					return
				}
				w.Header().Set("Content-Type", entry.ContentType)
				w.Header().Set(IdempotencyReplayedHeader, "true")
				w.WriteHeader(entry.ResponseStatus)
				w.Write([]byte(entry.ResponseBody))
				return
			}

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			// 5xx and 409 outcomes may succeed on a retry with the same key.
			if rec.statusCode >= 500 || rec.statusCode == http.StatusConflict || rec.bodyTruncated {
				return
			}
			now := time.Now()
			err = store.Set(r.Context(), &postgres.IdempotencyEntry{
				Key:            key,
				RequestHash:    hash,
				ContentType:    rec.Header().Get("Content-Type"),
				ResponseBody:   rec.body.String(),
				ResponseStatus: rec.statusCode,
				CreatedAt:      now,
				ExpiresAt:      now.Add(ttl),
			})
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Str("idempotency_key", key).Msg("storing idempotent response failed")
			}
		})
	}
}

func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	body          *bytes.Buffer
	bodyTruncated bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.bodyTruncated {
		if r.body.Len()+len(b) > maxIdempotencyBodySize {
			r.bodyTruncated = true
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}
