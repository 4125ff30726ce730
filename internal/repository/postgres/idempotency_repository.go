package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyEntry is a stored response of the enqueue endpoint. Key is
// already scoped to the calling actor. RequestHash fingerprints the request
// that produced the response.
type IdempotencyEntry struct {
	Key            string
	RequestHash    string
	ContentType    string
	ResponseBody   string
	ResponseStatus int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

type IdempotencyRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool, now: time.Now}
}

// Get returns nil, nil for unknown or expired keys.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*IdempotencyEntry, error) {
	e := &IdempotencyEntry{}
	err := ConnFromCtx(ctx, r.pool).QueryRow(ctx,
		`SELECT key, request_hash, content_type, response_body, response_status, created_at, expires_at
		 FROM idempotency_keys WHERE key = $1 AND expires_at > $2`, key, r.now().UTC(),
	).Scan(&e.Key, &e.RequestHash, &e.ContentType, &e.ResponseBody, &e.ResponseStatus, &e.CreatedAt, &e.ExpiresAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get idempotency key %q: %w", key, err)
	}
	return e, nil
}

// Set stores the first response for a key. An expired row under the same
// key is replaced; a live one is kept.
func (r *IdempotencyRepository) Set(ctx context.Context, e *IdempotencyEntry) error {
	_, err := ConnFromCtx(ctx, r.pool).Exec(ctx,
		`INSERT INTO idempotency_keys (key, request_hash, content_type, response_body, response_status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (key) DO UPDATE SET
		     request_hash = EXCLUDED.request_hash,
		     content_type = EXCLUDED.content_type,
		     response_body = EXCLUDED.response_body,
		     response_status = EXCLUDED.response_status,
		     created_at = EXCLUDED.created_at,
		     expires_at = EXCLUDED.expires_at
		 WHERE idempotency_keys.expires_at <= EXCLUDED.created_at`,
		e.Key, e.RequestHash, e.ContentType, e.ResponseBody, e.ResponseStatus, e.CreatedAt.UTC(), e.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("set idempotency key %q: %w", e.Key, err)
	}
	return nil
}

// Cleanup deletes expired keys and returns how many were removed.
func (r *IdempotencyRepository) Cleanup(ctx context.Context) (int64, error) {
	tag, err := ConnFromCtx(ctx, r.pool).Exec(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
