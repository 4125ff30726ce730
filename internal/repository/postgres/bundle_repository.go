package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/bundle"
	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bundleColumns = `id, receiver_number, receiver_role, document_type, business_reason,
	max_message_count, message_count, message_id, closed_at, dequeued_at, version, created_at`

// BundleRepository implements bundle.Repository using PostgreSQL.
type BundleRepository struct {
	pool *pgxpool.Pool
}

// NewBundleRepository creates a new BundleRepository.
func NewBundleRepository(pool *pgxpool.Pool) *BundleRepository {
	return &BundleRepository{pool: pool}
}

func (r *BundleRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *BundleRepository) scanBundle(s scanner) (*bundle.Bundle, error) {
	b := &bundle.Bundle{}
	var number, role, docType, reason string
	err := s.Scan(&b.ID, &number, &role, &docType, &reason,
		&b.MaxMessageCount, &b.MessageCount, &b.MessageID, &b.ClosedAt, &b.DequeuedAt, &b.Version, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.Receiver = actor.Actor{Number: actor.Number(number), Role: actor.Role(role)}
	b.DocumentType = message.DocumentType(docType)
	b.BusinessReason = message.BusinessReason(reason)
	return b, nil
}

// getOne returns nil, nil when no row matches.
func (r *BundleRepository) getOne(ctx context.Context, query string, args ...any) (*bundle.Bundle, error) {
	b, err := r.scanBundle(r.db(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan bundle: %w", err)
	}
	return b, nil
}

func (r *BundleRepository) list(ctx context.Context, query string, args ...any) ([]*bundle.Bundle, error) {
	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bundles: %w", err)
	}
	defer rows.Close()

	var out []*bundle.Bundle
	for rows.Next() {
		b, err := r.scanBundle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Create inserts a new bundle. The partial unique index on accepting bundles
// turns a concurrent second accepting bundle of the class into a conflict.
func (r *BundleRepository) Create(ctx context.Context, b *bundle.Bundle) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO bundles (`+bundleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, string(b.Receiver.Number), string(b.Receiver.Role), string(b.DocumentType), string(b.BusinessReason),
		b.MaxMessageCount, b.MessageCount, b.MessageID, b.ClosedAt, b.DequeuedAt, b.Version, b.CreatedAt,
	)
	if err != nil {
		return conflictOrWrap(err, func(err error) error { return fmt.Errorf("insert bundle: %w", err) })
	}
	return nil
}

func (r *BundleRepository) GetByID(ctx context.Context, id uuid.UUID) (*bundle.Bundle, error) {
	b, err := r.getOne(ctx, `SELECT `+bundleColumns+` FROM bundles WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, domainErrors.ErrBundleNotFound
	}
	return b, nil
}

func (r *BundleRepository) GetAccepting(ctx context.Context, key message.BundleKey) (*bundle.Bundle, error) {
	return r.getOne(ctx,
		`SELECT `+bundleColumns+` FROM bundles
		 WHERE receiver_number = $1 AND receiver_role = $2 AND document_type = $3 AND business_reason = $4
		   AND closed_at IS NULL AND message_count < max_message_count`,
		string(key.Receiver.Number), string(key.Receiver.Role), string(key.DocumentType), string(key.BusinessReason),
	)
}

func (r *BundleRepository) GetByMessageID(ctx context.Context, messageID string) (*bundle.Bundle, error) {
	b, err := r.getOne(ctx, `SELECT `+bundleColumns+` FROM bundles WHERE message_id = $1`, messageID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, domainErrors.ErrBundleNotFound
	}
	return b, nil
}

// NextForPeek orders candidates like queue.SortForPeek: frozen first, then
// oldest, then by id.
func (r *BundleRepository) NextForPeek(ctx context.Context, receiver actor.Actor, types []message.DocumentType) (*bundle.Bundle, error) {
	if len(types) == 0 {
		return nil, nil
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return r.getOne(ctx,
		`SELECT `+bundleColumns+` FROM bundles
		 WHERE receiver_number = $1 AND receiver_role = $2 AND document_type = ANY($3)
		   AND dequeued_at IS NULL
		 ORDER BY (closed_at IS NULL), created_at, id
		 LIMIT 1`,
		string(receiver.Number), string(receiver.Role), names,
	)
}

// Update updates a bundle with optimistic locking.
func (r *BundleRepository) Update(ctx context.Context, b *bundle.Bundle) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE bundles SET message_count = $1, message_id = $2, closed_at = $3, dequeued_at = $4, version = $5
		 WHERE id = $6 AND version = $7`,
		b.MessageCount, b.MessageID, b.ClosedAt, b.DequeuedAt, b.Version, b.ID, b.Version-1,
	)
	if err != nil {
		return conflictOrWrap(err, func(err error) error { return fmt.Errorf("update bundle: %w", err) })
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrOptimisticLockFailed
	}
	return nil
}

func (r *BundleRepository) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*bundle.Bundle, error) {
	if limit <= 0 {
		limit = 500
	}
	return r.list(ctx,
		`SELECT `+bundleColumns+` FROM bundles
		 WHERE dequeued_at IS NOT NULL AND dequeued_at <= $1
		 ORDER BY dequeued_at, id
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		cutoff, limit,
	)
}

func (r *BundleRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM bundles WHERE id = ANY($1) AND dequeued_at IS NOT NULL`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete bundles: %w", err)
	}
	return tag.RowsAffected(), nil
}
