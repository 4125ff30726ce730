package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/edi-gateway/internal/domain/document"
	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, bundle_id, format, message_id, payload, blob_ref, created_at`

// DocumentRepository implements document.Repository using PostgreSQL.
// Payload is only stored when the inline storage backend is used.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

func (r *DocumentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *DocumentRepository) scanDocument(s scanner) (*document.MarketDocument, error) {
	d := &document.MarketDocument{}
	var format string
	if err := s.Scan(&d.ID, &d.BundleID, &format, &d.MessageID, &d.Payload, &d.BlobRef, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Format = message.DocumentFormat(format)
	return d, nil
}

func (r *DocumentRepository) Add(ctx context.Context, d *document.MarketDocument) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO market_documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.BundleID, string(d.Format), d.MessageID, d.Payload, d.BlobRef, d.CreatedAt,
	)
	if err != nil {
		return conflictOrWrap(err, func(err error) error { return fmt.Errorf("insert market document: %w", err) })
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, bundleID uuid.UUID, format message.DocumentFormat) (*document.MarketDocument, error) {
	d, err := r.scanDocument(r.db(ctx).QueryRow(ctx,
		`SELECT `+documentColumns+` FROM market_documents WHERE bundle_id = $1 AND format = $2`,
		bundleID, string(format)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("scan market document: %w", err)
	}
	return d, nil
}

// ListByBundles omits payloads; callers only need blob references.
func (r *DocumentRepository) ListByBundles(ctx context.Context, bundleIDs []uuid.UUID) ([]*document.MarketDocument, error) {
	if len(bundleIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, bundle_id, format, message_id, NULL::bytea, blob_ref, created_at
		 FROM market_documents WHERE bundle_id = ANY($1) ORDER BY bundle_id, format`, bundleIDs)
	if err != nil {
		return nil, fmt.Errorf("query market documents: %w", err)
	}
	defer rows.Close()

	var out []*document.MarketDocument
	for rows.Next() {
		d, err := r.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DocumentRepository) DeleteByBundles(ctx context.Context, bundleIDs []uuid.UUID) (int64, error) {
	if len(bundleIDs) == 0 {
		return 0, nil
	}
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM market_documents WHERE bundle_id = ANY($1)`, bundleIDs)
	if err != nil {
		return 0, fmt.Errorf("delete market documents: %w", err)
	}
	return tag.RowsAffected(), nil
}
