package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `id, document_type, receiver_number, receiver_role, business_reason,
	related_to_message_id, calculation_id, external_id, grid_area, record, created_at,
	bundle_id, bundle_position`

// MessageRepository implements message.Repository using PostgreSQL.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *MessageRepository) scanMessage(s scanner) (*message.OutgoingMessage, error) {
	m := &message.OutgoingMessage{}
	var docType, number, role, reason string
	var position *int
	err := s.Scan(&m.ID, &docType, &number, &role, &reason,
		&m.RelatedToMessageID, &m.CalculationID, &m.ExternalID, &m.GridArea, &m.Record, &m.CreatedAt,
		&m.AssignedBundleID, &position)
	if err != nil {
		return nil, err
	}
	m.DocumentType = message.DocumentType(docType)
	m.Receiver = actor.Actor{Number: actor.Number(number), Role: actor.Role(role)}
	m.BusinessReason = message.BusinessReason(reason)
	if position != nil {
		m.BundlePosition = *position
	}
	return m, nil
}

// Add inserts an assigned message. A duplicate id means the message was
// already queued; a duplicate bundle position is a concurrent assignment.
func (r *MessageRepository) Add(ctx context.Context, m *message.OutgoingMessage) error {
	if m.AssignedBundleID == nil {
		return domainErrors.NewValidationError("bundle_id", "message must be assigned to a bundle")
	}
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO outgoing_messages (`+messageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.ID, string(m.DocumentType), string(m.Receiver.Number), string(m.Receiver.Role), string(m.BusinessReason),
		m.RelatedToMessageID, m.CalculationID, m.ExternalID, m.GridArea, m.Record, m.CreatedAt,
		m.AssignedBundleID, m.BundlePosition,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "outgoing_messages_pkey" {
			return domainErrors.ErrMessageAlreadyQueued
		}
		return conflictOrWrap(err, func(err error) error { return fmt.Errorf("insert outgoing message: %w", err) })
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*message.OutgoingMessage, error) {
	m, err := r.scanMessage(r.db(ctx).QueryRow(ctx,
		`SELECT `+messageColumns+` FROM outgoing_messages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrMessageNotFound
		}
		return nil, fmt.Errorf("scan outgoing message: %w", err)
	}
	return m, nil
}

func (r *MessageRepository) GetByBundle(ctx context.Context, bundleID uuid.UUID) ([]*message.OutgoingMessage, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+messageColumns+` FROM outgoing_messages
		 WHERE bundle_id = $1 ORDER BY bundle_position`, bundleID)
	if err != nil {
		return nil, fmt.Errorf("query outgoing messages: %w", err)
	}
	defer rows.Close()

	var out []*message.OutgoingMessage
	for rows.Next() {
		m, err := r.scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outgoing message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MessageRepository) DeleteByBundles(ctx context.Context, bundleIDs []uuid.UUID) (int64, error) {
	if len(bundleIDs) == 0 {
		return 0, nil
	}
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM outgoing_messages WHERE bundle_id = ANY($1)`, bundleIDs)
	if err != nil {
		return 0, fmt.Errorf("delete outgoing messages: %w", err)
	}
	return tag.RowsAffected(), nil
}
