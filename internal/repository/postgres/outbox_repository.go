package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/outbox"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload, status, retry_count, max_retries, created_at, published_at`

const defaultOutboxBatch = 100

// OutboxRepository stores delivery events until the worker relays them.
type OutboxRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool, now: time.Now}
}

func (r *OutboxRepository) Insert(ctx context.Context, e *outbox.Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", e.EventType, err)
	}
	_, err = ConnFromCtx(ctx, r.pool).Exec(ctx,
		`INSERT INTO outbox (`+outboxColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL)`,
		e.ID, e.AggregateType, e.AggregateID, e.EventType, payload,
		string(e.Status), e.RetryCount, e.MaxRetries, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert %s event for bundle %s: %w", e.EventType, e.AggregateID, err)
	}
	return nil
}

// GetPending locks the returned rows with SKIP LOCKED, so two relays never
// publish the same entry. It must run inside the transaction that marks them.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}
	rows, err := ConnFromCtx(ctx, r.pool).Query(ctx,
		`SELECT `+outboxColumns+` FROM outbox
		 WHERE status = $1
		 ORDER BY created_at, id
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`, string(outbox.StatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get pending outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []*outbox.Entry
	for rows.Next() {
		e, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	_, err := ConnFromCtx(ctx, r.pool).Exec(ctx,
		`UPDATE outbox SET status = $1, published_at = $2 WHERE id = $3`,
		string(outbox.StatusPublished), r.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox entry %s published: %w", id, err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := ConnFromCtx(ctx, r.pool).Exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1,
		        status = CASE WHEN retry_count + 1 >= max_retries THEN $1 ELSE $2 END
		 WHERE id = $3`,
		string(outbox.StatusFailed), string(outbox.StatusPending), id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox entry %s failed: %w", id, err)
	}
	return nil
}

// DeletePublished removes relayed events older than before. Failed events
// stay until an operator looks at them.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) (int64, error) {
	tag, err := ConnFromCtx(ctx, r.pool).Exec(ctx,
		`DELETE FROM outbox WHERE status = $1 AND published_at < $2`, string(outbox.StatusPublished), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete published outbox entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByStatus reports the outbox backlog per status.
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[outbox.Status]int64, error) {
	rows, err := ConnFromCtx(ctx, r.pool).Query(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count outbox entries: %w", err)
	}
	defer rows.Close()

	counts := map[outbox.Status]int64{
		outbox.StatusPending:   0,
		outbox.StatusPublished: 0,
		outbox.StatusFailed:    0,
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan outbox count: %w", err)
		}
		counts[outbox.Status(status)] = n
	}
	return counts, rows.Err()
}

func scanOutboxEntry(row scanner) (*outbox.Entry, error) {
	var (
		e       outbox.Entry
		payload []byte
		status  string
	)
	if err := row.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &payload,
		&status, &e.RetryCount, &e.MaxRetries, &e.CreatedAt, &e.PublishedAt); err != nil {
		return nil, fmt.Errorf("scan outbox entry: %w", err)
	}
	e.Status = outbox.Status(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload of outbox entry %s: %w", e.ID, err)
		}
	}
	return &e, nil
}
