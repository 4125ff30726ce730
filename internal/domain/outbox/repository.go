package outbox

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores delivery events next to the bundle writes that raise
// them. Insert joins the caller's transaction; the relay reads and marks
// entries inside one transaction of its own.
type Repository interface {
	Insert(ctx context.Context, entry *Entry) error

	// GetPending returns up to limit pending entries, oldest first. Rows
	// returned are held by the caller's transaction until it ends.
	GetPending(ctx context.Context, limit int) ([]*Entry, error)

	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed counts a failed publish. The entry turns StatusFailed once
	// it has used up MaxRetries and is then left for an operator.
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
