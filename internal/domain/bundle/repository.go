package bundle

import (
	"context"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/google/uuid"
)

// Repository defines the interface for bundle persistence
type Repository interface {
	// Create inserts a new bundle. Creating a second accepting bundle for
	// the same class fails with ErrOptimisticLockFailed.
	Create(ctx context.Context, b *Bundle) error

	// GetByID retrieves a bundle by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Bundle, error)

	// GetAccepting returns the bundle of the class that still accepts messages
	GetAccepting(ctx context.Context, key message.BundleKey) (*Bundle, error)

	// GetByMessageID retrieves a bundle by its delivery token
	GetByMessageID(ctx context.Context, messageID string) (*Bundle, error)

	// NextForPeek returns the bundle to offer the receiver: the oldest frozen
	// bundle, otherwise the oldest open one, among the given document types
	NextForPeek(ctx context.Context, receiver actor.Actor, types []message.DocumentType) (*Bundle, error)

	// Update updates an existing bundle with optimistic locking
	Update(ctx context.Context, b *Bundle) error

	// ListPurgeable returns dequeued bundles with DequeuedAt <= cutoff,
	// locking them for the rest of the transaction
	ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*Bundle, error)

	// DeleteByIDs removes dequeued bundles
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}
