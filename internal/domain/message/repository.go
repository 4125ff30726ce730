package message

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for outgoing message persistence
type Repository interface {
	// Add inserts a message that has already been assigned to a bundle
	Add(ctx context.Context, msg *OutgoingMessage) error

	// GetByID retrieves a message by ID
	GetByID(ctx context.Context, id uuid.UUID) (*OutgoingMessage, error)

	// GetByBundle returns the messages of a bundle ordered by bundle position
	GetByBundle(ctx context.Context, bundleID uuid.UUID) ([]*OutgoingMessage, error)

	// DeleteByBundles removes all messages of the given bundles
	DeleteByBundles(ctx context.Context, bundleIDs []uuid.UUID) (int64, error)
}
