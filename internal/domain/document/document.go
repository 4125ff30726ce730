package document

import (
	"context"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/google/uuid"
)

// MarketDocument is a generated encoding of a bundle in one format.
// A bundle has at most one document per format and all share the bundle's MessageID.
type MarketDocument struct {
	ID        uuid.UUID
	BundleID  uuid.UUID
	Format    message.DocumentFormat
	MessageID string
	// Payload holds the bytes when stored inline. BlobRef is set when the
	// bytes live in an external blob store.
	Payload   []byte
	BlobRef   *string
	CreatedAt time.Time
}

func New(bundleID uuid.UUID, format message.DocumentFormat, messageID string, payload []byte) (*MarketDocument, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if messageID == "" {
		return nil, errors.NewValidationError("message_id", "cannot be empty")
	}
	return &MarketDocument{
		ID:        uuid.New(),
		BundleID:  bundleID,
		Format:    format,
		MessageID: messageID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// BlobName is the object name used by external blob stores. It is unique per
// document, so a losing concurrent peek never overwrites the winner's blob.
func (d *MarketDocument) BlobName() string {
	return d.BundleID.String() + "/" + string(d.Format) + "/" + d.ID.String()
}

// Repository defines the interface for market document persistence
type Repository interface {
	// Add inserts a document. A second document for the same bundle and
	// format fails with ErrOptimisticLockFailed.
	Add(ctx context.Context, doc *MarketDocument) error

	// Get retrieves the document of a bundle in the given format
	Get(ctx context.Context, bundleID uuid.UUID, format message.DocumentFormat) (*MarketDocument, error)

	// ListByBundles returns all documents of the given bundles
	ListByBundles(ctx context.Context, bundleIDs []uuid.UUID) ([]*MarketDocument, error)

	// DeleteByBundles removes all documents of the given bundles
	DeleteByBundles(ctx context.Context, bundleIDs []uuid.UUID) (int64, error)
}

// Storage keeps document bytes. Store runs inside the peek transaction,
// Purge runs after the retention transaction has committed.
type Storage interface {
	Store(ctx context.Context, doc *MarketDocument) error
	Load(ctx context.Context, doc *MarketDocument) ([]byte, error)
	Purge(ctx context.Context, docs []*MarketDocument) error
}
