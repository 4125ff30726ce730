package blobstore

import (
	"context"

	"github.com/cassiomorais/edi-gateway/internal/domain/document"
	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
)

// Inline keeps document bytes in the market_documents row itself. Store and
// Purge have nothing to do because the row is written and deleted by the
// document repository inside the calling transaction.
type Inline struct{}

func NewInline() *Inline {
	return &Inline{}
}

func (s *Inline) Store(ctx context.Context, doc *document.MarketDocument) error {
	if len(doc.Payload) == 0 {
		return errors.NewValidationError("payload", "inline documents need a payload")
	}
	return ctx.Err()
}

func (s *Inline) Load(_ context.Context, doc *document.MarketDocument) ([]byte, error) {
	if doc.Payload == nil {
		return nil, errors.ErrDocumentNotFound
	}
	return doc.Payload, nil
}

func (s *Inline) Purge(context.Context, []*document.MarketDocument) error {
	return nil
}
