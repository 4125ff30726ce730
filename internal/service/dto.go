package service

import (
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/google/uuid"
)

// Controllers convert their HTTP DTOs to this type.
type PeekRequest struct {
	Receiver actor.Actor
	// Category is optional; empty peeks every document type.
	Category message.Category
	Format   message.DocumentFormat
}

type PeekResult struct {
	Found     bool
	BundleID  uuid.UUID
	MessageID string
	Format    message.DocumentFormat
	Document  []byte
	// Generated is true when this peek produced the document.
	Generated bool
}

type RetentionResult struct {
	Cutoff          time.Time
	Batches         int
	PurgedBundles   int64
	PurgedMessages  int64
	PurgedDocuments int64
}
