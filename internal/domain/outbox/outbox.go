package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a delivery event written in the same transaction as the bundle
// state change it describes, and relayed to audit subscribers later.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

const (
	AggregateBundle = "bundle"

	EventBundlePeeked   = "bundle.peeked"
	EventBundleDequeued = "bundle.dequeued"
)

func NewEntry(aggregateType string, aggregateID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		RetryCount:    0,
		MaxRetries:    5,
		CreatedAt:     time.Now(),
	}
}

// DeliveryEvent describes a peek or dequeue of one bundle.
type DeliveryEvent struct {
	BundleID       uuid.UUID
	MessageID      string
	ReceiverNumber string
	ReceiverRole   string
	DocumentType   string
	BusinessReason string
	Format         string
	MessageCount   int
	OccurredAt     time.Time
}

func NewBundlePeeked(e DeliveryEvent) *Entry {
	payload := e.payload()
	payload["document_format"] = e.Format
	return NewEntry(AggregateBundle, e.BundleID, EventBundlePeeked, payload)
}

func NewBundleDequeued(e DeliveryEvent) *Entry {
	return NewEntry(AggregateBundle, e.BundleID, EventBundleDequeued, e.payload())
}

func (e DeliveryEvent) payload() map[string]any {
	return map[string]any{
		"bundle_id":       e.BundleID.String(),
		"message_id":      e.MessageID,
		"receiver_number": e.ReceiverNumber,
		"receiver_role":   e.ReceiverRole,
		"document_type":   e.DocumentType,
		"business_reason": e.BusinessReason,
		"message_count":   e.MessageCount,
		"occurred_at":     e.OccurredAt.UTC().Format(time.RFC3339),
	}
}
