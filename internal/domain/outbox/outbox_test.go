package outbox

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	aggregateID := uuid.New()
	payload := map[string]any{
		"bundle_id":  aggregateID.String(),
		"message_id": "M1",
	}

	entry := NewEntry(AggregateBundle, aggregateID, EventBundlePeeked, payload)

	require.NotNil(t, entry)
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, "bundle", entry.AggregateType)
	assert.Equal(t, aggregateID, entry.AggregateID)
	assert.Equal(t, "bundle.peeked", entry.EventType)
	assert.Equal(t, payload, entry.Payload)
	assert.Equal(t, StatusPending, entry.Status)
	assert.Equal(t, 0, entry.RetryCount)
	assert.Equal(t, 5, entry.MaxRetries)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Nil(t, entry.PublishedAt)
}

func TestStatus_Constants(t *testing.T) {
	assert.Equal(t, Status("pending"), StatusPending)
	assert.Equal(t, Status("published"), StatusPublished)
	assert.Equal(t, Status("failed"), StatusFailed)
}

func TestEntry_UniqueIDs(t *testing.T) {
	aggregateID := uuid.New()
	entry1 := NewEntry(AggregateBundle, aggregateID, EventBundleDequeued, nil)
	entry2 := NewEntry(AggregateBundle, aggregateID, EventBundleDequeued, nil)

	assert.NotEqual(t, entry1.ID, entry2.ID)
	assert.Equal(t, entry1.AggregateID, entry2.AggregateID)
}

func TestDeliveryEvents(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)
	e := DeliveryEvent{
		BundleID:       uuid.New(),
		MessageID:      "M1",
		ReceiverNumber: "5790001330583",
		ReceiverRole:   "DDQ",
		DocumentType:   "NotifyAggregatedMeasureData",
		BusinessReason: "BalanceFixing",
		Format:         "CIM-XML",
		MessageCount:   3,
		OccurredAt:     at,
	}

	tests := []struct {
		name       string
		entry      *Entry
		eventType  string
		wantFormat bool
	}{
		{"peeked", NewBundlePeeked(e), EventBundlePeeked, true},
		{"dequeued", NewBundleDequeued(e), EventBundleDequeued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.eventType, tt.entry.EventType)
			assert.Equal(t, AggregateBundle, tt.entry.AggregateType)
			assert.Equal(t, e.BundleID, tt.entry.AggregateID)
			assert.Equal(t, "M1", tt.entry.Payload["message_id"])
			assert.Equal(t, 3, tt.entry.Payload["message_count"])
			assert.Equal(t, "2026-05-01T10:30:00Z", tt.entry.Payload["occurred_at"])
			_, hasFormat := tt.entry.Payload["document_format"]
			assert.Equal(t, tt.wantFormat, hasFormat)
		})
	}
}
