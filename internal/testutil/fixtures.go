package testutil

import (
	"fmt"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/bundle"
	"github.com/cassiomorais/edi-gateway/internal/domain/document"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/google/uuid"
)

var (
	// HubActor is the sender of every generated document.
	HubActor = actor.Actor{Number: "5790001330583", Role: actor.RoleDataHubAdministrator}

	SupplierA = actor.Actor{Number: "5790000000001", Role: actor.RoleEnergySupplier}
	SupplierB = actor.Actor{Number: "5790000000002", Role: actor.RoleEnergySupplier}
	GridB     = actor.Actor{Number: "5790000000002", Role: actor.RoleGridAccessProvider}
)

// AggregatedRecord returns a valid aggregated measure data record with n points.
func AggregatedRecord(transactionID string, n int) []byte {
	points := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			points += ","
		}
		points += fmt.Sprintf(`{"position":%d,"quantity":"%d.5","quality":"Measured"}`, i, i)
	}
	return []byte(fmt.Sprintf(`{
		"transactionId":%q,
		"gridAreaCode":"804",
		"meteringPointType":"Consumption",
		"settlementMethod":"Flex",
		"measureUnit":"KilowattHour",
		"resolution":"Hourly",
		"period":{"start":"2026-01-01T00:00:00Z","end":"2026-01-02T00:00:00Z"},
		"points":[%s]
	}`, transactionID, points))
}

// ValidatedRecord returns a valid validated measure data record.
func ValidatedRecord(transactionID string) []byte {
	return []byte(fmt.Sprintf(`{
		"transactionId":%q,
		"meteringPointId":"571313180400100657",
		"meteringPointType":"Consumption",
		"measureUnit":"KilowattHour",
		"resolution":"QuarterHourly",
		"period":{"start":"2026-01-01T00:00:00Z","end":"2026-01-01T01:00:00Z"},
		"points":[{"position":1,"quantity":"1.000","quality":"Measured"}]
	}`, transactionID))
}

// NewTestMessage builds an unassigned aggregated measure data message for receiver.
func NewTestMessage(receiver actor.Actor, reason message.BusinessReason) *message.OutgoingMessage {
	msg, err := message.New(message.Params{
		DocumentType:   message.NotifyAggregatedMeasureData,
		Receiver:       receiver,
		BusinessReason: reason,
		Record:         AggregatedRecord(uuid.NewString(), 2),
	})
	if err != nil {
		panic(err)
	}
	return msg
}

// NewTestMessageOfType builds an unassigned message with a record matching the type.
func NewTestMessageOfType(receiver actor.Actor, dt message.DocumentType, reason message.BusinessReason) *message.OutgoingMessage {
	record := AggregatedRecord(uuid.NewString(), 1)
	if dt == message.NotifyValidatedMeasureData {
		record = ValidatedRecord(uuid.NewString())
	}
	msg, err := message.New(message.Params{
		DocumentType:   dt,
		Receiver:       receiver,
		BusinessReason: reason,
		Record:         record,
	})
	if err != nil {
		panic(err)
	}
	return msg
}

// NewDequeuedBundle returns a bundle that was dequeued at dequeuedAt.
func NewDequeuedBundle(receiver actor.Actor, dequeuedAt time.Time) *bundle.Bundle {
	b, err := bundle.New(message.BundleKey{
		Receiver:       receiver,
		DocumentType:   message.NotifyAggregatedMeasureData,
		BusinessReason: message.BalanceFixing,
	}, bundle.DefaultMaxMessageCount)
	if err != nil {
		panic(err)
	}
	if _, err := b.AddMessage(); err != nil {
		panic(err)
	}
	if _, err := b.Freeze(uuid.NewString(), dequeuedAt.Add(-time.Minute)); err != nil {
		panic(err)
	}
	if _, err := b.Dequeue(dequeuedAt); err != nil {
		panic(err)
	}
	return b
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func cloneMessage(m *message.OutgoingMessage) *message.OutgoingMessage {
	c := *m
	c.Record = append([]byte(nil), m.Record...)
	if m.AssignedBundleID != nil {
		id := *m.AssignedBundleID
		c.AssignedBundleID = &id
	}
	return &c
}

func cloneBundle(b *bundle.Bundle) *bundle.Bundle {
	c := *b
	if b.MessageID != nil {
		v := *b.MessageID
		c.MessageID = &v
	}
	if b.ClosedAt != nil {
		v := *b.ClosedAt
		c.ClosedAt = &v
	}
	if b.DequeuedAt != nil {
		v := *b.DequeuedAt
		c.DequeuedAt = &v
	}
	return &c
}

func cloneDocument(d *document.MarketDocument) *document.MarketDocument {
	c := *d
	c.Payload = append([]byte(nil), d.Payload...)
	if d.BlobRef != nil {
		v := *d.BlobRef
		c.BlobRef = &v
	}
	return &c
}
