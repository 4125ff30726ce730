package redis

import (
	"context"
	"fmt"

	"github.com/cassiomorais/edi-gateway/internal/domain/outbox"
	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// DeliveryEventStream is where peek and dequeue events are published for
// audit subscribers.
const DeliveryEventStream = "edi:delivery-events"

// EventPublisher appends delivery events to a capped Redis stream.
type EventPublisher struct {
	client redis.StreamCmdable
	stream string
	maxLen int64
}

func NewEventPublisher(client redis.StreamCmdable, stream string, maxLen int64) *EventPublisher {
	if stream == "" {
		stream = DeliveryEventStream
	}
	return &EventPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish writes one outbox entry. The entry id is carried along so that
// subscribers can drop the duplicates an at-least-once relay produces.
func (p *EventPublisher) Publish(ctx context.Context, e *outbox.Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event_id":       e.ID.String(),
			"event_type":     e.EventType,
			"aggregate_type": e.AggregateType,
			"aggregate_id":   e.AggregateID.String(),
			"payload":        string(payload),
			"created_at":     e.CreatedAt.UTC().Unix(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish delivery event: %w", err)
	}
	return nil
}

// Stream returns the stream name events are published to.
func (p *EventPublisher) Stream() string {
	return p.stream
}
