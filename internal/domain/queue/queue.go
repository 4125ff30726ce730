package queue

import (
	"sort"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/bundle"
	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
)

// ActorMessageQueue is the logical queue of one (number, role) pair.
// It is not stored on its own; its state is the receiver's bundles.
type ActorMessageQueue struct {
	Receiver        actor.Actor
	MaxMessageCount int
}

func New(receiver actor.Actor, maxMessageCount int) (*ActorMessageQueue, error) {
	if err := receiver.Validate(); err != nil {
		return nil, err
	}
	if maxMessageCount <= 0 {
		return nil, errors.NewValidationError("max_message_count", "must be greater than 0")
	}
	return &ActorMessageQueue{Receiver: receiver, MaxMessageCount: maxMessageCount}, nil
}

// Placement is the outcome of placing a message in the queue.
type Placement struct {
	Bundle  *bundle.Bundle
	Created bool
}

// Place assigns the message to the accepting bundle of its class, or to a
// freshly opened bundle when current is nil, frozen or full. The caller
// persists the returned bundle with a version check.
func (q *ActorMessageQueue) Place(msg *message.OutgoingMessage, current *bundle.Bundle) (Placement, error) {
	if msg.Receiver != q.Receiver {
		return Placement{}, errors.NewValidationError("receiver", "message belongs to another queue")
	}

	if current != nil && current.Key() != msg.Key() {
		return Placement{}, errors.NewValidationError("bundle", "bundle class does not match message")
	}

	p := Placement{Bundle: current}
	if current == nil || !current.AcceptsMessages() {
		b, err := bundle.New(msg.Key(), q.MaxMessageCount)
		if err != nil {
			return Placement{}, err
		}
		p = Placement{Bundle: b, Created: true}
	}

	position, err := p.Bundle.AddMessage()
	if err != nil {
		return Placement{}, err
	}
	if err := msg.AssignTo(p.Bundle.ID, position); err != nil {
		return Placement{}, err
	}
	return p, nil
}

// NextForPeek picks the bundle to offer: the oldest frozen bundle so that a
// retried peek sees the same document, otherwise the oldest open bundle.
// Dequeued bundles and bundles outside types are never offered.
func (q *ActorMessageQueue) NextForPeek(bundles []*bundle.Bundle, types []message.DocumentType) *bundle.Bundle {
	allowed := make(map[message.DocumentType]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}

	candidates := make([]*bundle.Bundle, 0, len(bundles))
	for _, b := range bundles {
		if b.Receiver != q.Receiver || b.IsDequeued() {
			continue
		}
		if _, ok := allowed[b.DocumentType]; !ok {
			continue
		}
		candidates = append(candidates, b)
	}
	if len(candidates) == 0 {
		return nil
	}

	SortForPeek(candidates)
	return candidates[0]
}

// SortForPeek orders bundles by peek preference: frozen before open, then by
// creation time, then by id.
func SortForPeek(bundles []*bundle.Bundle) {
	sort.SliceStable(bundles, func(i, j int) bool {
		a, b := bundles[i], bundles[j]
		if a.IsClosedForAssignment() != b.IsClosedForAssignment() {
			return a.IsClosedForAssignment()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}
