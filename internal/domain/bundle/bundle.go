package bundle

import (
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/google/uuid"
)

// State is derived from the bundle's timestamps. Purged bundles no longer exist.
type State string

const (
	StateOpen     State = "open"
	StateFrozen   State = "frozen"
	StateDequeued State = "dequeued"
)

// DefaultMaxMessageCount caps the number of messages in one bundle.
const DefaultMaxMessageCount = 500

// Bundle is the delivery unit: messages of one class that are peeked and dequeued together.
type Bundle struct {
	ID              uuid.UUID
	Receiver        actor.Actor
	DocumentType    message.DocumentType
	BusinessReason  message.BusinessReason
	MaxMessageCount int
	MessageCount    int
	// MessageID is the delivery token minted at first peek.
	MessageID  *string
	ClosedAt   *time.Time
	DequeuedAt *time.Time
	Version    int // Optimistic locking
	CreatedAt  time.Time
}

// New opens an empty bundle for the class.
func New(key message.BundleKey, maxMessageCount int) (*Bundle, error) {
	if maxMessageCount <= 0 {
		return nil, errors.NewValidationError("max_message_count", "must be greater than 0")
	}
	if err := key.Receiver.Validate(); err != nil {
		return nil, err
	}
	return &Bundle{
		ID:              uuid.New(),
		Receiver:        key.Receiver,
		DocumentType:    key.DocumentType,
		BusinessReason:  key.BusinessReason,
		MaxMessageCount: maxMessageCount,
		Version:         0,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

func (b *Bundle) Key() message.BundleKey {
	return message.BundleKey{
		Receiver:       b.Receiver,
		DocumentType:   b.DocumentType,
		BusinessReason: b.BusinessReason,
	}
}

func (b *Bundle) State() State {
	switch {
	case b.DequeuedAt != nil:
		return StateDequeued
	case b.ClosedAt != nil:
		return StateFrozen
	default:
		return StateOpen
	}
}

// IsClosedForAssignment reports whether a peek has frozen the bundle.
func (b *Bundle) IsClosedForAssignment() bool {
	return b.ClosedAt != nil
}

func (b *Bundle) IsDequeued() bool {
	return b.DequeuedAt != nil
}

// IsFull is a query; a full bundle stays open until it is peeked.
func (b *Bundle) IsFull() bool {
	return b.MessageCount >= b.MaxMessageCount
}

// AcceptsMessages reports whether a new message of the class may join this bundle.
func (b *Bundle) AcceptsMessages() bool {
	return b.State() == StateOpen && !b.IsFull()
}

// CanTransitionTo checks if the bundle can move to the given state
func (b *Bundle) CanTransitionTo(next State) bool {
	transitions := map[State][]State{
		StateOpen:     {StateFrozen},
		StateFrozen:   {StateDequeued},
		StateDequeued: {}, // Terminal until purged
	}

	for _, allowed := range transitions[b.State()] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AddMessage reserves the next position in the bundle for a message.
func (b *Bundle) AddMessage() (int, error) {
	if b.IsClosedForAssignment() {
		return 0, errors.ErrBundleClosed
	}
	if b.IsFull() {
		return 0, errors.ErrBundleFull
	}
	b.MessageCount++
	b.Version++
	return b.MessageCount, nil
}

// Freeze closes the bundle for assignment and records the delivery token.
// Freezing a frozen bundle is a no-op; freezing a dequeued bundle fails.
func (b *Bundle) Freeze(messageID string, now time.Time) (bool, error) {
	if b.State() == StateFrozen {
		return false, nil
	}
	if !b.CanTransitionTo(StateFrozen) {
		return false, invalidTransition(b.State(), StateFrozen)
	}
	if messageID == "" {
		return false, errors.NewValidationError("message_id", "cannot be empty")
	}
	if b.MessageID == nil {
		b.MessageID = &messageID
	}
	closedAt := now.UTC()
	b.ClosedAt = &closedAt
	b.Version++
	return true, nil
}

// AttachDocument records that a further document format is generated for a
// frozen bundle. It bumps the version so the write meets a concurrent dequeue.
func (b *Bundle) AttachDocument() error {
	if b.State() != StateFrozen {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot attach a document to a "+string(b.State())+" bundle",
			errors.ErrInvalidStateTransition,
		)
	}
	b.Version++
	return nil
}

// Dequeue acknowledges the bundle. Dequeuing twice is a no-op.
func (b *Bundle) Dequeue(now time.Time) (bool, error) {
	if b.State() == StateDequeued {
		return false, nil
	}
	if !b.CanTransitionTo(StateDequeued) {
		return false, invalidTransition(b.State(), StateDequeued)
	}
	dequeuedAt := now.UTC()
	b.DequeuedAt = &dequeuedAt
	b.Version++
	return true, nil
}

// CanBePurged reports whether the retention window has passed for a dequeued bundle.
func (b *Bundle) CanBePurged(cutoff time.Time) bool {
	return b.DequeuedAt != nil && !b.DequeuedAt.After(cutoff)
}

// OwnedBy reports whether the bundle belongs to the actor's queue.
func (b *Bundle) OwnedBy(a actor.Actor) bool {
	return b.Receiver == a
}

func invalidTransition(from, to State) error {
	return errors.NewDomainError(
		"invalid_transition",
		"cannot transition bundle from "+string(from)+" to "+string(to),
		errors.ErrInvalidStateTransition,
	)
}
