package message

import (
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/google/uuid"
)

// OutgoingMessage is one market activity record destined for one receiver.
// The document format is not part of the message; it is chosen by the receiver at peek time.
type OutgoingMessage struct {
	ID                 uuid.UUID
	DocumentType       DocumentType
	Receiver           actor.Actor
	BusinessReason     BusinessReason
	RelatedToMessageID *uuid.UUID
	CalculationID      *uuid.UUID
	ExternalID         *string
	GridArea           *string
	// Record is the format-agnostic serialized market activity record.
	Record           []byte
	CreatedAt        time.Time
	AssignedBundleID *uuid.UUID
	BundlePosition   int
}

// Params holds the producer supplied fields of a new message.
type Params struct {
	DocumentType       DocumentType
	Receiver           actor.Actor
	BusinessReason     BusinessReason
	RelatedToMessageID *uuid.UUID
	CalculationID      *uuid.UUID
	ExternalID         *string
	GridArea           *string
	Record             []byte
}

// New creates an unassigned outgoing message.
func New(p Params) (*OutgoingMessage, error) {
	if err := p.Receiver.Validate(); err != nil {
		return nil, err
	}
	if err := p.DocumentType.Validate(); err != nil {
		return nil, err
	}
	if err := p.BusinessReason.Validate(); err != nil {
		return nil, err
	}
	if len(p.Record) == 0 {
		return nil, errors.NewValidationError("record", "cannot be empty")
	}

	return &OutgoingMessage{
		ID:                 uuid.New(),
		DocumentType:       p.DocumentType,
		Receiver:           p.Receiver,
		BusinessReason:     p.BusinessReason,
		RelatedToMessageID: p.RelatedToMessageID,
		CalculationID:      p.CalculationID,
		ExternalID:         p.ExternalID,
		GridArea:           p.GridArea,
		Record:             p.Record,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

// Validate checks a message built outside New, e.g. by a producer in the same process.
func (m *OutgoingMessage) Validate() error {
	if m.ID == uuid.Nil {
		return errors.NewValidationError("id", "cannot be empty")
	}
	if err := m.Receiver.Validate(); err != nil {
		return err
	}
	if err := m.DocumentType.Validate(); err != nil {
		return err
	}
	if err := m.BusinessReason.Validate(); err != nil {
		return err
	}
	if len(m.Record) == 0 {
		return errors.NewValidationError("record", "cannot be empty")
	}
	return nil
}

// Key returns the bundling class of the message.
func (m *OutgoingMessage) Key() BundleKey {
	return BundleKey{
		Receiver:       m.Receiver,
		DocumentType:   m.DocumentType,
		BusinessReason: m.BusinessReason,
	}
}

// AssignTo places the message at the given position of a bundle.
// A message is assigned once and never moves to another bundle.
func (m *OutgoingMessage) AssignTo(bundleID uuid.UUID, position int) error {
	if m.AssignedBundleID != nil {
		return errors.ErrMessageAlreadyQueued
	}
	if position < 1 {
		return errors.NewValidationError("bundle_position", "must be positive")
	}
	id := bundleID
	m.AssignedBundleID = &id
	m.BundlePosition = position
	return nil
}

// BundleKey is the class that decides which messages may share a bundle.
type BundleKey struct {
	Receiver       actor.Actor
	DocumentType   DocumentType
	BusinessReason BusinessReason
}

func (k BundleKey) String() string {
	return k.Receiver.String() + "/" + string(k.DocumentType) + "/" + string(k.BusinessReason)
}
