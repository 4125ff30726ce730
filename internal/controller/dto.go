package controller

import (
	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (string ids and codes, validation tags).
// Controllers convert them to domain types before calling the services.

// EnqueueMessageRequest is one outgoing message posted by a producer.
type EnqueueMessageRequest struct {
	DocumentType       string          `json:"document_type" validate:"required"`
	ReceiverNumber     string          `json:"receiver_number" validate:"required,min=13,max=16"`
	ReceiverRole       string          `json:"receiver_role" validate:"required"`
	BusinessReason     string          `json:"business_reason" validate:"required"`
	RelatedToMessageID *string         `json:"related_to_message_id,omitempty" validate:"omitempty,uuid"`
	CalculationID      *string         `json:"calculation_id,omitempty" validate:"omitempty,uuid"`
	ExternalID         *string         `json:"external_id,omitempty" validate:"omitempty,max=64"`
	GridArea           *string         `json:"grid_area,omitempty" validate:"omitempty,len=3,numeric"`
	Record             json.RawMessage `json:"record" validate:"required"`
}

// ToParams converts the request to domain message parameters.
func (r *EnqueueMessageRequest) ToParams() (message.Params, error) {
	role, err := actor.RoleFromCode(r.ReceiverRole)
	if err != nil {
		return message.Params{}, err
	}
	related, err := parseOptionalUUID("related_to_message_id", r.RelatedToMessageID)
	if err != nil {
		return message.Params{}, err
	}
	calculation, err := parseOptionalUUID("calculation_id", r.CalculationID)
	if err != nil {
		return message.Params{}, err
	}
	return message.Params{
		DocumentType:       message.DocumentType(r.DocumentType),
		Receiver:           actor.Actor{Number: actor.Number(r.ReceiverNumber), Role: role},
		BusinessReason:     message.BusinessReason(r.BusinessReason),
		RelatedToMessageID: related,
		CalculationID:      calculation,
		ExternalID:         r.ExternalID,
		GridArea:           r.GridArea,
		Record:             []byte(r.Record),
	}, nil
}

// --- Response DTOs ---

// EnqueueMessageResponse describes where an accepted message was placed.
type EnqueueMessageResponse struct {
	MessageID      string `json:"message_id"`
	BundleID       string `json:"bundle_id"`
	BundlePosition int    `json:"bundle_position"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromMessage converts an enqueued message to its API response.
func FromMessage(m *message.OutgoingMessage) *EnqueueMessageResponse {
	resp := &EnqueueMessageResponse{
		MessageID:      m.ID.String(),
		BundlePosition: m.BundlePosition,
	}
	if m.AssignedBundleID != nil {
		resp.BundleID = m.AssignedBundleID.String()
	}
	return resp
}

func parseOptionalUUID(field string, s *string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, domainErrors.NewValidationError(field, "must be a UUID")
	}
	return &id, nil
}
