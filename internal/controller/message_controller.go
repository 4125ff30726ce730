package controller

import (
	"context"
	"net/http"

	"github.com/cassiomorais/edi-gateway/internal/domain/message"
)

type MessageEnqueuer interface {
	Enqueue(ctx context.Context, msg *message.OutgoingMessage) error
}

// MessageController accepts outgoing messages from producers.
type MessageController struct {
	enqueuer MessageEnqueuer
}

func NewMessageController(enqueuer MessageEnqueuer) *MessageController {
	return &MessageController{enqueuer: enqueuer}
}

// Enqueue handles POST /api/v1/outgoing-messages
func (h *MessageController) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueMessageRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	params, err := req.ToParams()
	if err != nil {
		writeError(w, err)
		return
	}
	msg, err := message.New(params)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.enqueuer.Enqueue(r.Context(), msg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, FromMessage(msg))
}
