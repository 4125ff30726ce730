package controller

import (
	"context"
	"net/http"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/cassiomorais/edi-gateway/internal/middleware"
	"github.com/cassiomorais/edi-gateway/internal/service"
	"github.com/go-chi/chi/v5"
)

// MessageIDHeader carries the delivery token of a peeked document.
const MessageIDHeader = "MessageId"

type Peeker interface {
	Peek(ctx context.Context, req service.PeekRequest) (*service.PeekResult, error)
}

type Dequeuer interface {
	Dequeue(ctx context.Context, messageID string, requester actor.Actor) error
}

// DeliveryController serves the actor pull protocol.
type DeliveryController struct {
	peeker   Peeker
	dequeuer Dequeuer
}

func NewDeliveryController(peeker Peeker, dequeuer Dequeuer) *DeliveryController {
	return &DeliveryController{peeker: peeker, dequeuer: dequeuer}
}

// Peek handles GET /peek/{category}
func (h *DeliveryController) Peek(w http.ResponseWriter, r *http.Request) {
	h.peek(w, r, message.Category(chi.URLParam(r, "category")))
}

// PeekAll handles GET /peek
func (h *DeliveryController) PeekAll(w http.ResponseWriter, r *http.Request) {
	h.peek(w, r, "")
}

func (h *DeliveryController) peek(w http.ResponseWriter, r *http.Request, category message.Category) {
	receiver, ok := middleware.GetActor(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}
	format, err := requestedFormat(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.peeker.Peek(r.Context(), service.PeekRequest{
		Receiver: receiver,
		Category: category,
		Format:   format,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Found {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", res.Format.ContentType())
	w.Header().Set(MessageIDHeader, res.MessageID)
	w.WriteHeader(http.StatusOK)
	w.Write(res.Document)
}

// Dequeue handles DELETE /dequeue/{messageId}
func (h *DeliveryController) Dequeue(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.GetActor(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	if err := h.dequeuer.Dequeue(r.Context(), chi.URLParam(r, "messageId"), requester); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// requestedFormat reads the document format from Content-Type, falling back
// to Accept. A missing or unknown media type is rejected.
func requestedFormat(r *http.Request) (message.DocumentFormat, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		return message.FormatFromContentType(ct)
	}
	return message.FormatFromContentType(r.Header.Get("Accept"))
}
