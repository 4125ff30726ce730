// Package codec turns the records of a bundle into market documents.
//
// Encoders are stateless functions registered per (document type, format)
// pair. CIM-XML and CIM-JSON share one body writer per document type; ebIX
// has its own writers because its element structure differs.
package codec

import (
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
)

// Header holds the format independent header content of a document.
type Header struct {
	MessageID      string
	DocumentType   message.DocumentType
	BusinessReason message.BusinessReason
	Sender         actor.Actor
	Receiver       actor.Actor
	CreatedAt      time.Time
	// ReasonCode is only written when set.
	ReasonCode string
}

// NewHeader builds the header for a bundle. Reject documents carry the rejected reason code.
func NewHeader(messageID string, documentType message.DocumentType, reason message.BusinessReason, sender, receiver actor.Actor, createdAt time.Time) Header {
	h := Header{
		MessageID:      messageID,
		DocumentType:   documentType,
		BusinessReason: reason,
		Sender:         sender,
		Receiver:       receiver,
		CreatedAt:      createdAt.UTC().Truncate(time.Second),
	}
	if documentType.IsReject() {
		h.ReasonCode = reasonCodeRejected
	}
	return h
}

// EncodeFunc encodes a full document. It never returns a partial document.
type EncodeFunc func(h Header, records []Record) ([]byte, error)

type key struct {
	documentType message.DocumentType
	format       message.DocumentFormat
}

// Registry maps (document type, format) pairs to encoders. It is safe for
// concurrent use once built.
type Registry struct {
	encoders map[key]EncodeFunc
}

// NewRegistry returns a registry with every built-in encoder.
func NewRegistry() *Registry {
	r := &Registry{encoders: make(map[key]EncodeFunc)}
	for dt, body := range cimBodies {
		def := cimDocuments[dt]
		r.Register(dt, message.FormatCIMXML, cimXMLEncoder(def, body))
		r.Register(dt, message.FormatCIMJSON, cimJSONEncoder(def, body))
	}
	for dt, body := range ebixBodies {
		r.Register(dt, message.FormatEbix, ebixEncoder(ebixDocuments[dt], body))
	}
	return r
}

// Register adds or replaces the encoder of a pair. Call it before the
// registry is shared.
func (r *Registry) Register(documentType message.DocumentType, format message.DocumentFormat, fn EncodeFunc) {
	r.encoders[key{documentType, format}] = fn
}

// Supports reports whether a pair has an encoder.
func (r *Registry) Supports(documentType message.DocumentType, format message.DocumentFormat) bool {
	_, ok := r.encoders[key{documentType, format}]
	return ok
}

// Encode renders the records in the given order.
func (r *Registry) Encode(documentType message.DocumentType, format message.DocumentFormat, h Header, records []Record) ([]byte, error) {
	fn, ok := r.encoders[key{documentType, format}]
	if !ok {
		return nil, &UnsupportedFormatError{DocumentType: documentType, Format: format}
	}
	return fn(h, records)
}

const (
	createdLayout = "2006-01-02T15:04:05Z"
	periodLayout  = "2006-01-02T15:04Z"
)

func formatCreated(t time.Time) string {
	return t.UTC().Format(createdLayout)
}

func formatPeriod(t time.Time) string {
	return t.UTC().Format(periodLayout)
}
