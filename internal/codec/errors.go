package codec

import (
	"fmt"

	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/google/uuid"
)

// UnsupportedFormatError is returned when no encoder is registered for a pair.
type UnsupportedFormatError struct {
	DocumentType message.DocumentType
	Format       message.DocumentFormat
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("no encoder for document type %s in format %s", e.DocumentType, e.Format)
}

// RecordEncodingError names the message whose record could not be encoded.
type RecordEncodingError struct {
	MessageID uuid.UUID
	Err       error
}

func (e *RecordEncodingError) Error() string {
	return fmt.Sprintf("encode record of message %s: %v", e.MessageID, e.Err)
}

func (e *RecordEncodingError) Unwrap() error {
	return e.Err
}

// UnmappedCodeError is returned by the code tables for values without a market code.
type UnmappedCodeError struct {
	Table string
	Value string
}

func (e *UnmappedCodeError) Error() string {
	return fmt.Sprintf("no %s code for %q", e.Table, e.Value)
}
