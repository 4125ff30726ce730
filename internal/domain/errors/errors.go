package errors

import (
	"errors"
	"fmt"
)

var (
	// Bundle errors
	ErrBundleNotFound              = errors.New("bundle not found")
	ErrBundleClosed                = errors.New("bundle is closed for assignment")
	ErrBundleFull                  = errors.New("bundle is full")
	ErrInvalidStateTransition      = errors.New("invalid state transition")
	ErrOptimisticLockFailed        = errors.New("optimistic lock conflict")
	ErrConcurrencyRetriesExhausted = errors.New("concurrency retries exhausted")

	// Delivery errors
	ErrUnknownMessageID       = errors.New("unknown message id")
	ErrForeignMessageID       = errors.New("message id belongs to another actor")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrUnknownCategory        = errors.New("unknown message category")
	ErrDocumentNotFound       = errors.New("market document not found")

	// Message errors
	ErrMessageNotFound      = errors.New("outgoing message not found")
	ErrMessageAlreadyQueued = errors.New("outgoing message already assigned to a bundle")

	// Idempotency errors
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match any validation error with errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
