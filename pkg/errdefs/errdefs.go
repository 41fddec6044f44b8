// Package errdefs defines the typed error taxonomy shared by every
// docvector component. Errors carry a stable machine-readable code that
// the API boundary maps onto the wire envelope.
package errdefs

import (
	"errors"
	"fmt"
)

// Code identifies an error category.
type Code string

const (
	CodeConfiguration  Code = "CONFIGURATION_ERROR"
	CodeDatabase       Code = "DATABASE_ERROR"
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeNotFound       Code = "NOT_FOUND"
	CodeEmbedding      Code = "EMBEDDING_ERROR"
	CodeSearch         Code = "SEARCH_ERROR"
	CodeIngestion      Code = "INGESTION_ERROR"
	CodeProcessing     Code = "PROCESSING_ERROR"
	CodeRateLimit      Code = "RATE_LIMIT_EXCEEDED"
	CodeAuthRequired   Code = "AUTHENTICATION_REQUIRED"
	CodeForbidden      Code = "FORBIDDEN"
	CodeInvalidConfig  Code = "INVALID_CONFIG"
	CodeFetchFailed    Code = "FETCH_FAILED"
	CodeSourceExists   Code = "SOURCE_EXISTS"
	CodeSourceNotFound Code = "SOURCE_NOT_FOUND"
	CodeInternal       Code = "INTERNAL_ERROR"
)

// Error is the typed error carried across component boundaries.
type Error struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error with the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a typed error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Wrapf attaches a code and a formatted message to an underlying error.
func Wrapf(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithDetails returns a copy of the error carrying extra detail fields.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, Err: e.Err}
}

// CodeOf extracts the taxonomy code from an error chain.
// Untyped errors map to INTERNAL_ERROR.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is reports whether any error in the chain carries the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Envelope is the wire shape for surfaced errors:
// {"success": false, "error": {"code", "message", "details"}}.
type Envelope struct {
	Success bool          `json:"success"`
	Error   EnvelopeError `json:"error"`
}

// EnvelopeError is the error body inside an Envelope.
type EnvelopeError struct {
	Code    Code                   `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToEnvelope converts any error into the wire envelope.
func ToEnvelope(err error) Envelope {
	var de *Error
	if errors.As(err, &de) {
		return Envelope{
			Success: false,
			Error: EnvelopeError{
				Code:    de.Code,
				Message: de.Message,
				Details: de.Details,
			},
		}
	}
	return Envelope{
		Success: false,
		Error: EnvelopeError{
			Code:    CodeInternal,
			Message: err.Error(),
		},
	}
}
