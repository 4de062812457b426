package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure of a work unit or of the sequencer.
type ErrorKind string

const (
	// ErrorKindValidation indicates a malformed or out-of-range payload.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindNetwork indicates the address lookup failed, timed out, or
	// answered with a non-success status.
	ErrorKindNetwork ErrorKind = "network"

	// ErrorKindUnhandled covers every other fault.
	ErrorKindUnhandled ErrorKind = "unhandled"
)

// Error represents a classified error with context.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Unit is the work unit or state that produced the error.
	Unit string `json:"unit,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Unit != "" {
		msg = fmt.Sprintf("%s (unit=%s)", msg, e.Unit)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, msg, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same kind and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *Error {
	return &Error{
		Kind:    ErrorKindValidation,
		Message: message,
		Code:    ErrCodeInvalidPayload,
		Err:     err,
	}
}

// NewNetworkError creates a new network error.
func NewNetworkError(message string, err error) *Error {
	return &Error{
		Kind:    ErrorKindNetwork,
		Message: message,
		Code:    ErrCodeLookupFailed,
		Err:     err,
	}
}

// NewUnhandledError creates a new unhandled error.
func NewUnhandledError(message string, err error) *Error {
	return &Error{
		Kind:    ErrorKindUnhandled,
		Message: message,
		Code:    ErrCodeInternal,
		Err:     err,
	}
}

// WithUnit adds work unit context to an error.
func (e *Error) WithUnit(unit string) *Error {
	e.Unit = unit
	return e
}

// WithCode sets the error code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// KindOf returns the kind of err. Errors that were never classified are
// reported as unhandled.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKindUnhandled
}

// AsError classifies err, wrapping unclassified errors as unhandled.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewUnhandledError("unhandled failure", err)
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrorKindValidation
}

// IsNetwork returns true if the error is classified as a network error.
func IsNetwork(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrorKindNetwork
}

// IsUnhandled returns true if the error is an unhandled failure or was never
// classified at all.
func IsUnhandled(err error) bool {
	return err != nil && KindOf(err) == ErrorKindUnhandled
}

// Common error codes.
const (
	ErrCodeInvalidPayload   = "INVALID_PAYLOAD"
	ErrCodeOutOfRange       = "OUT_OF_RANGE"
	ErrCodeLookupFailed     = "LOOKUP_FAILED"
	ErrCodeLookupStatus     = "LOOKUP_BAD_STATUS"
	ErrCodeFunctionNotFound = "FUNCTION_NOT_FOUND"
	ErrCodeFunctionError    = "FUNCTION_ERROR"
	ErrCodeDispatchRejected = "DISPATCH_REJECTED"
	ErrCodeInvalidPath      = "INVALID_PATH"
	ErrCodeCancelled        = "CANCELLED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)
