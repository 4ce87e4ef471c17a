// Package domain holds the application error model shared by tools and handlers.
package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID      = "invalid"       // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized"  // Caller authentication required
	ENOTFOUND     = "not_found"     // Resource not found
	ETOOLARGE     = "too_large"     // Request entity too large
	ERATELIMIT    = "rate_limit"    // Rate limit exceeded
	EUPSTREAMAUTH = "upstream_auth" // Backend login failed or session could not be kept
	EUPSTREAM     = "upstream"      // Backend answered with an error or an unusable page
	ETIMEOUT      = "timeout"       // Backend round trip exceeded its bound
	EUNAVAILABLE  = "unavailable"   // Optional component not configured
	EINTERNAL     = "internal"      // Internal server error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "tools.get_product")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Errorf(code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code, op and a caller-facing message to err.
func Wrap(err error, code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return EINVALID
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// internalMessage stands in for anything not meant for the caller.
const internalMessage = "An internal error occurred. Please try again later."

// ErrorMessage returns the human-readable message of the error. Internal
// errors never expose their text.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	return internalMessage
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// NotFound reports a missing resource, e.g. NotFound(op, "tool", name).
func NotFound(op, resource, id string) *Error {
	return Errorf(ENOTFOUND, op, "%s %q not found", resource, id)
}

func Invalid(op, message string) *Error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

func Unauthorized(op, message string) *Error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

// Internal wraps err; its text is logged but never shown to the caller.
func Internal(err error, op, message string) *Error {
	return Wrap(err, EINTERNAL, op, message)
}

// ValidationError collects field-level failures for one operation.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

// NewValidationError creates a validation error with one failed field.
func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

// AddField records a field failure. A nil ve is created on first use, so
// checks can be chained without pre-allocating.
func AddField(ve *ValidationError, field, message string) *ValidationError {
	if ve == nil {
		ve = &ValidationError{Fields: map[string]string{}}
	}
	ve.Fields[field] = message
	return ve
}

// Require records "is required" for an empty value.
func Require(ve *ValidationError, field, value string) *ValidationError {
	if value != "" {
		return ve
	}
	return AddField(ve, field, "is required")
}

// Validation stamps op on ve and returns it, or nil when nothing failed.
func Validation(op string, ve *ValidationError) error {
	if ve == nil {
		return nil
	}
	ve.Op = op
	return ve
}
