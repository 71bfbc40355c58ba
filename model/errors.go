package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest       = "BAD_REQUEST"
	ErrUnauthorized     = "UNAUTHORIZED"
	ErrForbidden        = "FORBIDDEN"
	ErrNotFound         = "NOT_FOUND"
	ErrMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrInternalError    = "INTERNAL_ERROR"
)

// Page pipeline error codes. These indicate deployment or programming defects
// rather than bad client input, which is always absorbed.
const (
	ErrTemplate      = "TEMPLATE_ERROR"
	ErrSerialization = "SERIALIZATION_ERROR"
	ErrSession       = "SESSION_ERROR"
)

// ErrorEnvelope is the standard error value surfaced at the transport boundary.
// It implements the error interface.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ErrorEnvelope) Unwrap() error {
	return e.cause
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewMethodNotAllowedError returns a METHOD_NOT_ALLOWED error.
func NewMethodNotAllowedError(method string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrMethodNotAllowed,
		Message: fmt.Sprintf("method %s is not allowed", method),
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewTemplateError returns a TEMPLATE_ERROR for a template that could not be
// located, compiled or rendered.
func NewTemplateError(name string, cause error) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrTemplate,
		Message: fmt.Sprintf("template %q could not be rendered", name),
		cause:   cause,
	}
}

// NewSerializationError returns a SERIALIZATION_ERROR. The page's state, key
// or auth type failed to encode as JSON.
func NewSerializationError(what string, cause error) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrSerialization,
		Message: fmt.Sprintf("%s could not be serialized", what),
		cause:   cause,
	}
}

// NewSessionError returns a SESSION_ERROR.
func NewSessionError(cause error) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrSession,
		Message: "session could not be updated",
		cause:   cause,
	}
}
