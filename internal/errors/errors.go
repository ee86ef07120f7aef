// Package errors provides the typed error taxonomy for the analytics
// engine. Every error crossing a component boundary is an *EngineError
// with an explicit type discriminator, so callers classify failures with
// errors.As instead of string matching.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an error for propagation and HTTP mapping.
type ErrorType string

const (
	// ErrorTypeNotFound covers unknown projects and missing node ids.
	ErrorTypeNotFound ErrorType = "NOT_FOUND"
	// ErrorTypeValidation covers malformed parameters (depth, limit, threshold).
	ErrorTypeValidation ErrorType = "VALIDATION"
	// ErrorTypeUpstream covers unreachable collaborators (store, embeddings).
	ErrorTypeUpstream ErrorType = "UPSTREAM"
	// ErrorTypeInternal covers everything else.
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// EngineError is the single error type used across the engine.
type EngineError struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Operation string    `json:"operation,omitempty"`
	Resource  string    `json:"resource,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause.
func (e *EngineError) Unwrap() error { return e.Cause }

// WithOperation annotates the error with the failing operation.
func (e *EngineError) WithOperation(op string) *EngineError {
	e.Operation = op
	return e
}

// WithResource annotates the error with the resource being operated on.
func (e *EngineError) WithResource(resource string) *EngineError {
	e.Resource = resource
	return e
}

// WithCause attaches the underlying cause.
func (e *EngineError) WithCause(cause error) *EngineError {
	e.Cause = cause
	return e
}

// NotFound creates a not-found error.
func NotFound(code, message string) *EngineError {
	return &EngineError{Type: ErrorTypeNotFound, Code: code, Message: message}
}

// Validation creates an invalid-parameter error.
func Validation(code, message string) *EngineError {
	return &EngineError{Type: ErrorTypeValidation, Code: code, Message: message}
}

// Upstream creates an upstream-failure error.
func Upstream(code, message string) *EngineError {
	return &EngineError{Type: ErrorTypeUpstream, Code: code, Message: message}
}

// Internal creates an internal error.
func Internal(code, message string) *EngineError {
	return &EngineError{Type: ErrorTypeInternal, Code: code, Message: message}
}

// Wrap wraps err with additional context while preserving its type. A
// non-EngineError cause becomes an internal error.
func Wrap(err error, operation, message string) *EngineError {
	if err == nil {
		return nil
	}
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return &EngineError{
			Type:      engineErr.Type,
			Code:      engineErr.Code,
			Message:   message,
			Operation: operation,
			Resource:  engineErr.Resource,
			Cause:     err,
		}
	}
	return &EngineError{
		Type:      ErrorTypeInternal,
		Code:      "WRAPPED",
		Message:   message,
		Operation: operation,
		Cause:     err,
	}
}

// IsType checks whether err carries the given type.
func IsType(err error, t ErrorType) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Type == t
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// IsUpstream reports whether err is an upstream failure.
func IsUpstream(err error) bool { return IsType(err, ErrorTypeUpstream) }
