package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
// This lets callers match errors.Is(err, ErrNotFound) against an error built
// with a more specific message.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if !errors.As(target, &de) {
		return false
	}
	return de.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error with the code of base and the given cause
func WrapDomainError(base *DomainError, message string, cause error) *DomainError {
	return &DomainError{
		Code:    base.Code,
		Message: message,
		cause:   cause,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or "" if there is none
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)
