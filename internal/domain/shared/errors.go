// Package shared contains common domain errors used across all domain
// packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidID    = errors.New("invalid ID")
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyValue   = errors.New("value cannot be empty")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "projection", "planner", "ucn"
	Op      string // Operation that failed, e.g., "Save", "AddCourse"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)

	// Detail carries a structured payload for the caller, such as a planner
	// rejection. It is never part of Error().
	Detail any
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// WithDetail returns a copy of the error carrying detail.
func (e *DomainError) WithDetail(detail any) *DomainError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// Projection domain errors
var (
	ErrProjectionNotFound  = NewDomainError("projection", "Find", ErrNotFound, "projection not found")
	ErrProjectionExists    = NewDomainError("projection", "Save", ErrAlreadyExists, "a projection with that name already exists")
	ErrInvalidProjectionID = NewDomainError("projection", "Validate", ErrInvalidID, "invalid projection ID")
	ErrProjectionName      = NewDomainError("projection", "Validate", ErrEmptyValue, "projection name is required")
)

// Student domain errors
var (
	ErrInvalidRut         = NewDomainError("student", "Validate", ErrInvalidInput, "invalid RUT")
	ErrInvalidCredentials = NewDomainError("student", "Login", ErrUnauthorized, "invalid credentials")
	ErrSessionInvalid     = NewDomainError("session", "Verify", ErrUnauthorized, "session is missing or invalid")
)

// External service errors
var (
	ErrUCNUnavailable     = NewDomainError("ucn", "Request", ErrServiceUnavailable, "university API is unavailable")
	ErrUCNRateLimited     = NewDomainError("ucn", "Request", ErrRateLimited, "university API rate limit exceeded")
	ErrUCNInvalidResponse = NewDomainError("ucn", "Parse", ErrExternalService, "invalid response from university API")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue)
}

// IsUnauthorized checks if the error is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// DetailOf extracts the structured detail carried by a DomainError in err's chain.
func DetailOf(err error) any {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Detail
	}
	return nil
}
