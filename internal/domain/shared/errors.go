// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
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
	ErrValidation       = errors.New("validation error")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrEmptyValue       = errors.New("value cannot be empty")
	ErrValueOutOfRange  = errors.New("value out of range")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")
	ErrClosed       = errors.New("closed")

	// Progress/insight errors
	ErrNoProgress       = errors.New("no progress data for student")
	ErrMalformedHistory = errors.New("malformed mastery history")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrCorruptRecord      = errors.New("corrupt record")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "telemetry", "progress", "insight"
	Op      string // Operation that failed, e.g., "Append", "Replay"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
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

// NewDomainError creates a DomainError.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapDomainError creates a DomainError that wraps an underlying error.
func WrapDomainError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}
