// Package services implements the business logic between the HTTP layer
// and the database.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is not found. Access to an
	// entity owned by another user maps to the same error: existence is
	// never revealed across ownership boundaries.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when attempting to create a duplicate entity
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInsufficientCredits is returned when a debit would take the
	// balance below zero.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrSessionNotOpen is returned when an operation requires an open session
	ErrSessionNotOpen = errors.New("session is not open")

	// ErrAlreadyFinalized is returned when finalizing a session twice.
	ErrAlreadyFinalized = errors.New("session already finalized")

	// ErrSessionEmpty is returned when finalizing a session with no blocks.
	// An empty session never costs a credit.
	ErrSessionEmpty = errors.New("session has no content")

	// ErrStorageUnavailable is returned when object storage is not configured.
	ErrStorageUnavailable = errors.New("object storage not configured")
)

// ValidationError wraps field-specific validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
