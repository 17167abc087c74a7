package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any ledger mutation.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateRecord marks a create that collided with an existing ledger slot.
	ErrDuplicateRecord = errors.New("yield record already exists")
	// ErrNotFound marks an update or delete of an unknown record.
	ErrNotFound = errors.New("yield record not found")
	// ErrUnauthorized marks a request without a resolvable farm identity.
	ErrUnauthorized = errors.New("no farm context")
)

// ValidationError describes one invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DuplicateKeyError names the ledger slot that is already taken.
type DuplicateKeyError struct {
	AnimalID string
	Session  Session
	Date     string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("yield record already exists for animal %s in %s session on %s", e.AnimalID, e.Session, e.Date)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateRecord
}

// RecomputeError reports an aggregate that could not be rebuilt after the
// ledger mutation already committed. Re-running the recompute repairs it.
type RecomputeError struct {
	Kind string
	Key  string
	Err  error
}

func (e *RecomputeError) Error() string {
	return fmt.Sprintf("recompute %s %s: %v", e.Kind, e.Key, e.Err)
}

func (e *RecomputeError) Unwrap() error {
	return e.Err
}
