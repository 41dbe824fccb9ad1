package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")

	ErrDuplicateResource      = errors.New("resource already exists")
	ErrReferentialConflict    = errors.New("resource is still referenced")
	ErrReferenceNotFound      = errors.New("referenced entity not found")
	ErrRemoteCheckUnavailable = errors.New("remote check unavailable")

	// ErrTransientDelivery is recorded on outbox events by the relay and is
	// never returned to the caller of a write.
	ErrTransientDelivery = errors.New("transient delivery failure")
)

// ConflictError is returned when a parent still has dependents in another service.
type ConflictError struct {
	Count     int64
	Dependent string
	Parent    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Cannot delete: %d %s(s) still reference this %s. Move them first.", e.Count, e.Dependent, e.Parent)
}

func (e *ConflictError) Unwrap() error { return ErrReferentialConflict }

// ReferenceNotFoundError names the remote entity that could not be confirmed.
// Cause is set when the remote check itself failed.
type ReferenceNotFoundError struct {
	Entity string
	ID     int64
	Cause  error
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

func (e *ReferenceNotFoundError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrReferenceNotFound}
	}
	return []error{ErrReferenceNotFound, e.Cause}
}

// Duplicate wraps ErrDuplicateResource with a human readable detail.
func Duplicate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDuplicateResource, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with a human readable detail.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Invalid wraps ErrInvalidInput with a human readable detail.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
