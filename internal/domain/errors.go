package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument signals out-of-range input (coordinates, radius, traffic split, short series).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConstraintViolation signals a breached registry invariant.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrStorageUnavailable signals an unreachable or timed-out backing store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrCancelled signals that the caller cancelled the operation.
	ErrCancelled = errors.New("cancelled")
	// ErrReferenced signals a delete refused because other rows still point at the resource.
	ErrReferenced = errors.New("still referenced")
)

// InvalidArgumentError wraps ErrInvalidArgument with the offending field.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidArgument.Error(), e.Field, e.Reason)
}

func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

// NewInvalidArgument creates an invalid argument error for a named field.
func NewInvalidArgument(field, reason string) error {
	return &InvalidArgumentError{Field: field, Reason: reason}
}
