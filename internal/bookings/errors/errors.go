package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrVersionConflict means the record changed since it was read: another
	// worker decided it first or it is no longer pending.
	ErrVersionConflict = errors.New("booking version conflict")
)
