package store

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrReference is returned when a write points at a missing or
	// retracted row.
	ErrReference = errors.New("invalid reference")
	// ErrKindMismatch is returned by node updates that change the kind.
	ErrKindMismatch = errors.New("kind mismatch")
)
