package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when the store cannot be reached or a
	// transaction cannot be started. Stage-fatal: the run aborts and the
	// scheduler retries.
	ErrUnavailable = errors.New("store unavailable")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
