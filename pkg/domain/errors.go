package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimeout is returned when a worker request exceeds its deadline.
	ErrTimeout = errors.New("parse request timed out")

	// ErrWorkerUnavailable is returned when no worker context is ready.
	ErrWorkerUnavailable = errors.New("worker unavailable")

	// ErrWorkerFailed is returned to requests outstanding when the worker crashed.
	ErrWorkerFailed = errors.New("worker failed")

	// ErrShutdown is returned once the dispatcher or worker has been destroyed.
	ErrShutdown = errors.New("dispatcher shut down")

	// ErrInvalidImport is returned when import data carries no state.
	ErrInvalidImport = errors.New("invalid import data: missing state")

	// ErrInvalidEncoding is returned for description text that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("description text is not valid UTF-8")

	// ErrSnapshotNotFound is returned when a session ID cannot be found in the store.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// ValidationError reports structural problems found by the validator.
// It is informational: the engine records it and keeps going.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
