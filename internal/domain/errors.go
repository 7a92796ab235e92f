package domain

import (
	"errors"
	"fmt"
)

// Business rejections. Transports map these to 4xx and callers must not
// retry them; everything else coming out of a repository is a StorageError.
var (
	// ErrInvalidDevice rejects a device identifier that is not a bare
	// non-negative number.
	ErrInvalidDevice = errors.New("invalid device identifier")

	// ErrUnassigned rejects telemetry from a device with no current patient
	// assignment.
	ErrUnassigned = errors.New("device is not assigned to a patient")

	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("identifier already in use")
)

// StorageError wraps a fault from a backing store (Postgres, Redis, the
// session spool). It marks the error as transient: the client may retry.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is (or wraps) a storage fault.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
