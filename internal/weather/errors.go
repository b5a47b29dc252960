package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for precondition violations such as
	// supplying drift coefficients without a previous state.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyRunning is returned by Start while a worker is active.
	ErrAlreadyRunning = errors.New("data generation is already running")

	// ErrNotRunning is returned by Stop when no worker is active.
	ErrNotRunning = errors.New("data generation is not running")
)

// StorageError reports a failed persistence call. It is fatal to the
// generation worker.
type StorageError struct {
	Op    string
	Field string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
