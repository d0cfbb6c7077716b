package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperation is returned for lifecycle operations a task cannot perform
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrActiveDeadTask is returned when a task restored as dead carries an active status
	ErrActiveDeadTask = errors.New("a dead task may not be assigned an active state")
)

// StorageAccessError reports a task root that is missing or unusable
type StorageAccessError struct {
	Path   string
	Reason string
	Err    error
}

func (e *StorageAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

func (e *StorageAccessError) Unwrap() error {
	return e.Err
}

// TaskStorageError reports a task whose recorded state could not be restored
type TaskStorageError struct {
	Path string
	Op   string
	Err  error
}

func (e *TaskStorageError) Error() string {
	return fmt.Sprintf("failed to %s from %s: %v", e.Op, e.Path, e.Err)
}

func (e *TaskStorageError) Unwrap() error {
	return e.Err
}
