package executor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/psantana5/stratum/pkg/models"
)

// DeadTask is a task that has completed execution. It is restored from the
// task's root directory and rejects every lifecycle operation.
type DeadTask struct {
	root   string
	task   *models.AssignedTask
	status models.ScheduleStatus

	// Lazily computed.
	diskMu       sync.Mutex
	diskConsumed *int64
}

var _ Task = (*DeadTask)(nil)

// NewDeadTask restores a dead task from root using s
func NewDeadTask(root string, s StateSerializer) (*DeadTask, error) {
	if s == nil {
		return nil, fmt.Errorf("state serializer is required")
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, &StorageAccessError{Path: root, Reason: "sandbox does not exist", Err: err}
	}
	if !info.IsDir() {
		return nil, &StorageAccessError{Path: root, Reason: "not a directory"}
	}

	task, err := s.RestoreTaskAssignment(root)
	if err != nil {
		return nil, &TaskStorageError{Path: root, Op: "restore task assignment", Err: err}
	}
	if task == nil || task.TaskID == "" {
		return nil, &TaskStorageError{Path: root, Op: "restore task assignment", Err: fmt.Errorf("assignment has no task ID")}
	}

	status, err := s.RestoreStatus(root)
	if err != nil {
		return nil, &TaskStorageError{Path: root, Op: "restore status", Err: err}
	}
	if models.IsActive(status) {
		return nil, fmt.Errorf("%w: task %s is %s", ErrActiveDeadTask, task.TaskID, status)
	}
	if !models.IsTerminal(status) {
		return nil, &TaskStorageError{Path: root, Op: "restore status", Err: fmt.Errorf("%w: %q", models.ErrUnknownStatus, status)}
	}

	return &DeadTask{root: root, task: task, status: status}, nil
}

// ID returns the task ID
func (t *DeadTask) ID() string {
	return t.task.TaskID
}

// Root returns the task's root directory
func (t *DeadTask) Root() string {
	return t.root
}

// IsRunning always returns false
func (t *DeadTask) IsRunning() bool {
	return false
}

// AssignedTask returns a copy of the restored assignment
func (t *DeadTask) AssignedTask() *models.AssignedTask {
	return t.task.Clone()
}

// ScheduleStatus returns the restored terminal status
func (t *DeadTask) ScheduleStatus() models.ScheduleStatus {
	return t.status
}

// Stage always fails
func (t *DeadTask) Stage() error {
	return fmt.Errorf("%w: a dead task cannot be staged", ErrUnsupportedOperation)
}

// BlockUntilTerminated always fails
func (t *DeadTask) BlockUntilTerminated() (models.ScheduleStatus, error) {
	return "", fmt.Errorf("%w: should not attempt to block on a dead task", ErrUnsupportedOperation)
}

// Terminate always fails
func (t *DeadTask) Terminate(status models.ScheduleStatus) error {
	return fmt.Errorf("%w: the state of a dead task cannot be changed to %s", ErrUnsupportedOperation, status)
}

// Run always fails
func (t *DeadTask) Run() error {
	return fmt.Errorf("%w: a dead task cannot be run", ErrUnsupportedOperation)
}

// DiskConsumed returns the bytes used by regular files under the task root.
// The first successful measurement is cached.
func (t *DeadTask) DiskConsumed() (int64, error) {
	t.diskMu.Lock()
	defer t.diskMu.Unlock()

	if t.diskConsumed != nil {
		return *t.diskConsumed, nil
	}

	n, err := dirSize(t.root)
	if err != nil {
		return 0, fmt.Errorf("failed to measure disk usage of %s: %w", t.root, err)
	}
	t.diskConsumed = &n
	return n, nil
}

func (t *DeadTask) String() string {
	return fmt.Sprintf("DeadTask(s: %s, t: %s)", t.status, t.task.TaskID)
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
