package executor

import "github.com/psantana5/stratum/pkg/models"

// Task is the lifecycle capability set of a task known to the executor.
// Variants reject operations that are illegal in their lifecycle stage by
// returning an error wrapping ErrUnsupportedOperation.
type Task interface {
	ID() string
	IsRunning() bool
	AssignedTask() *models.AssignedTask
	ScheduleStatus() models.ScheduleStatus

	Stage() error
	BlockUntilTerminated() (models.ScheduleStatus, error)
	Terminate(status models.ScheduleStatus) error
	Run() error
}

// StateSerializer restores the recorded state of a task from its root directory
type StateSerializer interface {
	RestoreTaskAssignment(root string) (*models.AssignedTask, error)
	RestoreStatus(root string) (models.ScheduleStatus, error)
}
