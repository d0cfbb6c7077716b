package executor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/stratum/pkg/models"
)

type fakeSerializer struct {
	task      *models.AssignedTask
	status    models.ScheduleStatus
	taskErr   error
	statusErr error
}

func (f fakeSerializer) RestoreTaskAssignment(string) (*models.AssignedTask, error) {
	return f.task, f.taskErr
}

func (f fakeSerializer) RestoreStatus(string) (models.ScheduleStatus, error) {
	return f.status, f.statusErr
}

func assignment(id string) *models.AssignedTask {
	return &models.AssignedTask{
		TaskID:    id,
		SlaveHost: "host-1",
		Task:      &models.TaskConfig{Job: models.JobKey{Role: "www", Environment: "prod", Name: "hello"}},
	}
}

func writeTask(t *testing.T, root, id string, status models.ScheduleStatus) string {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, FileSerializer{}.SaveTaskAssignment(dir, assignment(id)))
	require.NoError(t, FileSerializer{}.SaveStatus(dir, status))
	return dir
}

func TestNewDeadTask_TerminalStatuses(t *testing.T) {
	for _, s := range models.TerminalStatuses() {
		t.Run(string(s), func(t *testing.T) {
			task, err := NewDeadTask(t.TempDir(), fakeSerializer{task: assignment("T1"), status: s})
			require.NoError(t, err)
			assert.Equal(t, s, task.ScheduleStatus())
			assert.Equal(t, "T1", task.ID())
			assert.False(t, task.IsRunning())
		})
	}
}

func TestNewDeadTask_ActiveStatusesRejected(t *testing.T) {
	for _, s := range models.ActiveStatuses() {
		t.Run(string(s), func(t *testing.T) {
			task, err := NewDeadTask(t.TempDir(), fakeSerializer{task: assignment("T1"), status: s})
			assert.Nil(t, task)
			assert.ErrorIs(t, err, ErrActiveDeadTask)
		})
	}
}

func TestNewDeadTask_StorageAccess(t *testing.T) {
	root := t.TempDir()

	missing := filepath.Join(root, "missing")
	_, err := NewDeadTask(missing, fakeSerializer{task: assignment("T1"), status: models.StatusFinished})
	var accessErr *StorageAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, missing, accessErr.Path)
	assert.Contains(t, err.Error(), missing)

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = NewDeadTask(file, fakeSerializer{task: assignment("T1"), status: models.StatusFinished})
	require.ErrorAs(t, err, &accessErr)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestNewDeadTask_RestoreFailures(t *testing.T) {
	boom := errors.New("corrupt")
	tests := []struct {
		name string
		s    fakeSerializer
	}{
		{"assignment error", fakeSerializer{taskErr: boom, status: models.StatusFinished}},
		{"status error", fakeSerializer{task: assignment("T1"), statusErr: boom}},
		{"nil assignment", fakeSerializer{status: models.StatusFinished}},
		{"empty task id", fakeSerializer{task: &models.AssignedTask{}, status: models.StatusFinished}},
		{"unknown status", fakeSerializer{task: assignment("T1"), status: "ZOMBIE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDeadTask(t.TempDir(), tt.s)
			var storageErr *TaskStorageError
			require.ErrorAs(t, err, &storageErr)
		})
	}
}

func TestDeadTask_LifecycleOperationsUnsupported(t *testing.T) {
	task, err := NewDeadTask(t.TempDir(), fakeSerializer{task: assignment("T1"), status: models.StatusKilled})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, task.Stage(), ErrUnsupportedOperation)
		assert.ErrorIs(t, task.Run(), ErrUnsupportedOperation)
		assert.ErrorIs(t, task.Terminate(models.StatusFailed), ErrUnsupportedOperation)
		assert.ErrorIs(t, task.Terminate(models.StatusRunning), ErrUnsupportedOperation)
		_, err := task.BlockUntilTerminated()
		assert.ErrorIs(t, err, ErrUnsupportedOperation)
	}
	assert.Equal(t, models.StatusKilled, task.ScheduleStatus())
}

func TestDeadTask_FromDisk(t *testing.T) {
	root := t.TempDir()
	dir := writeTask(t, root, "T1", models.StatusFinished)

	task, err := NewDeadTask(dir, FileSerializer{})
	require.NoError(t, err)
	assert.Equal(t, "T1", task.ID())
	assert.False(t, task.IsRunning())
	assert.Equal(t, "host-1", task.AssignedTask().SlaveHost)
	assert.Equal(t, "DeadTask(s: FINISHED, t: T1)", task.String())

	running := writeTask(t, root, "T2", models.StatusRunning)
	_, err = NewDeadTask(running, FileSerializer{})
	assert.ErrorIs(t, err, ErrActiveDeadTask)
}

func TestDeadTask_AssignedTaskIsCopy(t *testing.T) {
	task, err := NewDeadTask(t.TempDir(), fakeSerializer{task: assignment("T1"), status: models.StatusFinished})
	require.NoError(t, err)

	a := task.AssignedTask()
	a.SlaveHost = "elsewhere"
	assert.Equal(t, "host-1", task.AssignedTask().SlaveHost)
}

func TestDeadTask_DiskConsumedIsCached(t *testing.T) {
	root := t.TempDir()
	dir := writeTask(t, root, "T1", models.StatusFailed)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sandbox"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sandbox", "stdout"), make([]byte, 1000), 0o644))

	task, err := NewDeadTask(dir, FileSerializer{})
	require.NoError(t, err)

	first, err := task.DiskConsumed()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, first, int64(1000))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sandbox", "stderr"), make([]byte, 5000), 0o644))
	second, err := task.DiskConsumed()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
