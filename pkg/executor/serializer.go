package executor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/psantana5/stratum/pkg/models"
)

// Files written under a task root by FileSerializer
const (
	TaskFile   = "task.json"
	StatusFile = "status"
)

// FileSerializer stores task state as plain files under the task root:
//
//	<root>/task.json   assigned task
//	<root>/status      schedule status name
type FileSerializer struct{}

var _ StateSerializer = FileSerializer{}

// RestoreTaskAssignment reads <root>/task.json
func (FileSerializer) RestoreTaskAssignment(root string) (*models.AssignedTask, error) {
	data, err := os.ReadFile(filepath.Join(root, TaskFile))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("task.json is empty")
	}

	var task models.AssignedTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("parse task.json: %w", err)
	}
	return &task, nil
}

// RestoreStatus reads <root>/status
func (FileSerializer) RestoreStatus(root string) (models.ScheduleStatus, error) {
	data, err := os.ReadFile(filepath.Join(root, StatusFile))
	if err != nil {
		return "", err
	}
	return models.ParseScheduleStatus(strings.TrimSpace(string(data)))
}

// SaveTaskAssignment writes <root>/task.json atomically
func (FileSerializer) SaveTaskAssignment(root string, task *models.AssignedTask) error {
	if task == nil {
		return errors.New("task is nil")
	}
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("ensure task root: %w", err)
	}
	return writeFileAtomic(filepath.Join(root, TaskFile), append(data, '\n'), 0o644)
}

// SaveStatus writes <root>/status atomically
func (FileSerializer) SaveStatus(root string, status models.ScheduleStatus) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("ensure task root: %w", err)
	}
	return writeFileAtomic(filepath.Join(root, StatusFile), []byte(string(status)+"\n"), 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
