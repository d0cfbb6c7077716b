package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/stratum/pkg/executor"
	"github.com/psantana5/stratum/pkg/models"
	tlsutil "github.com/psantana5/stratum/pkg/tls"
)

// run executes the root command against a fresh sqlite store and returns stdout
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	backfillSave, recoverSave = false, false
	outputFormat = "table"
	taskStatuses, updateInstances, certHosts = nil, nil, nil
	maxPerInstanceFailures, maxTotalFailures = 0, 0

	cfg := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(cfg); os.IsNotExist(err) {
		content := fmt.Sprintf("store:\n  type: sqlite\n  dsn: %s\nlog:\n  level: error\n", filepath.Join(dir, "stratum.db"))
		require.NoError(t, os.WriteFile(cfg, []byte(content), 0o644))
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestQuotaCheck(t *testing.T) {
	dir := t.TempDir()
	valid := writeFile(t, dir, "quota.yaml", "resources:\n  - numCpus: 4\n  - ramMb: 1024\n  - diskMb: 4096\n")
	out, err := run(t, dir, "quota", "check", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	invalid := writeFile(t, dir, "bad.json", `{"resources": [{"numCpus": 4}, {"numGpus": 1}]}`)
	_, err = run(t, dir, "quota", "check", invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota resources must be exactly: [CPUS, DISK_MB, RAM_MB]")
}

func TestQuotaSetGet(t *testing.T) {
	dir := t.TempDir()
	valid := writeFile(t, dir, "quota.json", `{"resources": [{"numCpus": 4}, {"ramMb": 1024}, {"diskMb": 4096}]}`)
	_, err := run(t, dir, "quota", "set", "www-data", valid)
	require.NoError(t, err)

	out, err := run(t, dir, "quota", "get", "www-data", "-o", "json")
	require.NoError(t, err)
	var agg models.ResourceAggregate
	require.NoError(t, json.Unmarshal([]byte(out), &agg))
	assert.Len(t, agg.Resources, 3)
}

func TestBackfillJob(t *testing.T) {
	dir := t.TempDir()
	job := writeFile(t, dir, "job.json", `{
	  "key": {"role": "www-data", "environment": "prod", "name": "hello"},
	  "instanceCount": 1,
	  "taskConfig": {"job": {"role": "www-data", "environment": "prod", "name": "hello"}, "numCpus": 2, "ramMb": 64}
	}`)

	out, err := run(t, dir, "backfill", "job", job)
	require.NoError(t, err)
	assert.Contains(t, out, "numCpus: 2")
	assert.Contains(t, out, "resources:")

	out, err = run(t, dir, "backfill", "job", job, "--save", "-o", "json")
	require.NoError(t, err)
	var doc struct {
		Jobs []*models.JobConfiguration `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Jobs, 1)
	assert.Len(t, doc.Jobs[0].TaskConfig.Resources, 2)

	out, err = run(t, dir, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "www-data/prod/hello")

	out, err = run(t, dir, "jobs", "get", "www-data/prod/hello", "-o", "json")
	require.NoError(t, err)
	var stored models.JobConfiguration
	require.NoError(t, json.Unmarshal([]byte(out), &stored))
	assert.Equal(t, int64(64), stored.TaskConfig.RamMb)

	_, err = run(t, dir, "jobs", "get", "www-data/prod")
	assert.ErrorContains(t, err, "invalid job key")
}

func TestBackfillUpdate(t *testing.T) {
	dir := t.TempDir()
	update := writeFile(t, dir, "update.json", `{
	  "summary": {"key": {"job": {"role": "a", "environment": "prod", "name": "b"}}},
	  "instructions": {"settings": {"updateGroupSize": 4}}
	}`)

	out, err := run(t, dir, "backfill", "update", update, "--save", "-o", "json")
	require.NoError(t, err)
	var got models.JobUpdate
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, models.QueueStrategy(4), got.Instructions.Settings.UpdateStrategy)
	require.NotEmpty(t, got.Summary.Key.ID)

	out, err = run(t, dir, "update", "get", "a/prod/b", got.Summary.Key.ID, "-o", "json")
	require.NoError(t, err)
	var stored models.JobUpdate
	require.NoError(t, json.Unmarshal([]byte(out), &stored))
	assert.Equal(t, models.QueueStrategy(4), stored.Instructions.Settings.UpdateStrategy)

	_, err = run(t, dir, "update", "get", "a/prod/b", "missing")
	assert.Error(t, err)
}

func TestUpdateFailures(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "update", "failures", "0,1", "1", "--max-per-instance", "1", "--max-total", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "within failure threshold")

	out, err = run(t, dir, "update", "failures", "0,1", "0,1", "--max-per-instance", "1", "--max-total", "1", "-o", "json")
	require.NoError(t, err)
	var verdict struct {
		Failed   bool           `json:"failed"`
		Exceeded []models.Range `json:"exceeded"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &verdict))
	assert.True(t, verdict.Failed)
	assert.Equal(t, []models.Range{{First: 0, Last: 1}}, verdict.Exceeded)

	_, err = run(t, dir, "update", "failures", "x")
	assert.ErrorContains(t, err, "invalid instance ID")
}

func TestRecoverAndListTasks(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "tasks")
	for id, status := range map[string]models.ScheduleStatus{"T1": models.StatusFinished, "T2": models.StatusFailed} {
		taskDir := filepath.Join(root, id)
		require.NoError(t, executor.FileSerializer{}.SaveTaskAssignment(taskDir, &models.AssignedTask{
			TaskID: id,
			Task:   &models.TaskConfig{Job: models.JobKey{Role: "r", Environment: "e", Name: "n"}, NumCpus: 1},
		}))
		require.NoError(t, executor.FileSerializer{}.SaveStatus(taskDir, status))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "broken"), 0o755))

	out, err := run(t, dir, "recover", "--root", root, "--save", "-o", "json")
	require.NoError(t, err)
	var result recoverResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Tasks, 2)
	assert.Len(t, result.Failures, 1)

	out, err = run(t, dir, "recover", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "T1")
	assert.Contains(t, out, "Total task disk usage")

	out, err = run(t, dir, "tasks", "list", "--status", "failed", "-o", "json")
	require.NoError(t, err)
	var listed struct {
		Tasks []*models.ScheduledTask `json:"tasks"`
		Count int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Equal(t, 1, listed.Count)
	assert.Equal(t, "T2", listed.Tasks[0].TaskID())
	assert.Len(t, listed.Tasks[0].AssignedTask.Task.Resources, 1)
}

func TestUpdateSettings(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "updater.yaml", "batch_size: 3\nwatch_secs: 30\nwait_for_batch_completion: true\n")

	out, err := run(t, dir, "update", "settings", cfg, "--instances", "0,1,2,4", "-o", "json")
	require.NoError(t, err)
	var settings models.JobUpdateSettings
	require.NoError(t, json.Unmarshal([]byte(out), &settings))
	assert.Equal(t, models.BatchStrategy(3), settings.UpdateStrategy)
	assert.Equal(t, 30000, settings.MinWaitInInstanceRunningMs)
	assert.Equal(t, []models.Range{{First: 0, Last: 2}, {First: 4, Last: 4}}, settings.UpdateOnlyTheseInstances)

	bad := writeFile(t, dir, "bad.yaml", "batch_size: 0\n")
	_, err = run(t, dir, "update", "settings", bad)
	assert.Error(t, err)
}

func TestAPIKeyAndCert(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "apikey")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 43)

	certDir := t.TempDir()
	out, err = run(t, dir, "cert", certDir, "--host", "10.0.0.7")
	require.NoError(t, err)
	assert.Contains(t, out, "server.crt")
	_, err = tlsutil.ServerConfig{
		CertFile: filepath.Join(certDir, "server.crt"),
		KeyFile:  filepath.Join(certDir, "server.key"),
	}.Load()
	assert.NoError(t, err)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
