package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyJSON = `{
  "key": {"role": "www-data", "environment": "prod", "name": "hello"},
  "instanceCount": 2,
  "taskConfig": {"job": {"role": "www-data", "environment": "prod", "name": "hello"}, "numCpus": 1.5, "ramMb": 128}
}`

const multiJSON = `{"jobs": [
  {"key": {"role": "a", "environment": "prod", "name": "one"}, "instanceCount": 1},
  {"key": {"role": "a", "environment": "prod", "name": "two"}, "instanceCount": 3}
]}`

const multiYAML = `
jobs:
  - key: {role: a, environment: devel, name: one}
    instanceCount: 1
    taskConfig:
      job: {role: a, environment: devel, name: one}
      resources:
        - numCpus: 2
        - ramMb: 256
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSON_LegacySingleJob(t *testing.T) {
	l := NewLoader()
	jobs, err := l.LoadJSON(writeFile(t, "job.json", legacyJSON), false)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "www-data/prod/hello", jobs[0].Key.String())
	assert.Equal(t, 2, jobs[0].InstanceCount)
	assert.Equal(t, 1.5, jobs[0].TaskConfig.NumCpus)
}

func TestLoadJSON_MultiJob(t *testing.T) {
	jobs, err := NewLoader().LoadJSON(writeFile(t, "jobs.json", multiJSON), false)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "two", jobs[1].Key.Name)
}

func TestLoadYAML(t *testing.T) {
	jobs, err := NewLoader().LoadYAML(writeFile(t, "jobs.yaml", multiYAML), false)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Len(t, jobs[0].TaskConfig.Resources, 2)
	assert.Equal(t, 2.0, *jobs[0].TaskConfig.Resources[0].NumCpus)
	assert.Equal(t, int64(256), *jobs[0].TaskConfig.Resources[1].RamMb)
}

func TestLoad_Memoized(t *testing.T) {
	l := NewLoader()
	a := writeFile(t, "a.json", legacyJSON)
	b := writeFile(t, "b.json", legacyJSON)

	first, err := l.LoadJSON(a, true)
	require.NoError(t, err)
	second, err := l.LoadJSON(b, true)
	require.NoError(t, err)
	assert.Equal(t, 1, l.parses, "identical content should parse once")
	assert.Equal(t, first, second)

	// cached results are copies
	second[0].InstanceCount = 99
	third, err := l.LoadJSON(a, true)
	require.NoError(t, err)
	assert.Equal(t, 2, third[0].InstanceCount)

	_, err = l.LoadJSON(a, false)
	require.NoError(t, err)
	assert.Equal(t, 1, l.parses)

	l.Flush()
	_, err = l.LoadJSON(a, true)
	require.NoError(t, err)
	assert.Equal(t, 2, l.parses)
}

func TestLoad_Errors(t *testing.T) {
	l := NewLoader()

	_, err := l.LoadJSON(filepath.Join(t.TempDir(), "missing.json"), true)
	assert.Error(t, err)

	_, err = l.LoadJSON(writeFile(t, "bad.json", "{nope"), false)
	assert.Error(t, err)

	_, err = l.LoadJSON(writeFile(t, "null.json", `{"jobs": [null]}`), false)
	assert.Error(t, err)

	_, err = Parse([]byte("{}"), Format("toml"))
	assert.Error(t, err)
}
