// Package config loads job configuration files.
package config

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/psantana5/stratum/pkg/models"
)

// Format is the encoding of a job configuration file
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type document struct {
	Jobs []*models.JobConfiguration `json:"jobs" yaml:"jobs"`
}

// Loader parses job configuration files, optionally memoizing the result by
// the MD5 of the file content.
type Loader struct {
	mu     sync.Mutex
	cache  map[Format]map[string][]*models.JobConfiguration
	parses int
}

// NewLoader creates a Loader with empty caches
func NewLoader() *Loader {
	return &Loader{cache: make(map[Format]map[string][]*models.JobConfiguration)}
}

// LoadJSON parses a JSON job configuration file
func (l *Loader) LoadJSON(path string, memoized bool) ([]*models.JobConfiguration, error) {
	return l.load(path, FormatJSON, memoized)
}

// LoadYAML parses a YAML job configuration file
func (l *Loader) LoadYAML(path string, memoized bool) ([]*models.JobConfiguration, error) {
	return l.load(path, FormatYAML, memoized)
}

// Flush drops every memoized result
func (l *Loader) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[Format]map[string][]*models.JobConfiguration)
}

func (l *Loader) load(path string, format Format, memoized bool) ([]*models.JobConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job config %s: %w", path, err)
	}

	if !memoized {
		return Parse(data, format)
	}

	sum := md5.Sum(data)
	key := hex.EncodeToString(sum[:])

	l.mu.Lock()
	cached, ok := l.cache[format][key]
	l.mu.Unlock()
	if ok {
		return cloneJobs(cached), nil
	}

	jobs, err := Parse(data, format)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.parses++
	if l.cache[format] == nil {
		l.cache[format] = make(map[string][]*models.JobConfiguration)
	}
	l.cache[format][key] = cloneJobs(jobs)
	l.mu.Unlock()
	return jobs, nil
}

// Parse decodes job configurations. A document without a top-level "jobs"
// key is treated as a single legacy job.
func Parse(data []byte, format Format) ([]*models.JobConfiguration, error) {
	var (
		raw    map[string]interface{}
		doc    document
		job    models.JobConfiguration
		decode func(interface{}) error
	)
	switch format {
	case FormatJSON:
		decode = func(v interface{}) error { return json.Unmarshal(data, v) }
	case FormatYAML:
		decode = func(v interface{}) error { return yaml.Unmarshal(data, v) }
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}

	if err := decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s job config: %w", format, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("job config is empty")
	}

	if _, ok := raw["jobs"]; ok {
		if err := decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s job config: %w", format, err)
		}
	} else {
		if err := decode(&job); err != nil {
			return nil, fmt.Errorf("failed to parse legacy %s job config: %w", format, err)
		}
		doc.Jobs = []*models.JobConfiguration{&job}
	}

	for i, j := range doc.Jobs {
		if j == nil {
			return nil, fmt.Errorf("job %d is null", i)
		}
	}
	return doc.Jobs, nil
}

func cloneJobs(jobs []*models.JobConfiguration) []*models.JobConfiguration {
	out := make([]*models.JobConfiguration, len(jobs))
	for i, j := range jobs {
		out[i] = j.Clone()
	}
	return out
}
