package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/psantana5/stratum/pkg/models"
)

// MemoryStore is an in-memory implementation of Store
type MemoryStore struct {
	mu       sync.RWMutex
	boundary boundary
	jobs     map[models.JobKey]*models.JobConfiguration
	tasks    map[string]*models.ScheduledTask
	quotas   map[string]*models.ResourceAggregate
	updates  map[models.JobUpdateKey]*models.JobUpdate
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(config Config) *MemoryStore {
	return &MemoryStore{
		boundary: newBoundary(config),
		jobs:     make(map[models.JobKey]*models.JobConfiguration),
		tasks:    make(map[string]*models.ScheduledTask),
		quotas:   make(map[string]*models.ResourceAggregate),
		updates:  make(map[models.JobUpdateKey]*models.JobUpdate),
	}
}

// SaveJob stores or replaces a job
func (s *MemoryStore) SaveJob(job *models.JobConfiguration) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	stored := s.boundary.job(job)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[stored.Key] = stored
	return nil
}

// GetJob retrieves a job by key
func (s *MemoryStore) GetJob(key models.JobKey) (*models.JobConfiguration, error) {
	s.mu.RLock()
	job, ok := s.jobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.boundary.job(job), nil
}

// ListJobs returns every job ordered by key
func (s *MemoryStore) ListJobs() ([]*models.JobConfiguration, error) {
	s.mu.RLock()
	jobs := make([]*models.JobConfiguration, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, s.boundary.job(job))
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Key.String() < jobs[j].Key.String()
	})
	return jobs, nil
}

// SaveTasks stores or replaces tasks by task ID
func (s *MemoryStore) SaveTasks(tasks []*models.ScheduledTask) error {
	stored := s.boundary.tasks(tasks)
	for _, t := range stored {
		if t.TaskID() == "" {
			return fmt.Errorf("task has no ID")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range stored {
		s.tasks[t.TaskID()] = t
	}
	return nil
}

// GetTasks returns tasks in any of the given statuses, ordered by task ID
func (s *MemoryStore) GetTasks(statuses ...models.ScheduleStatus) ([]*models.ScheduledTask, error) {
	want := make(map[models.ScheduleStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.RLock()
	matched := make([]*models.ScheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if len(want) == 0 || want[t.Status] {
			matched = append(matched, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].TaskID() < matched[j].TaskID()
	})
	return s.boundary.tasks(matched), nil
}

// SaveQuota validates and stores the quota of a role
func (s *MemoryStore) SaveQuota(role string, quota *models.ResourceAggregate) error {
	stored, err := s.boundary.quota(quota)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotas[role] = stored
	return nil
}

// GetQuota retrieves the quota of a role
func (s *MemoryStore) GetQuota(role string) (*models.ResourceAggregate, error) {
	s.mu.RLock()
	quota, ok := s.quotas[role]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.boundary.quota(quota)
}

// SaveJobUpdate stores a job update and returns its key
func (s *MemoryStore) SaveJobUpdate(update *models.JobUpdate) (models.JobUpdateKey, error) {
	stored, err := s.boundary.update(update)
	if err != nil {
		return models.JobUpdateKey{}, err
	}
	withUpdateID(stored)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[stored.Summary.Key] = stored
	return stored.Summary.Key, nil
}

// GetJobUpdate retrieves a job update by key
func (s *MemoryStore) GetJobUpdate(key models.JobUpdateKey) (*models.JobUpdate, error) {
	s.mu.RLock()
	update, ok := s.updates[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.boundary.update(update)
}

// HealthCheck always succeeds
func (s *MemoryStore) HealthCheck() error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
