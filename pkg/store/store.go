package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/stratum/pkg/backfill"
	"github.com/psantana5/stratum/pkg/metrics"
	"github.com/psantana5/stratum/pkg/models"
)

// Store persists scheduler records. Every record written or read passes
// through schema backfill, so callers always see the canonical encoding.
type Store interface {
	// Job operations
	SaveJob(job *models.JobConfiguration) error
	GetJob(key models.JobKey) (*models.JobConfiguration, error)
	ListJobs() ([]*models.JobConfiguration, error)

	// Task operations. GetTasks with no statuses returns every task.
	SaveTasks(tasks []*models.ScheduledTask) error
	GetTasks(statuses ...models.ScheduleStatus) ([]*models.ScheduledTask, error)

	// Quota operations, keyed by role
	SaveQuota(role string, quota *models.ResourceAggregate) error
	GetQuota(role string) (*models.ResourceAggregate, error)

	// Job update operations. SaveJobUpdate assigns an ID when the key has none.
	SaveJobUpdate(update *models.JobUpdate) (models.JobUpdateKey, error)
	GetJobUpdate(key models.JobUpdateKey) (*models.JobUpdate, error)

	// Lifecycle
	HealthCheck() error
	Close() error
}

// Config holds store configuration
type Config struct {
	Type string // "memory", "sqlite" or "postgres"
	DSN  string // Connection string, or the database path for sqlite

	// PostgreSQL specific
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration // how long to retry the initial ping, default 30s

	// QuotaTypes is the canonical quota resource set. Defaults to
	// backfill.DefaultQuotaResourceTypes.
	QuotaTypes backfill.QuotaTypes
	Metrics    *metrics.Collector
}

// NewStore creates a store based on configuration
func NewStore(config Config) (Store, error) {
	switch config.Type {
	case "memory":
		return NewMemoryStore(config), nil
	case "postgres", "postgresql":
		return NewPostgreSQLStore(config)
	case "sqlite", "":
		path := config.DSN
		if path == "" {
			path = "stratum.db"
		}
		return NewSQLiteStore(path, config)
	default:
		return nil, ErrUnsupportedDatabase
	}
}

var (
	ErrUnsupportedDatabase = NewError("unsupported database type")
	ErrNotFound            = NewError("record not found")
)

// NewError creates a new error with message
func NewError(message string) error {
	return &storeError{message: message}
}

type storeError struct {
	message string
}

func (e *storeError) Error() string {
	return e.message
}

// Record kinds, used as metric labels
const (
	kindJob    = "job"
	kindTask   = "task"
	kindQuota  = "quota"
	kindUpdate = "update"
)

// boundary applies backfill to records crossing the store boundary and
// counts the result. Inputs are never modified.
type boundary struct {
	bf      *backfill.Backfiller
	metrics *metrics.Collector
}

func newBoundary(config Config) boundary {
	return boundary{bf: backfill.New(config.QuotaTypes), metrics: config.Metrics}
}

func (b boundary) job(job *models.JobConfiguration) *models.JobConfiguration {
	out := b.bf.BackfillJobConfiguration(job.Clone())
	b.metrics.Backfilled(kindJob)
	return out
}

func (b boundary) tasks(tasks []*models.ScheduledTask) []*models.ScheduledTask {
	// BackfillTasks copies its output, but it backfills the inputs in place first
	in := make([]*models.ScheduledTask, len(tasks))
	for i, t := range tasks {
		in[i] = t.Clone()
	}
	out := b.bf.BackfillTasks(in)
	for range out {
		b.metrics.Backfilled(kindTask)
	}
	return out
}

func (b boundary) quota(quota *models.ResourceAggregate) (*models.ResourceAggregate, error) {
	out, err := b.bf.BackfillResourceAggregate(quota)
	if err != nil {
		b.metrics.Rejected(kindQuota)
		return nil, err
	}
	b.metrics.Backfilled(kindQuota)
	return out, nil
}

func (b boundary) update(update *models.JobUpdate) (*models.JobUpdate, error) {
	out, err := b.bf.BackfillJobUpdate(update.Clone())
	if err != nil {
		b.metrics.Rejected(kindUpdate)
		return nil, err
	}
	b.metrics.Backfilled(kindUpdate)
	return out, nil
}

// withUpdateID fills in a random update ID when the key has none
func withUpdateID(update *models.JobUpdate) {
	if update.Summary.Key.ID == "" {
		update.Summary.Key.ID = uuid.NewString()
	}
}
