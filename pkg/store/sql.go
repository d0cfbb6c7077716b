package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/psantana5/stratum/pkg/models"
)

// Dialect selects placeholder syntax
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore is a database/sql implementation of Store. Records are stored as
// JSON documents next to the columns they are looked up by.
type SQLStore struct {
	db       *sql.DB
	dialect  Dialect
	boundary boundary
}

// NewSQLiteStore creates a SQLite store at dbPath
func NewSQLiteStore(dbPath string, config Config) (*SQLStore, error) {
	// WAL plus a busy timeout lets readers proceed while the single writer holds the lock
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer for SQLite to avoid SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	return newSQLStore(db, DialectSQLite, config)
}

// NewPostgreSQLStore creates a PostgreSQL store
func NewPostgreSQLStore(config Config) (*SQLStore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(25)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	connectTimeout := config.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	if err := retryPing(context.Background(), db.PingContext, backoff.NewExponentialBackOff(), connectTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newSQLStore(db, DialectPostgres, config)
}

// retryPing pings until success or maxElapsed. Authentication failures are
// not retried.
func retryPing(ctx context.Context, ping func(context.Context) error, b backoff.BackOff, maxElapsed time.Duration) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := ping(ctx)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Class() == "28" {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(maxElapsed))
	return err
}

func newSQLStore(db *sql.DB, dialect Dialect, config Config) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect, boundary: newBoundary(config)}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			role TEXT NOT NULL,
			environment TEXT NOT NULL,
			name TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (role, environment, name)
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE TABLE IF NOT EXISTS quotas (
			role TEXT PRIMARY KEY,
			data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS job_updates (
			role TEXT NOT NULL,
			environment TEXT NOT NULL,
			name TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (role, environment, name, id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(query string, args ...interface{}) error {
	_, err := s.db.Exec(s.rebind(query), args...)
	return err
}

// getData loads a single JSON document and decodes it into v
func (s *SQLStore) getData(v interface{}, query string, args ...interface{}) error {
	var data string
	err := s.db.QueryRow(s.rebind(query), args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

// SaveJob stores or replaces a job
func (s *SQLStore) SaveJob(job *models.JobConfiguration) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	stored := s.boundary.job(job)
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return s.exec(`
		INSERT INTO jobs (role, environment, name, data) VALUES (?, ?, ?, ?)
		ON CONFLICT (role, environment, name) DO UPDATE SET data = excluded.data
	`, stored.Key.Role, stored.Key.Environment, stored.Key.Name, string(data))
}

// GetJob retrieves a job by key
func (s *SQLStore) GetJob(key models.JobKey) (*models.JobConfiguration, error) {
	var job models.JobConfiguration
	if err := s.getData(&job, `SELECT data FROM jobs WHERE role = ? AND environment = ? AND name = ?`,
		key.Role, key.Environment, key.Name); err != nil {
		return nil, err
	}
	return s.boundary.job(&job), nil
}

// ListJobs returns every job ordered by key
func (s *SQLStore) ListJobs() ([]*models.JobConfiguration, error) {
	rows, err := s.db.Query(`SELECT data FROM jobs ORDER BY role, environment, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.JobConfiguration
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var job models.JobConfiguration
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return nil, fmt.Errorf("failed to decode job: %w", err)
		}
		jobs = append(jobs, s.boundary.job(&job))
	}
	return jobs, rows.Err()
}

// SaveTasks stores or replaces tasks by task ID in a single transaction
func (s *SQLStore) SaveTasks(tasks []*models.ScheduledTask) error {
	stored := s.boundary.tasks(tasks)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(`
		INSERT INTO tasks (id, status, data) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status, data = excluded.data
	`)
	for _, t := range stored {
		if t.TaskID() == "" {
			return fmt.Errorf("task has no ID")
		}
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal task %s: %w", t.TaskID(), err)
		}
		if _, err := tx.Exec(query, t.TaskID(), string(t.Status), string(data)); err != nil {
			return fmt.Errorf("failed to save task %s: %w", t.TaskID(), err)
		}
	}
	return tx.Commit()
}

// GetTasks returns tasks in any of the given statuses, ordered by task ID
func (s *SQLStore) GetTasks(statuses ...models.ScheduleStatus) ([]*models.ScheduledTask, error) {
	query := `SELECT data FROM tasks`
	args := make([]interface{}, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (?` + strings.Repeat(`, ?`, len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.ScheduledTask
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t models.ScheduledTask
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("failed to decode task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.boundary.tasks(tasks), nil
}

// SaveQuota validates and stores the quota of a role
func (s *SQLStore) SaveQuota(role string, quota *models.ResourceAggregate) error {
	stored, err := s.boundary.quota(quota)
	if err != nil {
		return err
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal quota: %w", err)
	}
	return s.exec(`
		INSERT INTO quotas (role, data) VALUES (?, ?)
		ON CONFLICT (role) DO UPDATE SET data = excluded.data
	`, role, string(data))
}

// GetQuota retrieves the quota of a role
func (s *SQLStore) GetQuota(role string) (*models.ResourceAggregate, error) {
	var quota models.ResourceAggregate
	if err := s.getData(&quota, `SELECT data FROM quotas WHERE role = ?`, role); err != nil {
		return nil, err
	}
	return s.boundary.quota(&quota)
}

// SaveJobUpdate stores a job update and returns its key
func (s *SQLStore) SaveJobUpdate(update *models.JobUpdate) (models.JobUpdateKey, error) {
	stored, err := s.boundary.update(update)
	if err != nil {
		return models.JobUpdateKey{}, err
	}
	withUpdateID(stored)

	data, err := json.Marshal(stored)
	if err != nil {
		return models.JobUpdateKey{}, fmt.Errorf("failed to marshal job update: %w", err)
	}
	key := stored.Summary.Key
	if err := s.exec(`
		INSERT INTO job_updates (role, environment, name, id, data) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (role, environment, name, id) DO UPDATE SET data = excluded.data
	`, key.Job.Role, key.Job.Environment, key.Job.Name, key.ID, string(data)); err != nil {
		return models.JobUpdateKey{}, err
	}
	return key, nil
}

// GetJobUpdate retrieves a job update by key
func (s *SQLStore) GetJobUpdate(key models.JobUpdateKey) (*models.JobUpdate, error) {
	var update models.JobUpdate
	if err := s.getData(&update,
		`SELECT data FROM job_updates WHERE role = ? AND environment = ? AND name = ? AND id = ?`,
		key.Job.Role, key.Job.Environment, key.Job.Name, key.ID); err != nil {
		return nil, err
	}
	return s.boundary.update(&update)
}

// HealthCheck pings the database
func (s *SQLStore) HealthCheck() error {
	return s.db.Ping()
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}
