package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/psantana5/stratum/pkg/logging"
	"github.com/psantana5/stratum/pkg/metrics"
	"github.com/psantana5/stratum/pkg/tracing"
)

// RecoveryConfig configures a Recovery
type RecoveryConfig struct {
	// Root holds one subdirectory per task
	Root       string
	Serializer StateSerializer
	Logger     *logging.Logger
	Metrics    *metrics.Collector
	Tracer     trace.Tracer
}

// RecoveryFailure describes a task directory that could not be restored
type RecoveryFailure struct {
	Dir string
	Err error
}

// RecoveryReport is the outcome of a scan
// Pruned lists indexed task IDs dropped because their directory is gone.
type RecoveryReport struct {
	Recovered []*DeadTask
	Failures  []RecoveryFailure
	Pruned    []string
}

// Recovery restores dead tasks left under an executor root after a restart
// and keeps them indexed by task ID until evicted.
type Recovery struct {
	root       string
	serializer StateSerializer
	log        *logging.Logger
	metrics    *metrics.Collector
	tracer     trace.Tracer

	mu    sync.RWMutex
	tasks map[string]*DeadTask
}

// NewRecovery creates a Recovery. Serializer defaults to FileSerializer.
func NewRecovery(cfg RecoveryConfig) (*Recovery, error) {
	if cfg.Root == "" {
		return nil, errors.New("executor root is required")
	}
	if cfg.Serializer == nil {
		cfg.Serializer = FileSerializer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("stratum/executor")
	}
	return &Recovery{
		root:       cfg.Root,
		serializer: cfg.Serializer,
		log:        cfg.Logger.WithField("root", cfg.Root),
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
		tasks:      make(map[string]*DeadTask),
	}, nil
}

// Recover scans the root and indexes every task directory that restores as a
// dead task. A directory that fails does not stop the scan; it is reported
// in RecoveryReport.Failures. A rescan keeps the already indexed instance of
// a task found at the same directory. After a complete scan, indexed tasks
// whose directory has vanished are dropped and listed in RecoveryReport.Pruned.
// Only a missing root or a cancelled context returns an error.
func (r *Recovery) Recover(ctx context.Context) (*RecoveryReport, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "executor.recover", trace.WithAttributes(attribute.String("root", r.root)))
	defer span.End()
	defer func() { r.metrics.ObserveScan(time.Since(start).Seconds()) }()

	info, err := os.Stat(r.root)
	if err != nil {
		err = &StorageAccessError{Path: r.root, Reason: "executor root does not exist", Err: err}
		tracing.SetError(ctx, err)
		return nil, err
	}
	if !info.IsDir() {
		err = &StorageAccessError{Path: r.root, Reason: "not a directory"}
		tracing.SetError(ctx, err)
		return nil, err
	}

	entries, err := os.ReadDir(r.root)
	if err != nil {
		err = &StorageAccessError{Path: r.root, Reason: "failed to list executor root", Err: err}
		tracing.SetError(ctx, err)
		return nil, err
	}

	report := &RecoveryReport{}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			tracing.SetError(ctx, err)
			return report, err
		}
		if !e.IsDir() {
			continue
		}

		dir := filepath.Join(r.root, e.Name())
		task, err := r.restore(dir)
		if err != nil {
			r.log.Warn("Failed to recover task", logging.Fields{"dir": dir, "error": err.Error()})
			r.metrics.RecoveryResult(metrics.ResultFailed)
			report.Failures = append(report.Failures, RecoveryFailure{Dir: dir, Err: err})
			continue
		}

		seen[task.ID()] = true
		r.log.Debug("Recovered dead task", logging.Fields{"task": task.ID(), "status": string(task.ScheduleStatus())})
		r.metrics.RecoveryResult(metrics.ResultRecovered)
		report.Recovered = append(report.Recovered, task)
	}

	sort.Slice(report.Recovered, func(i, j int) bool {
		return report.Recovered[i].ID() < report.Recovered[j].ID()
	})
	report.Pruned = r.prune(seen)

	span.SetAttributes(
		attribute.Int("recovered", len(report.Recovered)),
		attribute.Int("failed", len(report.Failures)),
		attribute.Int("pruned", len(report.Pruned)),
	)
	if len(report.Recovered) > 0 || len(report.Failures) > 0 || len(report.Pruned) > 0 {
		r.log.Info("Recovery scan completed", logging.Fields{
			"recovered": len(report.Recovered),
			"failed":    len(report.Failures),
			"pruned":    len(report.Pruned),
		})
	}
	return report, nil
}

func (r *Recovery) restore(dir string) (*DeadTask, error) {
	task, err := NewDeadTask(dir, r.serializer)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tasks[task.ID()]; ok {
		if existing.Root() != dir {
			return nil, fmt.Errorf("task %s already recovered from %s", task.ID(), existing.Root())
		}
		// Dead task state never changes; keep the instance and its disk cache.
		return existing, nil
	}
	r.tasks[task.ID()] = task
	return task, nil
}

// prune drops indexed tasks missing from the latest scan whose directory no
// longer exists. Tasks whose directory is still present stay indexed.
func (r *Recovery) prune(seen map[string]bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pruned []string
	for id, t := range r.tasks {
		if seen[id] {
			continue
		}
		if _, err := os.Stat(t.Root()); errors.Is(err, os.ErrNotExist) {
			delete(r.tasks, id)
			pruned = append(pruned, id)
		}
	}
	sort.Strings(pruned)
	return pruned
}

// Get returns a recovered task by ID
func (r *Recovery) Get(id string) (*DeadTask, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// List returns all recovered tasks sorted by ID
func (r *Recovery) List() []*DeadTask {
	r.mu.RLock()
	out := make([]*DeadTask, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Evict drops a task from the index. Nothing on disk is touched.
func (r *Recovery) Evict(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return false
	}
	delete(r.tasks, id)
	return true
}

// DiskConsumed sums the disk usage of every indexed task and publishes it as
// a gauge. Tasks whose usage cannot be measured are skipped and logged.
func (r *Recovery) DiskConsumed() int64 {
	var total int64
	for _, t := range r.List() {
		n, err := t.DiskConsumed()
		if err != nil {
			r.log.Warn("Failed to measure task disk usage", logging.Fields{"task": t.ID(), "error": err.Error()})
			continue
		}
		total += n
	}
	r.metrics.SetDiskBytes(total)
	return total
}
