// Package backfill migrates task, job, quota and update records between wire
// schema versions by populating deprecated and replacement fields so that
// readers see one consistent shape regardless of when a record was written.
package backfill

import (
	"errors"
	"fmt"

	"github.com/psantana5/stratum/pkg/models"
)

// ErrInvalidArgument is returned for records that cannot be made canonical
var ErrInvalidArgument = errors.New("invalid argument")

// QuotaTypes supplies the resource dimensions that count toward quota
type QuotaTypes interface {
	QuotaResourceTypes() models.ResourceTypeSet
}

// StaticQuotaTypes is a fixed quota resource set
type StaticQuotaTypes models.ResourceTypeSet

// QuotaResourceTypes implements QuotaTypes
func (s StaticQuotaTypes) QuotaResourceTypes() models.ResourceTypeSet {
	return models.ResourceTypeSet(s)
}

// DefaultQuotaResourceTypes returns the dimensions billed by default
func DefaultQuotaResourceTypes() models.ResourceTypeSet {
	return models.NewResourceTypeSet(models.ResourceCPUs, models.ResourceRAMMb, models.ResourceDisk)
}

// Backfiller runs schema backfill against an injected quota resource set
type Backfiller struct {
	quota QuotaTypes
}

// New creates a Backfiller. A nil quota source falls back to the defaults.
func New(quota QuotaTypes) *Backfiller {
	if quota == nil {
		quota = StaticQuotaTypes(DefaultQuotaResourceTypes())
	}
	return &Backfiller{quota: quota}
}

// BackfillTask makes TaskConfig.Resources and the legacy scalar resource
// fields agree, one resource type at a time. A type present in Resources is
// copied into its legacy field; a legacy value with no matching resource is
// appended to Resources. Resources wins when both carry a value. The config is
// modified in place and returned.
func (b *Backfiller) BackfillTask(config *models.TaskConfig) *models.TaskConfig {
	if config == nil {
		return nil
	}

	var (
		hasCPUs, hasRAM, hasDisk bool
		ports                    []string
		seenPorts                = make(map[string]bool)
	)
	for _, r := range config.Resources {
		switch models.ResourceTypeOf(r) {
		case models.ResourceCPUs:
			if !hasCPUs {
				config.NumCpus, hasCPUs = *r.NumCpus, true
			}
		case models.ResourceRAMMb:
			if !hasRAM {
				config.RamMb, hasRAM = *r.RamMb, true
			}
		case models.ResourceDisk:
			if !hasDisk {
				config.DiskMb, hasDisk = *r.DiskMb, true
			}
		case models.ResourcePorts:
			if !seenPorts[*r.NamedPort] {
				seenPorts[*r.NamedPort] = true
				ports = append(ports, *r.NamedPort)
			}
		}
	}

	if !hasCPUs && config.NumCpus > 0 {
		config.Resources = append(config.Resources, models.CPUs(config.NumCpus))
	}
	if !hasRAM && config.RamMb > 0 {
		config.Resources = append(config.Resources, models.RAMMb(config.RamMb))
	}
	if !hasDisk && config.DiskMb > 0 {
		config.Resources = append(config.Resources, models.DiskMb(config.DiskMb))
	}
	for _, p := range config.RequestedPorts {
		if !seenPorts[p] {
			seenPorts[p] = true
			ports = append(ports, p)
			config.Resources = append(config.Resources, models.NamedPort(p))
		}
	}
	config.RequestedPorts = ports

	return config
}

// BackfillJobConfiguration backfills the job's task and returns a copy.
// See BackfillTask.
func (b *Backfiller) BackfillJobConfiguration(job *models.JobConfiguration) *models.JobConfiguration {
	if job == nil {
		return nil
	}
	b.BackfillTask(job.TaskConfig)
	return job.Clone()
}

// BackfillTasks backfills the task of every scheduled task and returns copies.
// Tasks sharing an ID are collapsed to the first occurrence.
func (b *Backfiller) BackfillTasks(tasks []*models.ScheduledTask) []*models.ScheduledTask {
	out := make([]*models.ScheduledTask, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t == nil {
			continue
		}
		id := t.TaskID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, b.backfillScheduledTask(t).Clone())
	}
	return out
}

func (b *Backfiller) backfillScheduledTask(task *models.ScheduledTask) *models.ScheduledTask {
	if task.AssignedTask != nil {
		b.BackfillTask(task.AssignedTask.Task)
	}
	return task
}

// BackfillResourceAggregate validates a quota aggregate against the injected
// quota resource set. See the package-level BackfillResourceAggregate.
func (b *Backfiller) BackfillResourceAggregate(agg *models.ResourceAggregate) (*models.ResourceAggregate, error) {
	return BackfillResourceAggregate(agg, b.quota.QuotaResourceTypes())
}

// BackfillResourceAggregate checks that agg holds exactly one value for every
// type in canonical and nothing else, and returns a copy.
func BackfillResourceAggregate(agg *models.ResourceAggregate, canonical models.ResourceTypeSet) (*models.ResourceAggregate, error) {
	if agg == nil {
		return nil, fmt.Errorf("%w: quota aggregate is nil", ErrInvalidArgument)
	}
	if len(agg.Resources) > len(canonical) {
		return nil, fmt.Errorf("%w: too many resource values in quota", ErrInvalidArgument)
	}
	if !canonical.Equal(agg.Types()) {
		return nil, fmt.Errorf("%w: quota resources must be exactly: %s", ErrInvalidArgument, canonical)
	}
	return agg.Clone(), nil
}

// BackfillJobUpdate backfills the desired and initial task states and the
// update strategy, and returns a copy. See BackfillTask.
func (b *Backfiller) BackfillJobUpdate(update *models.JobUpdate) (*models.JobUpdate, error) {
	if update == nil || update.Instructions == nil {
		return nil, fmt.Errorf("%w: job update has no instructions", ErrInvalidArgument)
	}
	instructions := update.Instructions
	if instructions.Settings == nil {
		return nil, fmt.Errorf("%w: job update %s has no settings", ErrInvalidArgument, update.Summary.Key.ID)
	}

	if instructions.DesiredState != nil {
		b.BackfillTask(instructions.DesiredState.Task)
	}

	BackfillUpdateStrategy(instructions.Settings)

	for i := range instructions.InitialState {
		b.BackfillTask(instructions.InitialState[i].Task)
	}

	return update.Clone(), nil
}

// BackfillUpdateStrategy converts the legacy update settings schema to an
// explicit update strategy. Settings that already carry one are left alone.
func BackfillUpdateStrategy(settings *models.JobUpdateSettings) {
	if settings == nil || settings.UpdateStrategy != nil {
		return
	}
	if settings.WaitForBatchCompletion {
		settings.UpdateStrategy = models.BatchStrategy(settings.UpdateGroupSize)
	} else {
		settings.UpdateStrategy = models.QueueStrategy(settings.UpdateGroupSize)
	}
}
