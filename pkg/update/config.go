package update

import (
	"errors"
	"fmt"
	"sort"

	"github.com/psantana5/stratum/pkg/models"
)

// MinPulseIntervalSecs is the shortest accepted pulse interval
const MinPulseIntervalSecs = 60

var (
	ErrInvalidBatchSize     = errors.New("batch size should be greater than 0")
	ErrInvalidWatchSecs     = errors.New("watch seconds should be greater than or equal to 0")
	ErrInvalidPulseInterval = fmt.Errorf("pulse interval seconds must be at least %d seconds", MinPulseIntervalSecs)
	ErrAmbiguousConfig      = errors.New("ambiguous update configuration")
)

// UpdaterConfig is the user-facing description of how a job update rolls out
type UpdaterConfig struct {
	BatchSize              int                       `json:"batch_size" yaml:"batch_size"`
	WatchSecs              int                       `json:"watch_secs" yaml:"watch_secs"`
	MaxTotalFailures       int                       `json:"max_total_failures" yaml:"max_total_failures"`
	MaxPerInstanceFailures int                       `json:"max_per_instance_failures" yaml:"max_per_instance_failures"`
	UpdateStrategy         *models.JobUpdateStrategy `json:"update_strategy" yaml:"update_strategy"`
	SlaAware               bool                      `json:"sla_aware" yaml:"sla_aware"`
	WaitForBatchCompletion bool                      `json:"wait_for_batch_completion" yaml:"wait_for_batch_completion"`
	RollbackOnFailure      bool                      `json:"rollback_on_failure" yaml:"rollback_on_failure"`
	PulseIntervalSecs      *int                      `json:"pulse_interval_secs" yaml:"pulse_interval_secs"`
}

// NewUpdaterConfig validates cfg and returns a copy of it
func NewUpdaterConfig(cfg UpdaterConfig) (*UpdaterConfig, error) {
	if cfg.BatchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if cfg.WatchSecs < 0 {
		return nil, ErrInvalidWatchSecs
	}
	if cfg.PulseIntervalSecs != nil && *cfg.PulseIntervalSecs < MinPulseIntervalSecs {
		return nil, ErrInvalidPulseInterval
	}
	if cfg.WaitForBatchCompletion && cfg.UpdateStrategy != nil {
		return nil, fmt.Errorf("%w: cannot combine wait_for_batch_completion with an explicit update strategy", ErrAmbiguousConfig)
	}
	if cfg.BatchSize > 1 && cfg.UpdateStrategy != nil {
		return nil, fmt.Errorf("%w: cannot combine update strategy with batch size, set the batch size inside the update strategy instead", ErrAmbiguousConfig)
	}
	cfg.UpdateStrategy = cfg.UpdateStrategy.Clone()
	return &cfg, nil
}

// ToSettings converts the config into JobUpdateSettings. When no strategy is
// set one is derived from WaitForBatchCompletion and BatchSize; otherwise
// BatchSize and WaitForBatchCompletion are synced from the strategy.
func (c *UpdaterConfig) ToSettings(instances []int) *models.JobUpdateSettings {
	switch {
	case c.UpdateStrategy == nil && c.WaitForBatchCompletion:
		c.UpdateStrategy = models.BatchStrategy(c.BatchSize)
	case c.UpdateStrategy == nil:
		c.UpdateStrategy = models.QueueStrategy(c.BatchSize)
	case c.UpdateStrategy.Queue != nil:
		c.BatchSize = c.UpdateStrategy.Queue.GroupSize
	case c.UpdateStrategy.Batch != nil:
		c.BatchSize = c.UpdateStrategy.Batch.GroupSize
		c.WaitForBatchCompletion = true
	case c.UpdateStrategy.VarBatch != nil && len(c.UpdateStrategy.VarBatch.GroupSizes) > 0:
		c.BatchSize = c.UpdateStrategy.VarBatch.GroupSizes[0]
	}

	settings := &models.JobUpdateSettings{
		UpdateGroupSize:            c.BatchSize,
		MaxPerInstanceFailures:     c.MaxPerInstanceFailures,
		MaxFailedInstances:         c.MaxTotalFailures,
		MinWaitInInstanceRunningMs: c.WatchSecs * 1000,
		RollbackOnFailure:          c.RollbackOnFailure,
		WaitForBatchCompletion:     c.WaitForBatchCompletion,
		UpdateOnlyTheseInstances:   InstancesToRanges(instances),
		UpdateStrategy:             c.UpdateStrategy.Clone(),
	}
	if c.PulseIntervalSecs != nil {
		ms := int64(*c.PulseIntervalSecs) * 1000
		settings.BlockIfNoPulsesAfterMs = &ms
	}
	sla := c.SlaAware
	settings.SlaAware = &sla
	return settings
}

// InstancesToRanges groups instance IDs into contiguous closed ranges, e.g.
// [0 1 2 5 8 9] becomes [0-2] [5-5] [8-9]. Input is sorted and deduplicated.
func InstancesToRanges(instances []int) []models.Range {
	if len(instances) == 0 {
		return nil
	}
	sorted := append([]int(nil), instances...)
	sort.Ints(sorted)

	var out []models.Range
	cur := models.Range{First: sorted[0], Last: sorted[0]}
	for _, id := range sorted[1:] {
		switch {
		case id == cur.Last:
		case id == cur.Last+1:
			cur.Last = id
		default:
			out = append(out, cur)
			cur = models.Range{First: id, Last: id}
		}
	}
	return append(out, cur)
}
