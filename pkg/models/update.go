package models

import "fmt"

// Range is a closed span of instance IDs
type Range struct {
	First int `json:"first" yaml:"first"`
	Last  int `json:"last" yaml:"last"`
}

func (r Range) String() string {
	return fmt.Sprintf("[%d-%d]", r.First, r.Last)
}

// QueueJobUpdateStrategy keeps up to GroupSize instances updating at any time
type QueueJobUpdateStrategy struct {
	GroupSize int `json:"groupSize" yaml:"groupSize"`
}

// BatchJobUpdateStrategy updates GroupSize instances and waits for the whole batch
type BatchJobUpdateStrategy struct {
	GroupSize           int  `json:"groupSize" yaml:"groupSize"`
	AutopauseAfterBatch bool `json:"autopauseAfterBatch,omitempty" yaml:"autopauseAfterBatch,omitempty"`
}

// VariableBatchJobUpdateStrategy updates batches of varying sizes
type VariableBatchJobUpdateStrategy struct {
	GroupSizes          []int `json:"groupSizes" yaml:"groupSizes"`
	AutopauseAfterBatch bool  `json:"autopauseAfterBatch,omitempty" yaml:"autopauseAfterBatch,omitempty"`
}

// JobUpdateStrategy is a tagged union. Exactly one field is set.
type JobUpdateStrategy struct {
	Queue    *QueueJobUpdateStrategy         `json:"queueStrategy,omitempty" yaml:"queueStrategy,omitempty"`
	Batch    *BatchJobUpdateStrategy         `json:"batchStrategy,omitempty" yaml:"batchStrategy,omitempty"`
	VarBatch *VariableBatchJobUpdateStrategy `json:"varBatchStrategy,omitempty" yaml:"varBatchStrategy,omitempty"`
}

// QueueStrategy builds a queue strategy
func QueueStrategy(groupSize int) *JobUpdateStrategy {
	return &JobUpdateStrategy{Queue: &QueueJobUpdateStrategy{GroupSize: groupSize}}
}

// BatchStrategy builds a batch strategy
func BatchStrategy(groupSize int) *JobUpdateStrategy {
	return &JobUpdateStrategy{Batch: &BatchJobUpdateStrategy{GroupSize: groupSize}}
}

// VarBatchStrategy builds a variable batch strategy
func VarBatchStrategy(groupSizes ...int) *JobUpdateStrategy {
	return &JobUpdateStrategy{VarBatch: &VariableBatchJobUpdateStrategy{GroupSizes: groupSizes}}
}

// Clone returns a deep copy
func (s *JobUpdateStrategy) Clone() *JobUpdateStrategy {
	if s == nil {
		return nil
	}
	var out JobUpdateStrategy
	if s.Queue != nil {
		q := *s.Queue
		out.Queue = &q
	}
	if s.Batch != nil {
		b := *s.Batch
		out.Batch = &b
	}
	if s.VarBatch != nil {
		v := *s.VarBatch
		v.GroupSizes = append([]int(nil), s.VarBatch.GroupSizes...)
		out.VarBatch = &v
	}
	return &out
}

// JobUpdateSettings controls how an update rolls out. UpdateGroupSize and
// WaitForBatchCompletion are the legacy encoding of UpdateStrategy.
type JobUpdateSettings struct {
	UpdateGroupSize            int                `json:"updateGroupSize" yaml:"updateGroupSize"`
	MaxPerInstanceFailures     int                `json:"maxPerInstanceFailures" yaml:"maxPerInstanceFailures"`
	MaxFailedInstances         int                `json:"maxFailedInstances" yaml:"maxFailedInstances"`
	MinWaitInInstanceRunningMs int                `json:"minWaitInInstanceRunningMs" yaml:"minWaitInInstanceRunningMs"`
	RollbackOnFailure          bool               `json:"rollbackOnFailure" yaml:"rollbackOnFailure"`
	UpdateOnlyTheseInstances   []Range            `json:"updateOnlyTheseInstances,omitempty" yaml:"updateOnlyTheseInstances,omitempty"`
	WaitForBatchCompletion     bool               `json:"waitForBatchCompletion" yaml:"waitForBatchCompletion"`
	BlockIfNoPulsesAfterMs     *int64             `json:"blockIfNoPulsesAfterMs,omitempty" yaml:"blockIfNoPulsesAfterMs,omitempty"`
	SlaAware                   *bool              `json:"slaAware,omitempty" yaml:"slaAware,omitempty"`
	UpdateStrategy             *JobUpdateStrategy `json:"updateStrategy,omitempty" yaml:"updateStrategy,omitempty"`
}

// Clone returns a deep copy
func (s *JobUpdateSettings) Clone() *JobUpdateSettings {
	if s == nil {
		return nil
	}
	out := *s
	if s.UpdateOnlyTheseInstances != nil {
		out.UpdateOnlyTheseInstances = append([]Range(nil), s.UpdateOnlyTheseInstances...)
	}
	if s.BlockIfNoPulsesAfterMs != nil {
		v := *s.BlockIfNoPulsesAfterMs
		out.BlockIfNoPulsesAfterMs = &v
	}
	if s.SlaAware != nil {
		v := *s.SlaAware
		out.SlaAware = &v
	}
	out.UpdateStrategy = s.UpdateStrategy.Clone()
	return &out
}

// InstanceTaskConfig binds a task config to a set of instances
type InstanceTaskConfig struct {
	Task      *TaskConfig `json:"task" yaml:"task"`
	Instances []Range     `json:"instances" yaml:"instances"`
}

// Clone returns a deep copy
func (c *InstanceTaskConfig) Clone() *InstanceTaskConfig {
	if c == nil {
		return nil
	}
	return &InstanceTaskConfig{
		Task:      c.Task.Clone(),
		Instances: append([]Range(nil), c.Instances...),
	}
}

// JobUpdateInstructions describe the before and after states of an update
type JobUpdateInstructions struct {
	InitialState []InstanceTaskConfig `json:"initialState" yaml:"initialState"`
	DesiredState *InstanceTaskConfig  `json:"desiredState,omitempty" yaml:"desiredState,omitempty"`
	Settings     *JobUpdateSettings   `json:"settings" yaml:"settings"`
}

// Clone returns a deep copy
func (i *JobUpdateInstructions) Clone() *JobUpdateInstructions {
	if i == nil {
		return nil
	}
	out := &JobUpdateInstructions{
		DesiredState: i.DesiredState.Clone(),
		Settings:     i.Settings.Clone(),
	}
	if i.InitialState != nil {
		out.InitialState = make([]InstanceTaskConfig, len(i.InitialState))
		for n := range i.InitialState {
			out.InitialState[n] = *i.InitialState[n].Clone()
		}
	}
	return out
}

// JobUpdateKey identifies an update of a job
type JobUpdateKey struct {
	Job JobKey `json:"job" yaml:"job"`
	ID  string `json:"id" yaml:"id"`
}

// JobUpdateSummary holds update metadata
type JobUpdateSummary struct {
	Key      JobUpdateKey      `json:"key" yaml:"key"`
	User     string            `json:"user,omitempty" yaml:"user,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// JobUpdate is a request to move a job from its initial to its desired state
type JobUpdate struct {
	Summary      JobUpdateSummary       `json:"summary" yaml:"summary"`
	Instructions *JobUpdateInstructions `json:"instructions" yaml:"instructions"`
}

// Clone returns a deep copy
func (u *JobUpdate) Clone() *JobUpdate {
	if u == nil {
		return nil
	}
	out := &JobUpdate{
		Summary:      u.Summary,
		Instructions: u.Instructions.Clone(),
	}
	if u.Summary.Metadata != nil {
		out.Summary.Metadata = make(map[string]string, len(u.Summary.Metadata))
		for k, v := range u.Summary.Metadata {
			out.Summary.Metadata[k] = v
		}
	}
	return out
}
