package models

import (
	"fmt"
	"time"
)

// JobKey uniquely identifies a job
type JobKey struct {
	Role        string `json:"role" yaml:"role"`
	Environment string `json:"environment" yaml:"environment"`
	Name        string `json:"name" yaml:"name"`
}

func (k JobKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Role, k.Environment, k.Name)
}

// Constraint limits where a task may be placed
type Constraint struct {
	Name    string   `json:"name" yaml:"name"`
	Values  []string `json:"values,omitempty" yaml:"values,omitempty"`
	Negated bool     `json:"negated,omitempty" yaml:"negated,omitempty"`
	Limit   int      `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// ExecutorConfig is the opaque executor payload of a task
type ExecutorConfig struct {
	Name string `json:"name" yaml:"name"`
	Data string `json:"data,omitempty" yaml:"data,omitempty"`
}

// TaskConfig describes a task. NumCpus, RamMb, DiskMb and RequestedPorts are the
// legacy scalar encoding of Resources.
type TaskConfig struct {
	Job             JobKey            `json:"job" yaml:"job"`
	Owner           string            `json:"owner,omitempty" yaml:"owner,omitempty"`
	IsService       bool              `json:"isService,omitempty" yaml:"isService,omitempty"`
	Priority        int               `json:"priority,omitempty" yaml:"priority,omitempty"`
	MaxTaskFailures int               `json:"maxTaskFailures,omitempty" yaml:"maxTaskFailures,omitempty"`
	Production      bool              `json:"production,omitempty" yaml:"production,omitempty"`
	Tier            string            `json:"tier,omitempty" yaml:"tier,omitempty"`
	NumCpus         float64           `json:"numCpus,omitempty" yaml:"numCpus,omitempty"`
	RamMb           int64             `json:"ramMb,omitempty" yaml:"ramMb,omitempty"`
	DiskMb          int64             `json:"diskMb,omitempty" yaml:"diskMb,omitempty"`
	RequestedPorts  []string          `json:"requestedPorts,omitempty" yaml:"requestedPorts,omitempty"`
	Resources       []Resource        `json:"resources,omitempty" yaml:"resources,omitempty"`
	Constraints     []Constraint      `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	ContactEmail    string            `json:"contactEmail,omitempty" yaml:"contactEmail,omitempty"`
	ExecutorConfig  *ExecutorConfig   `json:"executorConfig,omitempty" yaml:"executorConfig,omitempty"`
}

// Clone returns a deep copy
func (c *TaskConfig) Clone() *TaskConfig {
	if c == nil {
		return nil
	}
	out := *c
	if c.RequestedPorts != nil {
		out.RequestedPorts = append([]string(nil), c.RequestedPorts...)
	}
	out.Resources = cloneResources(c.Resources)
	if c.Constraints != nil {
		out.Constraints = make([]Constraint, len(c.Constraints))
		for i, con := range c.Constraints {
			con.Values = append([]string(nil), con.Values...)
			out.Constraints[i] = con
		}
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	if c.ExecutorConfig != nil {
		ec := *c.ExecutorConfig
		out.ExecutorConfig = &ec
	}
	return &out
}

// AssignedTask is a task bound to a host
type AssignedTask struct {
	TaskID        string         `json:"taskId" yaml:"taskId"`
	SlaveID       string         `json:"slaveId,omitempty" yaml:"slaveId,omitempty"`
	SlaveHost     string         `json:"slaveHost,omitempty" yaml:"slaveHost,omitempty"`
	Task          *TaskConfig    `json:"task" yaml:"task"`
	AssignedPorts map[string]int `json:"assignedPorts,omitempty" yaml:"assignedPorts,omitempty"`
	InstanceID    int            `json:"instanceId" yaml:"instanceId"`
}

// Clone returns a deep copy
func (a *AssignedTask) Clone() *AssignedTask {
	if a == nil {
		return nil
	}
	out := *a
	out.Task = a.Task.Clone()
	if a.AssignedPorts != nil {
		out.AssignedPorts = make(map[string]int, len(a.AssignedPorts))
		for k, v := range a.AssignedPorts {
			out.AssignedPorts[k] = v
		}
	}
	return &out
}

// TaskEvent records a status change
type TaskEvent struct {
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Status    ScheduleStatus `json:"status" yaml:"status"`
	Message   string         `json:"message,omitempty" yaml:"message,omitempty"`
	Scheduler string         `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`
}

// ScheduledTask is the scheduler's record of a task
type ScheduledTask struct {
	AssignedTask *AssignedTask  `json:"assignedTask" yaml:"assignedTask"`
	Status       ScheduleStatus `json:"status" yaml:"status"`
	FailureCount int            `json:"failureCount,omitempty" yaml:"failureCount,omitempty"`
	TaskEvents   []TaskEvent    `json:"taskEvents,omitempty" yaml:"taskEvents,omitempty"`
	AncestorID   string         `json:"ancestorId,omitempty" yaml:"ancestorId,omitempty"`
}

// TaskID returns the ID of the assigned task, or "" if unassigned
func (t *ScheduledTask) TaskID() string {
	if t == nil || t.AssignedTask == nil {
		return ""
	}
	return t.AssignedTask.TaskID
}

// Clone returns a deep copy
func (t *ScheduledTask) Clone() *ScheduledTask {
	if t == nil {
		return nil
	}
	out := *t
	out.AssignedTask = t.AssignedTask.Clone()
	if t.TaskEvents != nil {
		out.TaskEvents = append([]TaskEvent(nil), t.TaskEvents...)
	}
	return &out
}

// JobConfiguration describes a job and the task template of its instances
type JobConfiguration struct {
	Key                 JobKey      `json:"key" yaml:"key"`
	Owner               string      `json:"owner,omitempty" yaml:"owner,omitempty"`
	CronSchedule        string      `json:"cronSchedule,omitempty" yaml:"cronSchedule,omitempty"`
	CronCollisionPolicy string      `json:"cronCollisionPolicy,omitempty" yaml:"cronCollisionPolicy,omitempty"`
	TaskConfig          *TaskConfig `json:"taskConfig" yaml:"taskConfig"`
	InstanceCount       int         `json:"instanceCount" yaml:"instanceCount"`
}

// Clone returns a deep copy
func (j *JobConfiguration) Clone() *JobConfiguration {
	if j == nil {
		return nil
	}
	out := *j
	out.TaskConfig = j.TaskConfig.Clone()
	return &out
}
