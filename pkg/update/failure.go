package update

import (
	"sort"

	"github.com/psantana5/stratum/pkg/logging"
)

// FailureThreshold tracks instance failures observed during an update
type FailureThreshold struct {
	maxPerInstanceFailures int
	maxTotalFailures       int
	failuresByInstance     map[int]int
	log                    *logging.Logger
}

// NewFailureThreshold creates a FailureThreshold
func NewFailureThreshold(maxPerInstanceFailures, maxTotalFailures int, log *logging.Logger) *FailureThreshold {
	if log == nil {
		log = logging.Nop()
	}
	return &FailureThreshold{
		maxPerInstanceFailures: maxPerInstanceFailures,
		maxTotalFailures:       maxTotalFailures,
		failuresByInstance:     make(map[int]int),
		log:                    log,
	}
}

// UpdateFailureCounts records one failure for each instance and returns the
// instances whose failure count now exceeds the per-instance limit.
func (f *FailureThreshold) UpdateFailureCounts(failed []int) []int {
	var exceeded []int
	for _, instance := range failed {
		f.failuresByInstance[instance]++
		if f.failuresByInstance[instance] > f.maxPerInstanceFailures {
			exceeded = append(exceeded, instance)
		}
	}
	return exceeded
}

// IsFailedUpdate reports whether more instances exceeded the per-instance
// limit than the update tolerates in total.
func (f *FailureThreshold) IsFailedUpdate(logErrors bool) bool {
	total := f.exceededInstanceCount()
	failed := total > f.maxTotalFailures

	if failed && logErrors {
		f.log.Error("Update failure threshold exceeded", logging.Fields{
			"failed_instances": total,
			"max_allowed":      f.maxTotalFailures,
		})
		instances := make([]int, 0, len(f.failuresByInstance))
		for instance := range f.failuresByInstance {
			instances = append(instances, instance)
		}
		sort.Ints(instances)
		for _, instance := range instances {
			count := f.failuresByInstance[instance]
			if count > f.maxPerInstanceFailures {
				f.log.Error("Instance failure limit exceeded", logging.Fields{
					"instance":    instance,
					"failures":    count,
					"max_allowed": f.maxPerInstanceFailures,
				})
			}
		}
	}
	return failed
}

func (f *FailureThreshold) exceededInstanceCount() int {
	n := 0
	for _, count := range f.failuresByInstance {
		if count > f.maxPerInstanceFailures {
			n++
		}
	}
	return n
}
