package models

import (
	"errors"
	"fmt"
	"strings"
)

// ScheduleStatus is the scheduler-visible state of a task
type ScheduleStatus string

const (
	StatusInit       ScheduleStatus = "INIT"
	StatusThrottled  ScheduleStatus = "THROTTLED"
	StatusPending    ScheduleStatus = "PENDING"
	StatusAssigned   ScheduleStatus = "ASSIGNED"
	StatusStarting   ScheduleStatus = "STARTING"
	StatusRunning    ScheduleStatus = "RUNNING"
	StatusFinished   ScheduleStatus = "FINISHED"
	StatusPreempting ScheduleStatus = "PREEMPTING"
	StatusRestarting ScheduleStatus = "RESTARTING"
	StatusDraining   ScheduleStatus = "DRAINING"
	StatusFailed     ScheduleStatus = "FAILED"
	StatusKilled     ScheduleStatus = "KILLED"
	StatusKilling    ScheduleStatus = "KILLING"
	StatusLost       ScheduleStatus = "LOST"
)

// ErrUnknownStatus is returned when a status name is not recognized
var ErrUnknownStatus = errors.New("unknown schedule status")

var activeStates = map[ScheduleStatus]bool{
	StatusInit:       true,
	StatusThrottled:  true,
	StatusPending:    true,
	StatusAssigned:   true,
	StatusStarting:   true,
	StatusRunning:    true,
	StatusKilling:    true,
	StatusDraining:   true,
	StatusRestarting: true,
	StatusPreempting: true,
}

var terminalStates = map[ScheduleStatus]bool{
	StatusFinished: true,
	StatusFailed:   true,
	StatusKilled:   true,
	StatusLost:     true,
}

// validTransitions maps from-state to allowed to-states
var validTransitions = map[ScheduleStatus]map[ScheduleStatus]bool{
	StatusInit: {
		StatusPending:   true,
		StatusThrottled: true,
	},
	StatusThrottled: {
		StatusPending: true,
		StatusKilling: true,
	},
	StatusPending: {
		StatusAssigned: true,
		StatusKilling:  true,
	},
	StatusAssigned: {
		StatusStarting:   true,
		StatusRunning:    true,
		StatusFinished:   true,
		StatusFailed:     true,
		StatusRestarting: true,
		StatusDraining:   true,
		StatusKilled:     true,
		StatusKilling:    true,
		StatusLost:       true,
		StatusPreempting: true,
	},
	StatusStarting: {
		StatusRunning:    true,
		StatusFinished:   true,
		StatusFailed:     true,
		StatusRestarting: true,
		StatusDraining:   true,
		StatusKilling:    true,
		StatusKilled:     true,
		StatusLost:       true,
		StatusPreempting: true,
	},
	StatusRunning: {
		StatusFinished:   true,
		StatusFailed:     true,
		StatusRestarting: true,
		StatusDraining:   true,
		StatusKilling:    true,
		StatusKilled:     true,
		StatusLost:       true,
		StatusPreempting: true,
	},
	StatusPreempting: {
		StatusFinished: true,
		StatusFailed:   true,
		StatusKilling:  true,
		StatusKilled:   true,
		StatusLost:     true,
	},
	StatusRestarting: {
		StatusFinished: true,
		StatusFailed:   true,
		StatusKilling:  true,
		StatusKilled:   true,
		StatusLost:     true,
	},
	StatusDraining: {
		StatusFinished: true,
		StatusFailed:   true,
		StatusKilling:  true,
		StatusKilled:   true,
		StatusLost:     true,
	},
	StatusKilling: {
		StatusFinished: true,
		StatusFailed:   true,
		StatusKilled:   true,
		StatusLost:     true,
	},
	// Terminal states (no transitions allowed)
	StatusFinished: {},
	StatusFailed:   {},
	StatusKilled:   {},
	StatusLost:     {},
}

// IsActive returns true if the task may still be scheduled or running
func IsActive(s ScheduleStatus) bool {
	return activeStates[s]
}

// IsTerminal returns true if the task has stopped and will not resume
func IsTerminal(s ScheduleStatus) bool {
	return terminalStates[s]
}

// ActiveStatuses returns the active subset in declaration order
func ActiveStatuses() []ScheduleStatus {
	return []ScheduleStatus{
		StatusInit, StatusThrottled, StatusPending, StatusAssigned, StatusStarting,
		StatusRunning, StatusKilling, StatusDraining, StatusRestarting, StatusPreempting,
	}
}

// TerminalStatuses returns the terminal subset in declaration order
func TerminalStatuses() []ScheduleStatus {
	return []ScheduleStatus{StatusFinished, StatusFailed, StatusKilled, StatusLost}
}

// ParseScheduleStatus parses a status name, ignoring case and surrounding space
func ParseScheduleStatus(name string) (ScheduleStatus, error) {
	s := ScheduleStatus(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := validTransitions[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, name)
	}
	return s, nil
}

// ValidateTransition checks if a state transition is valid
func ValidateTransition(from, to ScheduleStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}
