package models

import (
	"errors"
	"testing"
)

func TestActiveAndTerminalAreDisjoint(t *testing.T) {
	for _, s := range ActiveStatuses() {
		if IsTerminal(s) {
			t.Errorf("%s is both active and terminal", s)
		}
		if !IsActive(s) {
			t.Errorf("IsActive(%s) = false, want true", s)
		}
	}
	for _, s := range TerminalStatuses() {
		if IsActive(s) {
			t.Errorf("%s is both terminal and active", s)
		}
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}
	if got := len(ActiveStatuses()) + len(TerminalStatuses()); got != len(validTransitions) {
		t.Errorf("subsets cover %d statuses, want %d", got, len(validTransitions))
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    ScheduleStatus
		to      ScheduleStatus
		wantErr bool
	}{
		{"Pending to Assigned", StatusPending, StatusAssigned, false},
		{"Assigned to Running", StatusAssigned, StatusRunning, false},
		{"Running to Finished", StatusRunning, StatusFinished, false},
		{"Running to Lost", StatusRunning, StatusLost, false},
		{"Killing to Killed", StatusKilling, StatusKilled, false},

		{"Pending to Finished", StatusPending, StatusFinished, true},
		{"Finished to Running", StatusFinished, StatusRunning, true},
		{"Failed to Pending", StatusFailed, StatusPending, true},
		{"Killed to anything", StatusKilled, StatusKilling, true},
		{"Unknown source", ScheduleStatus("BOGUS"), StatusRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTransition(%v, %v) error = %v, wantErr %v",
					tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestParseScheduleStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    ScheduleStatus
		wantErr bool
	}{
		{"FINISHED", StatusFinished, false},
		{" running\n", StatusRunning, false},
		{"lost", StatusLost, false},
		{"done", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseScheduleStatus(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownStatus) {
				t.Errorf("ParseScheduleStatus(%q) error = %v, want ErrUnknownStatus", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseScheduleStatus(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestResourceTypeSetString(t *testing.T) {
	s := NewResourceTypeSet(ResourceRAMMb, ResourceCPUs, ResourceDisk)
	if got, want := s.String(), "[CPUS, DISK_MB, RAM_MB]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if !s.Equal(NewResourceTypeSet(ResourceDisk, ResourceRAMMb, ResourceCPUs)) {
		t.Error("expected sets to be equal")
	}
	if s.Equal(NewResourceTypeSet(ResourceCPUs, ResourceRAMMb)) {
		t.Error("expected subset to differ")
	}
}

func TestTaskConfigCloneIsDeep(t *testing.T) {
	orig := &TaskConfig{
		NumCpus:        1,
		RequestedPorts: []string{"http"},
		Resources:      []Resource{CPUs(1)},
		Metadata:       map[string]string{"k": "v"},
	}
	c := orig.Clone()
	*c.Resources[0].NumCpus = 4
	c.RequestedPorts[0] = "admin"
	c.Metadata["k"] = "changed"

	if *orig.Resources[0].NumCpus != 1 {
		t.Error("clone shares resource values")
	}
	if orig.RequestedPorts[0] != "http" {
		t.Error("clone shares requested ports")
	}
	if orig.Metadata["k"] != "v" {
		t.Error("clone shares metadata")
	}
}
