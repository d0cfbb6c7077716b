package models

import (
	"sort"
	"strings"
)

// ResourceType identifies a resource dimension
type ResourceType string

const (
	ResourceCPUs  ResourceType = "CPUS"
	ResourceRAMMb ResourceType = "RAM_MB"
	ResourceDisk  ResourceType = "DISK_MB"
	ResourcePorts ResourceType = "PORTS"
	ResourceGPUs  ResourceType = "GPUS"
)

// Resource is a single resource value. Exactly one field is set.
type Resource struct {
	NumCpus   *float64 `json:"numCpus,omitempty" yaml:"numCpus,omitempty"`
	RamMb     *int64   `json:"ramMb,omitempty" yaml:"ramMb,omitempty"`
	DiskMb    *int64   `json:"diskMb,omitempty" yaml:"diskMb,omitempty"`
	NamedPort *string  `json:"namedPort,omitempty" yaml:"namedPort,omitempty"`
	NumGpus   *int64   `json:"numGpus,omitempty" yaml:"numGpus,omitempty"`
}

// CPUs builds a CPU resource
func CPUs(v float64) Resource { return Resource{NumCpus: &v} }

// RAMMb builds a RAM resource
func RAMMb(v int64) Resource { return Resource{RamMb: &v} }

// DiskMb builds a disk resource
func DiskMb(v int64) Resource { return Resource{DiskMb: &v} }

// NamedPort builds a port resource
func NamedPort(name string) Resource { return Resource{NamedPort: &name} }

// GPUs builds a GPU resource
func GPUs(v int64) Resource { return Resource{NumGpus: &v} }

// ResourceTypeOf returns the type of the set field, or "" when none is set
func ResourceTypeOf(r Resource) ResourceType {
	switch {
	case r.NumCpus != nil:
		return ResourceCPUs
	case r.RamMb != nil:
		return ResourceRAMMb
	case r.DiskMb != nil:
		return ResourceDisk
	case r.NamedPort != nil:
		return ResourcePorts
	case r.NumGpus != nil:
		return ResourceGPUs
	default:
		return ""
	}
}

// Clone returns a deep copy
func (r Resource) Clone() Resource {
	var out Resource
	if r.NumCpus != nil {
		v := *r.NumCpus
		out.NumCpus = &v
	}
	if r.RamMb != nil {
		v := *r.RamMb
		out.RamMb = &v
	}
	if r.DiskMb != nil {
		v := *r.DiskMb
		out.DiskMb = &v
	}
	if r.NamedPort != nil {
		v := *r.NamedPort
		out.NamedPort = &v
	}
	if r.NumGpus != nil {
		v := *r.NumGpus
		out.NumGpus = &v
	}
	return out
}

func cloneResources(in []Resource) []Resource {
	if in == nil {
		return nil
	}
	out := make([]Resource, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// ResourceTypeSet is an unordered set of resource types
type ResourceTypeSet map[ResourceType]struct{}

// NewResourceTypeSet builds a set from the given types
func NewResourceTypeSet(types ...ResourceType) ResourceTypeSet {
	s := make(ResourceTypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether t is a member
func (s ResourceTypeSet) Has(t ResourceType) bool {
	_, ok := s[t]
	return ok
}

// Equal reports whether both sets hold the same members
func (s ResourceTypeSet) Equal(other ResourceTypeSet) bool {
	if len(s) != len(other) {
		return false
	}
	for t := range s {
		if !other.Has(t) {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order
func (s ResourceTypeSet) Sorted() []ResourceType {
	out := make([]ResourceType, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s ResourceTypeSet) String() string {
	names := make([]string, 0, len(s))
	for _, t := range s.Sorted() {
		names = append(names, string(t))
	}
	return "[" + strings.Join(names, ", ") + "]"
}

// ParseResourceType parses a resource type name, ignoring case
func ParseResourceType(name string) (ResourceType, bool) {
	t := ResourceType(strings.ToUpper(strings.TrimSpace(name)))
	switch t {
	case ResourceCPUs, ResourceRAMMb, ResourceDisk, ResourcePorts, ResourceGPUs:
		return t, true
	default:
		return "", false
	}
}

// ResourceAggregate is a bag of resources used for quota
type ResourceAggregate struct {
	Resources []Resource `json:"resources" yaml:"resources"`
}

// Types returns the set of resource types present
func (a *ResourceAggregate) Types() ResourceTypeSet {
	s := make(ResourceTypeSet, len(a.Resources))
	for _, r := range a.Resources {
		s[ResourceTypeOf(r)] = struct{}{}
	}
	return s
}

// Clone returns a deep copy
func (a *ResourceAggregate) Clone() *ResourceAggregate {
	if a == nil {
		return nil
	}
	return &ResourceAggregate{Resources: cloneResources(a.Resources)}
}
