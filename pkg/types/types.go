package types

import (
	"strings"
	"time"
)

// Role identifies which storage daemon a task runs.
type Role string

const (
	RoleJournal Role = "journalnode"
	RoleName    Role = "namenode"
	RoleData    Role = "datanode"
)

// TaskState represents the lifecycle state of a task as reported by the
// cluster manager.
type TaskState string

const (
	TaskStateStaging  TaskState = "staging"
	TaskStateStarting TaskState = "starting"
	TaskStateRunning  TaskState = "running"
	TaskStateFailed   TaskState = "failed"
	TaskStateFinished TaskState = "finished"
	TaskStateKilled   TaskState = "killed"
	TaskStateLost     TaskState = "lost"
	TaskStateError    TaskState = "error"
)

// Terminal reports whether no further progress can occur from this state.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateFailed, TaskStateFinished, TaskStateKilled, TaskStateLost, TaskStateError:
		return true
	}
	return false
}

// Label is a key/value annotation on a task status, used for durable
// out-of-band signaling such as name-node initialization completion.
type Label struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Well-known label keys and values.
const (
	LabelNameNodeStatus = "namenode.status"
	NameNodeInitialized = "initialized"
)

// TaskStatus carries a state plus a label set. A status update that omits
// labels must never erase previously recorded labels; the state registry
// enforces this on every write.
type TaskStatus struct {
	TaskID    string    `json:"task_id"`
	State     TaskState `json:"state"`
	Message   string    `json:"message,omitempty"`
	Labels    []Label   `json:"labels,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// HasLabels reports whether the status carries any labels.
func (s *TaskStatus) HasLabels() bool {
	return s != nil && len(s.Labels) > 0
}

// LabelValue returns the value for a label key, if present.
func (s *TaskStatus) LabelValue(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, l := range s.Labels {
		if l.Key == key {
			return l.Value, true
		}
	}
	return "", false
}

// ExecutorInfo describes the executor a task is launched under.
type ExecutorInfo struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Command string   `json:"command"`
	URIs    []string `json:"uris,omitempty"`
}

// TaskRecord is the durable record of a launched task. Created on launch,
// mutated on every status event, deleted on terminal status.
type TaskRecord struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Role      Role          `json:"role"`
	Hostname  string        `json:"hostname"`
	AgentID   string        `json:"agent_id,omitempty"`
	Resources []Resource    `json:"resources,omitempty"`
	Executor  *ExecutorInfo `json:"executor,omitempty"`
	Status    *TaskStatus   `json:"status,omitempty"`
	CreatedAt time.Time     `json:"created_at,omitempty"`
}

// MatchesRole reports whether the record's role name contains the filter.
func (t *TaskRecord) MatchesRole(filter string) bool {
	return strings.Contains(string(t.Role), filter)
}

// VolumeRecord is the durable record of a persistent volume reserved for a
// host. The owning task id is a weak reference and may dangle; a volume
// whose task no longer exists is orphaned.
type VolumeRecord struct {
	PersistenceID string    `json:"persistence_id"`
	Disk          *DiskInfo `json:"disk,omitempty"`
	TaskID        string    `json:"task_id"`
	Hostname      string    `json:"hostname,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// DiskInfo describes the persistent-volume portion of a disk resource.
type DiskInfo struct {
	Persistence *Persistence `json:"persistence,omitempty"`
	MountPath   string       `json:"mount_path,omitempty"`
}

// Persistence is the stable handle of a persistent volume. It survives
// task restart and addresses the volume across offer cycles.
type Persistence struct {
	ID        string `json:"id"`
	Principal string `json:"principal,omitempty"`
}

// Resource names used by the cluster manager.
const (
	ResourceCPUs = "cpus"
	ResourceMem  = "mem"
	ResourceDisk = "disk"
)

// UnreservedRole is the role the cluster manager assigns to resources not
// reserved for any framework.
const UnreservedRole = "*"

// Resource is a scalar resource slice inside an offer, optionally reserved
// for a role/principal and optionally carrying a persistent-volume
// descriptor.
type Resource struct {
	Name      string    `json:"name"`
	Scalar    float64   `json:"scalar"`
	Role      string    `json:"role,omitempty"`
	Principal string    `json:"principal,omitempty"`
	Disk      *DiskInfo `json:"disk,omitempty"`
}

// Reserved reports whether the resource is reserved for a framework role.
func (r Resource) Reserved() bool {
	return r.Role != "" && r.Role != UnreservedRole
}

// ReservedFor reports whether the resource is reserved under the given
// role and principal.
func (r Resource) ReservedFor(role, principal string) bool {
	return r.Role == role && r.Principal == principal
}

// Offer is a resource bundle proposed by the cluster manager for one host.
type Offer struct {
	ID          string     `json:"id"`
	FrameworkID string     `json:"framework_id,omitempty"`
	AgentID     string     `json:"agent_id"`
	Hostname    string     `json:"hostname"`
	Resources   []Resource `json:"resources"`
}

// UnreservedScalar sums the unreserved portion of the named resource.
func (o *Offer) UnreservedScalar(name string) float64 {
	var total float64
	for _, r := range o.Resources {
		if r.Name == name && !r.Reserved() {
			total += r.Scalar
		}
	}
	return total
}

// ReservedScalar sums the portion of the named resource reserved under the
// given role and principal.
func (o *Offer) ReservedScalar(name, role, principal string) float64 {
	var total float64
	for _, r := range o.Resources {
		if r.Name == name && r.ReservedFor(role, principal) {
			total += r.Scalar
		}
	}
	return total
}

// PersistentDisks returns the disk resources carrying a persistent-volume
// descriptor.
func (o *Offer) PersistentDisks() []Resource {
	var disks []Resource
	for _, r := range o.Resources {
		if r.Name == ResourceDisk && r.Disk != nil && r.Disk.Persistence != nil {
			disks = append(disks, r)
		}
	}
	return disks
}
