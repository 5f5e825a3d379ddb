package domain

import (
	"encoding/json"
	"strings"
)

// TaskID identifies a build target independent of per-enqueue parameters.
type TaskID struct {
	Domain string
	ID     string
}

// NewTaskID creates a new TaskID.
func NewTaskID(domain, id string) TaskID {
	return TaskID{Domain: domain, ID: id}
}

// ParseTaskID parses the textual form "domain:id".
func ParseTaskID(s string) (TaskID, error) {
	domain, id, ok := strings.Cut(s, ":")
	if !ok || domain == "" || id == "" {
		return TaskID{}, Detail(ErrInvalidTaskID, "task_id", s)
	}
	return TaskID{Domain: domain, ID: id}, nil
}

// String returns the textual form "domain:id".
func (t TaskID) String() string {
	return t.Domain + ":" + t.ID
}

// TaskKey identifies one scheduling unit: a TaskID plus the parameters it was enqueued with.
// Keys with equal domain and id but different parameters are distinct.
// TaskKey is comparable and may be used as a map key.
type TaskKey struct {
	domain string
	id     string
	params string
}

// NewTaskKey creates a TaskKey. Params are stored in canonical form.
func NewTaskKey(domain, id string, params ConfigMap) TaskKey {
	return TaskKey{domain: domain, id: id, params: params.Canonical()}
}

// KeyFor creates a TaskKey without parameters for the given TaskID.
func KeyFor(id TaskID) TaskKey {
	return TaskKey{domain: id.Domain, id: id.ID}
}

// Domain returns the task domain.
func (k TaskKey) Domain() string { return k.domain }

// ID returns the task id within its domain.
func (k TaskKey) ID() string { return k.id }

// TaskID returns the TaskID of the key, dropping its parameters.
func (k TaskKey) TaskID() TaskID { return TaskID{Domain: k.domain, ID: k.id} }

// HasParams reports whether the key carries parameters.
func (k TaskKey) HasParams() bool { return k.params != "" }

// CanonicalParams returns the canonical encoding of the parameters.
func (k TaskKey) CanonicalParams() string { return k.params }

// Params decodes the key parameters. The result is a fresh map owned by the caller.
func (k TaskKey) Params() ConfigMap {
	if k.params == "" {
		return ConfigMap{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(k.params), &m); err != nil {
		return ConfigMap{}
	}
	return ConfigMap(m)
}

// String returns "domain:id", followed by the parameters if there are any.
func (k TaskKey) String() string {
	if k.params == "" {
		return k.domain + ":" + k.id
	}
	return k.domain + ":" + k.id + k.params
}

// Less orders keys by domain, id and parameters.
func (k TaskKey) Less(other TaskKey) bool {
	if k.domain != other.domain {
		return k.domain < other.domain
	}
	if k.id != other.id {
		return k.id < other.id
	}
	return k.params < other.params
}

// CompareTaskKeys is a comparison function for slices.SortFunc.
func CompareTaskKeys(a, b TaskKey) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

// TaskStatus is the scheduler-level status of a task.
type TaskStatus int

const (
	// StatusInvalid indicates the task is unknown or not yet examined.
	StatusInvalid TaskStatus = iota
	// StatusQueued indicates the task is registered and waiting in the ready queue.
	StatusQueued
	// StatusBlocked indicates the task is parked behind outstanding dependencies.
	StatusBlocked
	// StatusRunning indicates the task is executing on a worker.
	StatusRunning
	// StatusCompleted indicates the task finished successfully.
	StatusCompleted
	// StatusFailed indicates the task failed or was cancelled.
	StatusFailed
)

var statusNames = [...]string{
	StatusInvalid:   "INVALID",
	StatusQueued:    "QUEUED",
	StatusBlocked:   "BLOCKED",
	StatusRunning:   "RUNNING",
	StatusCompleted: "COMPLETED",
	StatusFailed:    "FAILED",
}

func (s TaskStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// IsTerminal reports whether the status can no longer change.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TaskState is the status of a task together with its hash.
// Hash is empty until the task has been configured.
type TaskState struct {
	Status TaskStatus
	Hash   string
}
