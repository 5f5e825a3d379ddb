package domain

// NotificationKind distinguishes the notifications flowing from workers to the event loop.
type NotificationKind int

const (
	// NotifyStateChanged reports that a task reached a terminal state.
	NotifyStateChanged NotificationKind = iota
	// NotifyTaskYielded reports that a task returned pending and must be resumed,
	// possibly after further dependencies complete.
	NotifyTaskYielded
)

// TaskNotification is delivered to the event loop, and for terminal transitions
// to the caller's notification callback.
type TaskNotification struct {
	Kind  NotificationKind
	Key   TaskKey
	State TaskState
	// Err is the failure of a FAILED task.
	Err error
	// Cached is true when the task completed from an existing trace without running.
	Cached bool
	// Deps are the additional dependencies requested by a yielded task.
	Deps []TaskKey
}
