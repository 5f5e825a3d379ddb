package task

import "go.trai.ch/lyric/internal/core/domain"

// Poll is the outcome of one Body.Run call. A pending poll asks to be resumed,
// optionally after further dependencies have completed.
type Poll struct {
	done bool
	err  error
	deps []domain.TaskKey
}

// Pending returns a poll that resumes the task once deps have completed.
// With no deps the task is requeued immediately.
func Pending(deps ...domain.TaskKey) Poll {
	return Poll{deps: deps}
}

// Done returns a final poll. A nil err means the task succeeded.
func Done(err error) Poll {
	return Poll{done: true, err: err}
}

// IsPending reports whether the task wants to be resumed.
func (p Poll) IsPending() bool { return !p.done }

// Err returns the result of a final poll.
func (p Poll) Err() error { return p.err }

// Deps returns the dependencies requested by a pending poll.
func (p Poll) Deps() []domain.TaskKey { return p.deps }
