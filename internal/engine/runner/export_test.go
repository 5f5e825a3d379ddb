package runner

import (
	"go.trai.ch/lyric/internal/core/domain"
)

// Graph returns sorted copies of the parking graph. It must not be called while Run is active.
func (r *Runner) Graph() (blocked, deps map[domain.TaskKey][]domain.TaskKey) {
	blocked = make(map[domain.TaskKey][]domain.TaskKey, len(r.blocked))
	for k, set := range r.blocked {
		blocked[k] = sortedKeys(set)
	}
	deps = make(map[domain.TaskKey][]domain.TaskKey, len(r.deps))
	for k, set := range r.deps {
		deps[k] = sortedKeys(set)
	}
	return blocked, deps
}

// Inflight returns the number of dispatched items not yet accounted for by the event loop.
func (r *Runner) Inflight() int {
	return r.inflight
}
