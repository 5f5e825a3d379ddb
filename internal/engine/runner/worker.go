package runner

import (
	"context"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/engine/task"
)

func (r *Runner) work(ctx context.Context) {
	for {
		item := r.WaitForNextReady(-1)
		switch item.Kind {
		case ItemShutdown:
			return
		case ItemTimeout:
			continue
		case ItemTask:
			r.runTask(ctx, item)
		}
	}
}

// runTask drives one dispatch of item. Every dispatch ends with exactly one notice.
func (r *Runner) runTask(ctx context.Context, item ReadyItem) {
	key := item.Key
	e := r.entry(key)
	if e == nil || e.task == nil {
		r.skip(key)
		return
	}

	r.mu.Lock()
	status := e.state.Status
	if !status.IsTerminal() && status != domain.StatusRunning && !r.stopping.Load() {
		e.state.Status = domain.StatusRunning
	}
	hash := e.hash
	extra := append([]domain.TaskKey(nil), e.extra...)
	r.mu.Unlock()

	switch {
	case status.IsTerminal(), r.stopping.Load():
		r.skip(key)
		return
	case status == domain.StatusRunning:
		err := domain.Detail(domain.ErrDoubleSchedule, "task", key.String())
		if item.HasDependent {
			err = domain.Detail(err, "dependent", item.Dependent.String())
		}
		r.warn(err.Error())
		r.skip(key)
		return
	}

	static := e.task.CheckDependencies()
	depStates := make(map[domain.TaskKey]domain.TaskState, len(static)+len(extra))
	for _, dep := range append(static, extra...) {
		st := r.State(dep)
		switch st.Status {
		case domain.StatusCompleted:
			depStates[dep] = st
		case domain.StatusFailed:
			cause := dependencyFailed(dep, r.Err(dep))
			e.task.Cancel(r.diagnosticsHash(e), r.build, cause)
			r.setTerminal(key, e, domain.StatusFailed, r.diagnosticsHash(e), e.task.Result(), false, true)
			return
		default:
			err := domain.Condition(domain.ErrBuildInvariant,
				domain.Detail(domain.Detail(domain.ErrDependencyNotComplete, "dependency", dep.String()), "task", key.String()))
			e.task.Fail(r.diagnosticsHash(e), r.build, err)
			r.setTerminal(key, e, domain.StatusFailed, r.diagnosticsHash(e), e.task.Result(), false, true)
			return
		}
	}

	if hash == "" {
		staticStates := make(map[domain.TaskKey]domain.TaskState, len(static))
		for _, dep := range static {
			staticStates[dep] = depStates[dep]
		}
		hash = task.TaskHash(e.task.ConfigHash(), staticStates)
		r.mu.Lock()
		e.hash = hash
		r.mu.Unlock()
	}
	traceID := domain.NewTraceID(hash, key)

	if e.task.Phase() == task.PhaseReady {
		hit, err := r.build.Cache.ContainsTrace(traceID)
		if err != nil {
			r.warn("failed to look up trace of " + key.String() + ": " + err.Error())
		}
		if hit {
			e.task.Skip(hash)
			r.cached.Add(1)
			r.setTerminal(key, e, domain.StatusCompleted, hash, nil, true, true)
			return
		}
	}

	complete, err := e.task.Run(ctx, hash, depStates, r.build)
	switch {
	case err != nil:
		if !complete {
			e.task.Fail(hash, r.build, err)
		}
		r.setTerminal(key, e, domain.StatusFailed, hash, err, false, true)
	case !complete:
		r.notes.push(notice{
			TaskNotification: domain.TaskNotification{
				Kind:  domain.NotifyTaskYielded,
				Key:   key,
				State: domain.TaskState{Status: domain.StatusRunning, Hash: hash},
				Deps:  e.task.RequestedDeps(),
			},
			dispatched: true,
		})
	default:
		if err := r.build.Cache.StoreTrace(traceID, r.build.Generation); err != nil {
			r.warn("failed to store trace of " + key.String() + ": " + err.Error())
		}
		r.created.Add(1)
		r.setTerminal(key, e, domain.StatusCompleted, hash, nil, false, true)
	}
}

func (r *Runner) skip(key domain.TaskKey) {
	r.notes.push(notice{
		TaskNotification: domain.TaskNotification{Key: key},
		dispatched:       true,
		skipped:          true,
	})
}
