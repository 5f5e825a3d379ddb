// Package task implements the per-task state machine and the built-in task domains.
package task

import (
	"context"
	"os"
	"sync"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/zerr"
)

// Phase is the lifecycle position of a Task. Phases only move forward.
type Phase int

const (
	// PhaseReady means the task has not run yet.
	PhaseReady Phase = iota
	// PhaseActive means the task ran at least once and asked to be resumed.
	PhaseActive
	// PhaseDone means the task reached its final result.
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "READY"
	case PhaseActive:
		return "ACTIVE"
	case PhaseDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Body is the domain specific part of a task.
type Body interface {
	// Configure reports the hash inputs and static dependencies of the task.
	Configure(ctx context.Context, env *ConfigureEnv) (Configuration, error)
	// Run performs one step of the task.
	Run(ctx context.Context, env *RunEnv) Poll
}

// Task drives a Body through configuration, one or more runs, and completion.
// A Task belongs to exactly one build generation.
type Task struct {
	generation domain.BuildGeneration
	key        domain.TaskKey
	span       ports.Span
	body       Body

	mu         sync.Mutex
	phase      Phase
	configured bool
	config     domain.ConfigMap
	configHash string
	deps       []domain.TaskKey
	tempDir    string
	requested  []domain.TaskKey
	result     error
}

// New creates a task for key running body. span receives the task's logs and errors.
func New(generation domain.BuildGeneration, key domain.TaskKey, span ports.Span, body Body) *Task {
	return &Task{
		generation: generation,
		key:        key,
		span:       span,
		body:       body,
	}
}

// Key returns the key of the task.
func (t *Task) Key() domain.TaskKey { return t.key }

// Generation returns the build generation the task belongs to.
func (t *Task) Generation() domain.BuildGeneration { return t.generation }

// Span returns the span of the task.
func (t *Task) Span() ports.Span { return t.span }

// Phase returns the current phase.
func (t *Task) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// ConfigHash returns the hash computed by Configure. It is empty before.
func (t *Task) ConfigHash() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.configHash
}

// Result returns the final error of a done task.
func (t *Task) Result() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Configure resolves the task's configuration node and lets the body report its
// hash inputs and dependencies.
func (t *Task) Configure(
	ctx context.Context,
	settings *domain.TaskSettings,
	filesystem ports.Filesystem,
	toolchain ports.Toolchain,
) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.configured {
		return domain.Condition(domain.ErrBuildInvariant,
			zerr.With(zerr.New("task already configured"), "task", t.key.String()))
	}

	config := settings.ResolveTaskNode(t.key)
	cfg, err := t.body.Configure(ctx, &ConfigureEnv{
		Key:        t.key,
		Config:     config.Clone(),
		Filesystem: filesystem,
		Toolchain:  toolchain,
	})
	if err != nil {
		if domain.ConditionOf(err) == nil {
			err = domain.Condition(domain.ErrInvalidConfiguration, err)
		}
		return domain.Detail(err, "task", t.key.String())
	}

	t.config = config
	t.configHash = ConfigHash(t.key, config, cfg.HashInputs)
	t.deps = dedupKeys(cfg.Deps)
	t.configured = true
	return nil
}

// CheckDependencies returns the static dependencies reported by Configure.
func (t *Task) CheckDependencies() []domain.TaskKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.TaskKey(nil), t.deps...)
}

// RequestedDeps returns the dependencies asked for by the last pending run.
func (t *Task) RequestedDeps() []domain.TaskKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.TaskKey(nil), t.requested...)
}

// Run performs one step of the task. complete is false when the body asked to be
// resumed. Once the task is done, further calls fail without running the body.
func (t *Task) Run(
	ctx context.Context,
	hash string,
	depStates map[domain.TaskKey]domain.TaskState,
	state *BuildState,
) (complete bool, err error) {
	t.mu.Lock()
	switch {
	case t.phase == PhaseDone:
		t.mu.Unlock()
		return true, domain.Condition(domain.ErrBuildInvariant,
			domain.Detail(domain.ErrTaskAlreadyDone, "task", t.key.String()))
	case !t.configured:
		t.mu.Unlock()
		return false, domain.Condition(domain.ErrBuildInvariant,
			domain.Detail(domain.ErrTaskNotConfigured, "task", t.key.String()))
	case hash == "":
		t.mu.Unlock()
		return false, domain.Condition(domain.ErrBuildInvariant,
			domain.Detail(domain.ErrInvalidHash, "task", t.key.String()))
	}
	if t.phase == PhaseReady {
		t.phase = PhaseActive
		t.span.SetAttribute(domain.AttrTaskHash, hash)
		t.span.SetAttribute(domain.AttrGeneration, t.generation.String())
	}
	config := t.config.Clone()
	t.mu.Unlock()

	poll := t.runBody(ctx, &RunEnv{
		Key:        t.key,
		Generation: t.generation,
		Hash:       hash,
		Config:     config,
		DepStates:  depStates,
		Cache:      state.Cache,
		Filesystem: state.Filesystem,
		Toolchain:  state.Toolchain,
		Span:       t.span,
		task:       t,
	})
	if poll.IsPending() {
		t.mu.Lock()
		t.requested = dedupKeys(poll.Deps())
		t.mu.Unlock()
		return false, nil
	}

	result := poll.Err()
	if result != nil {
		if domain.ConditionOf(result) == nil {
			result = domain.Condition(domain.ErrTaskFailure, result)
		}
		result = domain.Detail(result, "task", t.key.String())
	}
	t.finish(hash, state, result)
	return true, result
}

// runBody runs one step of the body. A panicking body fails the task.
func (t *Task) runBody(ctx context.Context, env *RunEnv) (poll Poll) {
	defer zerr.Defer(func(err error) {
		poll = Done(domain.Condition(domain.ErrBuildInvariant, zerr.Wrap(err, "task body panicked")))
	})
	return t.body.Run(ctx, env)
}

// Cancel forces the task to done with a failure caused by cause. The result keeps
// the condition of cause and is a task failure otherwise.
// It does nothing if the task is already done.
func (t *Task) Cancel(hash string, state *BuildState, cause error) {
	t.mu.Lock()
	done := t.phase == PhaseDone
	t.mu.Unlock()
	if done {
		return
	}

	if cause == nil {
		cause = domain.ErrTaskCancelled
	}
	cond := domain.ConditionOf(cause)
	if cond == nil {
		cond = domain.ErrTaskFailure
	}
	err := domain.Condition(cond,
		zerr.With(zerr.Wrap(cause, domain.ErrTaskCancelled.Error()), "task", t.key.String()))
	t.finish(hash, state, err)
}

// Fail forces the task to done with err as its result.
// It does nothing if the task is already done.
func (t *Task) Fail(hash string, state *BuildState, err error) {
	if domain.ConditionOf(err) == nil {
		err = domain.Condition(domain.ErrTaskFailure, err)
	}
	t.finish(hash, state, err)
}

// Skip completes the task from an existing trace without running it.
// The diagnostics of the earlier run are kept.
func (t *Task) Skip(hash string) {
	t.mu.Lock()
	if t.phase == PhaseDone {
		t.mu.Unlock()
		return
	}
	t.phase = PhaseDone
	t.mu.Unlock()

	t.span.SetAttribute(domain.AttrTaskHash, hash)
	t.span.SetAttribute(domain.AttrGeneration, t.generation.String())
	t.span.SetAttribute(domain.AttrCached, true)
	t.span.End()
}

func (t *Task) finish(hash string, state *BuildState, result error) {
	t.mu.Lock()
	if t.phase == PhaseDone {
		t.mu.Unlock()
		return
	}
	t.phase = PhaseDone
	t.result = result
	tempDir := t.tempDir
	t.tempDir = ""
	t.mu.Unlock()

	if result != nil {
		t.span.RecordError(result)
	}
	t.span.End()

	if hash != "" && state != nil && state.Cache != nil {
		traceID := domain.NewTraceID(hash, t.key)
		if err := state.Cache.StoreDiagnostics(traceID, t.span.Diagnostics()); err != nil {
			state.warn("failed to store diagnostics of " + t.key.String() + ": " + err.Error())
		}
	}

	if tempDir != "" {
		if err := os.RemoveAll(tempDir); err != nil && state != nil {
			state.warn("failed to remove temp dir " + tempDir + ": " + err.Error())
		}
	}
}

func (t *Task) ensureTempDir() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase == PhaseDone {
		return "", domain.Condition(domain.ErrBuildInvariant,
			domain.Detail(domain.ErrTaskAlreadyDone, "task", t.key.String()))
	}
	if t.tempDir != "" {
		return t.tempDir, nil
	}
	dir, err := os.MkdirTemp("", "lyric-task-*")
	if err != nil {
		return "", zerr.Wrap(err, "failed to create temp dir")
	}
	t.tempDir = dir
	return dir, nil
}

func dedupKeys(keys []domain.TaskKey) []domain.TaskKey {
	seen := make(map[domain.TaskKey]struct{}, len(keys))
	out := make([]domain.TaskKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
