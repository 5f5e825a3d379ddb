// Package runner schedules build tasks over a fixed pool of workers.
//
// A single event loop goroutine owns the dependency graph. Workers run tasks
// and report back through the notification queue; they never touch the graph.
package runner

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/lyric/internal/engine/task"
	"golang.org/x/sync/errgroup"
)

// TaskMaker creates the task of a key. It is implemented by the task registry.
type TaskMaker interface {
	MakeTask(generation domain.BuildGeneration, key domain.TaskKey, span ports.Span) (*task.Task, error)
}

// Options configures a Runner.
type Options struct {
	// Parallelism is the number of workers. Values below one mean one.
	Parallelism int
	// WaitTimeout bounds how long an idle worker blocks on the ready queue.
	WaitTimeout time.Duration
}

// Stats are the totals of a run.
type Stats struct {
	// Created counts tasks that ran to success.
	Created int
	// Cached counts tasks satisfied from an existing trace.
	Cached int
	// Failed counts tasks that failed, including those cancelled by a failed dependency.
	Failed int
	// Cancelled counts tasks left unfinished by a shutdown.
	Cancelled int
}

type entry struct {
	task  *task.Task
	state domain.TaskState
	err   error
	// hash is the task hash, computed on first dispatch.
	hash string
	// extra holds the dependencies requested by pending runs.
	extra []domain.TaskKey
}

type edgeSet = map[domain.TaskKey]struct{}

// Runner builds tasks and their dependencies for one build generation.
type Runner struct {
	maker       TaskMaker
	build       *task.BuildState
	tracer      ports.Tracer
	logger      ports.Logger
	parallelism int
	waitTimeout time.Duration

	mu    sync.RWMutex
	tasks map[domain.TaskKey]*entry

	ready *readyQueue
	notes *notifyQueue

	// Owned by the event loop.
	blocked  map[domain.TaskKey]edgeSet
	deps     map[domain.TaskKey]edgeSet
	inflight int
	onNotify func(domain.TaskNotification)

	started  atomic.Bool
	stopping atomic.Bool
	created  atomic.Int64
	cached   atomic.Int64
	failed   atomic.Int64

	// cancelled counts the tasks failed by cancelRemaining, which sets draining.
	cancelled atomic.Int64
	draining  bool
}

// New creates a Runner. logger may be nil.
func New(maker TaskMaker, build *task.BuildState, tracer ports.Tracer, logger ports.Logger, opts Options) *Runner {
	parallelism := max(opts.Parallelism, 1)
	waitTimeout := opts.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = domain.DefaultWaitTimeoutMillis * time.Millisecond
	}
	if build.Logger == nil {
		build.Logger = logger
	}

	return &Runner{
		maker:       maker,
		build:       build,
		tracer:      tracer,
		logger:      logger,
		parallelism: parallelism,
		waitTimeout: waitTimeout,
		tasks:       make(map[domain.TaskKey]*entry),
		ready:       newReadyQueue(rand.Uint64()),
		notes:       newNotifyQueue(),
		blocked:     make(map[domain.TaskKey]edgeSet),
		deps:        make(map[domain.TaskKey]edgeSet),
	}
}

// Generation returns the build generation of the runner.
func (r *Runner) Generation() domain.BuildGeneration {
	return r.build.Generation
}

// EnqueueTask adds key as a build target. Enqueueing a known key does nothing.
// It must be called before Run or from the notification callback.
func (r *Runner) EnqueueTask(ctx context.Context, key domain.TaskKey) error {
	if r.stopping.Load() {
		return domain.Condition(domain.ErrBuildInvariant,
			domain.Detail(domain.ErrRunnerStopping, "task", key.String()))
	}
	r.enqueue(ctx, key, nil)
	return nil
}

// WaitForNextReady pops the next ready item, blocking for at most timeout.
// A negative timeout waits for a jittered duration between half and all of the
// configured wait timeout.
func (r *Runner) WaitForNextReady(timeout time.Duration) ReadyItem {
	if timeout < 0 {
		timeout = r.ready.jitter(r.waitTimeout)
	}
	return r.ready.pop(timeout)
}

// Run starts the workers and runs the event loop until every enqueued task is
// terminal, Shutdown is called or ctx is cancelled. onNotify is called on the
// event loop for every task reaching a terminal state, before its dependents
// are released.
func (r *Runner) Run(ctx context.Context, onNotify func(domain.TaskNotification)) error {
	if !r.started.CompareAndSwap(false, true) {
		return domain.Condition(domain.ErrBuildInvariant, domain.ErrRunnerStarted)
	}
	r.onNotify = onNotify

	var g errgroup.Group
	for range r.parallelism {
		g.Go(func() error {
			r.work(ctx)
			return nil
		})
	}

	r.loop(ctx)
	r.Shutdown()
	_ = g.Wait()

	r.cancelRemaining(ctx)
	return context.Cause(ctx)
}

// Shutdown stops the run. Queued tasks are not started and each worker exits
// after its current task.
func (r *Runner) Shutdown() {
	if !r.stopping.CompareAndSwap(false, true) {
		return
	}
	for range r.parallelism {
		r.ready.push(ReadyItem{Kind: ItemShutdown})
	}
	r.notes.signal()
}

// State returns the state of key. Unknown keys are INVALID.
func (r *Runner) State(key domain.TaskKey) domain.TaskState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.tasks[key]; ok {
		return e.state
	}
	return domain.TaskState{}
}

// Err returns the failure of a FAILED task.
func (r *Runner) Err(key domain.TaskKey) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.tasks[key]; ok {
		return e.err
	}
	return domain.Detail(domain.ErrTaskNotFound, "task", key.String())
}

// TaskCount returns the number of tasks created.
func (r *Runner) TaskCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Stats returns the totals of the run so far.
func (r *Runner) Stats() Stats {
	return Stats{
		Created:   int(r.created.Load()),
		Cached:    int(r.cached.Load()),
		Failed:    int(r.failed.Load()),
		Cancelled: int(r.cancelled.Load()),
	}
}

func (r *Runner) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			r.Shutdown()
		}
		for _, n := range r.notes.take() {
			r.handle(ctx, n)
		}
		if r.stopping.Load() {
			return
		}
		if r.inflight == 0 && r.notes.empty() {
			if len(r.blocked) == 0 {
				return
			}
			r.failCycle()
			continue
		}

		select {
		case <-r.notes.wake:
		case <-ctx.Done():
			r.Shutdown()
		}
	}
}

func (r *Runner) handle(ctx context.Context, n notice) {
	if n.dispatched {
		r.inflight--
	}
	if n.skipped {
		return
	}

	switch n.Kind {
	case domain.NotifyStateChanged:
		if r.onNotify != nil {
			r.onNotify(n.TaskNotification)
		}
		if n.State.Status == domain.StatusCompleted {
			r.restartDeps(n.Key)
		} else {
			r.markTaskFailed(n.Key)
		}
	case domain.NotifyTaskYielded:
		r.resume(ctx, n.Key, n.Deps)
	}
}

// enqueue creates key if it is new and registers the edge from dependent.
func (r *Runner) enqueue(ctx context.Context, key domain.TaskKey, dependent *domain.TaskKey) {
	r.mu.RLock()
	_, known := r.tasks[key]
	r.mu.RUnlock()

	if !known {
		r.admit(ctx, key, dependent)
	}
	if dependent != nil {
		r.addEdge(key, *dependent)
	}
}

// admit creates and configures a new task, then queues it or parks it behind its dependencies.
// dependent is the task that requested key, if any.
func (r *Runner) admit(ctx context.Context, key domain.TaskKey, dependent *domain.TaskKey) {
	_, span := r.tracer.Start(ctx, key.String(), ports.WithAttribute(domain.AttrTask, key.String()))
	t, err := r.maker.MakeTask(r.build.Generation, key, span)

	e := &entry{task: t}
	r.mu.Lock()
	r.tasks[key] = e
	r.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.End()
		r.setTerminal(key, e, domain.StatusFailed, "", err, false, false)
		return
	}

	if err := t.Configure(ctx, r.build.Settings, r.build.Filesystem, r.build.Toolchain); err != nil {
		t.Fail("", r.build, err)
		r.setTerminal(key, e, domain.StatusFailed, "", t.Result(), false, false)
		return
	}

	deps := t.CheckDependencies()
	if len(deps) == 0 {
		r.pushReady(key, dependent)
		return
	}
	r.setStatus(e, domain.StatusBlocked)
	r.parkDeps(ctx, key, deps)
	r.releaseIfReady(key, dependent)
}

// resume handles a task that ran and asked for more dependencies.
func (r *Runner) resume(ctx context.Context, key domain.TaskKey, deps []domain.TaskKey) {
	e := r.entry(key)
	if e == nil || r.State(key).Status.IsTerminal() {
		return
	}
	r.mu.Lock()
	e.extra = append(e.extra, deps...)
	e.state.Status = domain.StatusBlocked
	r.mu.Unlock()

	r.parkDeps(ctx, key, deps)
	r.releaseIfReady(key, nil)
}

// parkDeps enqueues each dependency of key and registers the edges.
func (r *Runner) parkDeps(ctx context.Context, key domain.TaskKey, deps []domain.TaskKey) {
	for _, dep := range deps {
		if r.State(key).Status.IsTerminal() {
			return
		}
		r.enqueue(ctx, dep, &key)
	}
}

func (r *Runner) addEdge(dep, dependent domain.TaskKey) {
	if r.State(dependent).Status.IsTerminal() {
		return
	}

	switch st := r.State(dep); st.Status {
	case domain.StatusCompleted:
		// Nothing to wait for.
	case domain.StatusFailed:
		r.cancelTask(dependent, dependencyFailed(dep, r.Err(dep)))
	default:
		if r.blocked[dependent] == nil {
			r.blocked[dependent] = make(edgeSet)
		}
		r.blocked[dependent][dep] = struct{}{}
		if r.deps[dep] == nil {
			r.deps[dep] = make(edgeSet)
		}
		r.deps[dep][dependent] = struct{}{}
	}
}

func (r *Runner) releaseIfReady(key domain.TaskKey, dependent *domain.TaskKey) {
	if r.State(key).Status.IsTerminal() || len(r.blocked[key]) > 0 {
		return
	}
	delete(r.blocked, key)
	r.pushReady(key, dependent)
}

// restartDeps drops the edges onto a completed task and queues every dependent
// with no outstanding dependencies left, in key order.
func (r *Runner) restartDeps(key domain.TaskKey) {
	dependents := sortedKeys(r.deps[key])
	delete(r.deps, key)

	for _, d := range dependents {
		set := r.blocked[d]
		delete(set, key)
		if len(set) > 0 {
			continue
		}
		delete(r.blocked, d)
		if !r.State(d).Status.IsTerminal() {
			r.pushReady(d, nil)
		}
	}
}

// markTaskFailed cancels every task parked directly or transitively behind key.
// Each dependent is cancelled once, even when it is reachable along several paths.
func (r *Runner) markTaskFailed(key domain.TaskKey) {
	visited := map[domain.TaskKey]struct{}{key: {}}
	stack := []domain.TaskKey{key}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dependents := sortedKeys(r.deps[k])
		delete(r.deps, k)
		for _, d := range dependents {
			if _, seen := visited[d]; seen {
				continue
			}
			visited[d] = struct{}{}
			if r.cancelTask(d, dependencyFailed(k, r.Err(k))) {
				stack = append(stack, d)
			}
		}
	}
}

// failCycle fails every parked task. It runs when nothing is queued or running
// while tasks are still parked, which only a dependency cycle can cause.
func (r *Runner) failCycle() {
	keys := sortedKeys(r.blocked)
	r.warn(fmt.Sprintf("dependency cycle detected, failing %d parked tasks", len(keys)))

	for _, k := range keys {
		err := domain.Condition(domain.ErrBuildInvariant, domain.Detail(domain.ErrDependencyCycle, "task", k.String()))
		if r.cancelTask(k, err) {
			r.markTaskFailed(k)
		}
	}
}

// cancelTask fails a parked task. It reports false if the task was already terminal.
func (r *Runner) cancelTask(key domain.TaskKey, cause error) bool {
	e := r.entry(key)
	if e == nil || r.State(key).Status.IsTerminal() {
		return false
	}
	r.unpark(key)

	hash := r.diagnosticsHash(e)
	err := cause
	if e.task != nil {
		e.task.Cancel(hash, r.build, cause)
		err = e.task.Result()
	}
	r.setTerminal(key, e, domain.StatusFailed, hash, err, false, false)
	return true
}

func (r *Runner) unpark(key domain.TaskKey) {
	for dep := range r.blocked[key] {
		delete(r.deps[dep], key)
		if len(r.deps[dep]) == 0 {
			delete(r.deps, dep)
		}
	}
	delete(r.blocked, key)
}

// cancelRemaining fails every task left behind by a shutdown. They are
// counted as cancelled rather than failed.
func (r *Runner) cancelRemaining(ctx context.Context) {
	r.notes.take()
	r.draining = true
	defer func() { r.draining = false }()

	cause := error(domain.ErrTaskCancelled)
	if err := context.Cause(ctx); err != nil {
		cause = err
	}

	r.mu.RLock()
	keys := sortedKeys(r.tasks)
	r.mu.RUnlock()
	for _, k := range keys {
		r.cancelTask(k, cause)
	}
	r.notes.take()
	clear(r.blocked)
	clear(r.deps)
}

// pushReady queues key for dispatch. Nothing is queued once the runner is stopping.
func (r *Runner) pushReady(key domain.TaskKey, dependent *domain.TaskKey) {
	if r.stopping.Load() {
		return
	}
	if e := r.entry(key); e != nil {
		r.setStatus(e, domain.StatusQueued)
	}
	item := ReadyItem{Kind: ItemTask, Key: key}
	if dependent != nil {
		item.Dependent = *dependent
		item.HasDependent = true
	}
	r.inflight++
	r.ready.push(item)
}

func (r *Runner) entry(key domain.TaskKey) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tasks[key]
}

func (r *Runner) setStatus(e *entry, status domain.TaskStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.state.Status = status
}

// setTerminal records the final state of a task and notifies the event loop.
func (r *Runner) setTerminal(
	key domain.TaskKey,
	e *entry,
	status domain.TaskStatus,
	hash string,
	err error,
	cached bool,
	dispatched bool,
) {
	state := domain.TaskState{Status: status, Hash: hash}
	r.mu.Lock()
	e.state = state
	e.err = err
	r.mu.Unlock()

	switch {
	case status != domain.StatusFailed:
	case r.draining:
		r.cancelled.Add(1)
	default:
		r.failed.Add(1)
	}
	r.notes.push(notice{
		TaskNotification: domain.TaskNotification{
			Kind:   domain.NotifyStateChanged,
			Key:    key,
			State:  state,
			Err:    err,
			Cached: cached,
		},
		dispatched: dispatched,
	})
}

// diagnosticsHash is the hash diagnostics of a cancelled task are stored under:
// the task hash when it was computed, the config hash otherwise.
func (r *Runner) diagnosticsHash(e *entry) string {
	r.mu.RLock()
	hash := e.hash
	r.mu.RUnlock()
	if hash == "" && e.task != nil {
		hash = e.task.ConfigHash()
	}
	return hash
}

func (r *Runner) warn(msg string) {
	if r.logger != nil {
		r.logger.Warn(msg)
	}
}

func dependencyFailed(dep domain.TaskKey, cause error) error {
	return errors.Join(
		domain.ErrTaskFailure,
		domain.Detail(domain.ErrDependencyFailed, "dependency", dep.String()),
		cause,
	)
}

func sortedKeys[V any](m map[domain.TaskKey]V) []domain.TaskKey {
	return slices.SortedFunc(maps.Keys(m), domain.CompareTaskKeys)
}
