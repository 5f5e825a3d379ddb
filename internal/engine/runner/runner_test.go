package runner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lyric/internal/adapters/cas"
	"go.trai.ch/lyric/internal/adapters/fs"
	"go.trai.ch/lyric/internal/adapters/telemetry"
	"go.trai.ch/lyric/internal/adapters/toolchain"
	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/lyric/internal/engine/registry"
	"go.trai.ch/lyric/internal/engine/runner"
	"go.trai.ch/lyric/internal/engine/task"
)

const fakeDomain = "fake"

// script describes the behaviour of one fake task, keyed by task id.
type script struct {
	deps  []string
	yield []string
	fail  bool
}

type counters struct {
	mu      sync.Mutex
	created map[string]int
	runs    map[string]int
}

func (c *counters) inc(m map[string]int, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m[id]++
}

func (c *counters) get(m map[string]int, id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return m[id]
}

type fakeBody struct {
	script script
	c      *counters
	runs   int
}

func (b *fakeBody) Configure(_ context.Context, _ *task.ConfigureEnv) (task.Configuration, error) {
	return task.Configuration{Deps: keys(b.script.deps...)}, nil
}

func (b *fakeBody) Run(_ context.Context, env *task.RunEnv) task.Poll {
	b.runs++
	b.c.inc(b.c.runs, env.Key.ID())
	if b.runs == 1 && len(b.script.yield) > 0 {
		return task.Pending(keys(b.script.yield...)...)
	}
	if b.script.fail {
		return task.Done(errors.New("boom"))
	}
	if _, err := env.StoreArtifact("/"+env.Key.ID(), []byte(env.Key.String()), nil); err != nil {
		return task.Done(err)
	}
	return task.Done(nil)
}

// keys parses "domain:id" entries. Entries without a domain belong to the fake domain.
func keys(ids ...string) []domain.TaskKey {
	out := make([]domain.TaskKey, 0, len(ids))
	for _, id := range ids {
		if d, rest, ok := strings.Cut(id, ":"); ok {
			out = append(out, domain.NewTaskKey(d, rest, nil))
			continue
		}
		out = append(out, domain.NewTaskKey(fakeDomain, id, nil))
	}
	return out
}

func key(id string) domain.TaskKey { return keys(id)[0] }

type harness struct {
	c     *counters
	state *task.BuildState
	reg   *registry.Registry
}

func newHarness(t *testing.T, scripts map[string]script) *harness {
	t.Helper()

	h := &harness{
		c: &counters{created: map[string]int{}, runs: map[string]int{}},
		state: &task.BuildState{
			Generation: domain.NewBuildGeneration(),
			Cache:      cas.NewMemoryCache(),
			Settings:   domain.NewTaskSettings(),
		},
		reg: registry.New(),
	}
	require.NoError(t, h.reg.RegisterTaskDomain(fakeDomain, registry.FromBody(func(k domain.TaskKey) (task.Body, error) {
		h.c.inc(h.c.created, k.ID())
		return &fakeBody{script: scripts[k.ID()], c: h.c}, nil
	})))
	h.reg.Seal()
	return h
}

func (h *harness) runner(parallelism int) *runner.Runner {
	return runner.New(h.reg, h.state, telemetry.NewNoOpTracer(), nil, runner.Options{
		Parallelism: parallelism,
		WaitTimeout: 100 * time.Millisecond,
	})
}

// notes collects terminal notifications.
type notes struct {
	order []domain.TaskKey
	count map[domain.TaskKey]int
}

func (n *notes) callback(note domain.TaskNotification) {
	if n.count == nil {
		n.count = map[domain.TaskKey]int{}
	}
	n.order = append(n.order, note.Key)
	n.count[note.Key]++
}

func (n *notes) index(k domain.TaskKey) int {
	return slices.Index(n.order, k)
}

func TestRunner_Dedup(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]script{
			"a": {deps: []string{"b", "c"}},
			"b": {deps: []string{"d"}},
			"c": {deps: []string{"d"}},
		})
		r := h.runner(4)
		ctx := context.Background()

		for range 3 {
			require.NoError(t, r.EnqueueTask(ctx, key("a")))
		}
		require.NoError(t, r.EnqueueTask(ctx, key("d")))

		var n notes
		require.NoError(t, r.Run(ctx, n.callback))

		assert.Equal(t, 4, r.TaskCount())
		for _, id := range []string{"a", "b", "c", "d"} {
			assert.Equal(t, 1, h.c.get(h.c.created, id), "created %s", id)
			assert.Equal(t, 1, h.c.get(h.c.runs, id), "runs %s", id)
			assert.Equal(t, domain.StatusCompleted, r.State(key(id)).Status, id)
			assert.Equal(t, 1, n.count[key(id)], "notified %s", id)
		}
		assert.Equal(t, runner.Stats{Created: 4}, r.Stats())
		assert.Zero(t, r.Inflight())
	})
}

func TestRunner_ParkingInvariant(t *testing.T) {
	h := newHarness(t, map[string]script{
		"a": {deps: []string{"b", "c"}},
		"b": {deps: []string{"d"}},
		"x": {deps: []string{"d"}},
	})
	r := h.runner(1)
	ctx := context.Background()
	require.NoError(t, r.EnqueueTask(ctx, key("a")))
	require.NoError(t, r.EnqueueTask(ctx, key("x")))

	blocked, deps := r.Graph()
	assert.Equal(t, map[domain.TaskKey][]domain.TaskKey{
		key("a"): {key("b"), key("c")},
		key("b"): {key("d")},
		key("x"): {key("d")},
	}, blocked)

	for k, ds := range blocked {
		for _, d := range ds {
			assert.Contains(t, deps[d], k, "%s parked on %s", k, d)
		}
	}
	for d, ks := range deps {
		for _, k := range ks {
			assert.Contains(t, blocked[k], d, "%s is a dependent of %s", k, d)
		}
	}

	assert.Equal(t, domain.StatusBlocked, r.State(key("a")).Status)
	assert.Equal(t, domain.StatusBlocked, r.State(key("b")).Status)
	assert.Equal(t, domain.StatusQueued, r.State(key("c")).Status)
	assert.Equal(t, domain.StatusQueued, r.State(key("d")).Status)
	assert.Empty(t, r.State(key("d")).Hash)
	assert.Equal(t, domain.StatusInvalid, r.State(key("unknown")).Status)
}

func TestRunner_UnblocksInDependencyOrder(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		scripts := map[string]script{
			"app":  {deps: []string{"lib1", "lib2"}},
			"lib1": {deps: []string{"core"}},
			"lib2": {deps: []string{"core", "util"}},
			"util": {deps: []string{"core"}},
		}
		h := newHarness(t, scripts)
		r := h.runner(3)
		ctx := context.Background()
		require.NoError(t, r.EnqueueTask(ctx, key("app")))

		var n notes
		require.NoError(t, r.Run(ctx, n.callback))

		require.Len(t, n.order, 5)
		for id, s := range scripts {
			for _, dep := range s.deps {
				assert.Less(t, n.index(key(dep)), n.index(key(id)), "%s completes before %s", dep, id)
			}
		}
		blocked, deps := r.Graph()
		assert.Empty(t, blocked)
		assert.Empty(t, deps)
	})
}

func TestRunner_FailurePropagation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]script{
			"top":   {deps: []string{"left", "right", "other"}},
			"left":  {deps: []string{"base"}},
			"right": {deps: []string{"base"}},
			"base":  {deps: []string{"bad"}},
			"bad":   {fail: true},
		})
		r := h.runner(2)
		ctx := context.Background()
		require.NoError(t, r.EnqueueTask(ctx, key("top")))

		var n notes
		require.NoError(t, r.Run(ctx, n.callback))

		assert.Equal(t, domain.StatusFailed, r.State(key("bad")).Status)
		require.ErrorIs(t, r.Err(key("bad")), domain.ErrTaskFailure)

		for _, id := range []string{"base", "left", "right", "top"} {
			assert.Equal(t, domain.StatusFailed, r.State(key(id)).Status, id)
			err := r.Err(key(id))
			require.ErrorIs(t, err, domain.ErrTaskFailure, id)
			require.ErrorIs(t, err, domain.ErrDependencyFailed, id)
			assert.Equal(t, domain.ErrTaskFailure, domain.ConditionOf(err), id)
			assert.Zero(t, h.c.get(h.c.runs, id), "%s never runs", id)
			assert.Equal(t, 1, n.count[key(id)], "%s is notified once", id)
		}

		assert.Equal(t, domain.StatusCompleted, r.State(key("other")).Status, "sibling subtree completes")
		assert.Equal(t, 5, r.Stats().Failed)
		assert.Equal(t, 1, r.Stats().Created)
	})
}

func TestRunner_DependencyOnFailedTask(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]script{
			"late": {deps: []string{"bad"}},
			"bad":  {fail: true},
		})
		r := h.runner(1)
		ctx := context.Background()
		require.NoError(t, r.EnqueueTask(ctx, key("bad")))

		enqueued := false
		require.NoError(t, r.Run(ctx, func(note domain.TaskNotification) {
			if note.Key == key("bad") && !enqueued {
				enqueued = true
				require.NoError(t, r.EnqueueTask(ctx, key("late")))
			}
		}))

		assert.Equal(t, domain.StatusFailed, r.State(key("late")).Status)
		require.ErrorIs(t, r.Err(key("late")), domain.ErrDependencyFailed)
		assert.Zero(t, h.c.get(h.c.runs, "late"))
	})
}

func TestRunner_UnknownDomainFailsDependent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]script{
			"a": {deps: []string{"nope:x"}},
		})
		r := h.runner(1)
		ctx := context.Background()
		require.NoError(t, r.EnqueueTask(ctx, key("a")))
		require.NoError(t, r.Run(ctx, nil))

		require.ErrorIs(t, r.Err(key("nope:x")), domain.ErrBuildInvariant)
		require.ErrorIs(t, r.Err(key("nope:x")), domain.ErrUnknownDomain)
		require.ErrorIs(t, r.Err(key("a")), domain.ErrTaskFailure)
		require.ErrorIs(t, r.Err(key("a")), domain.ErrDependencyFailed)
	})
}

func TestRunner_YieldedTaskResumesAfterRequestedDeps(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]script{
			"y": {yield: []string{"z"}},
		})
		r := h.runner(2)
		ctx := context.Background()
		require.NoError(t, r.EnqueueTask(ctx, key("y")))

		var n notes
		require.NoError(t, r.Run(ctx, n.callback))

		assert.Equal(t, domain.StatusCompleted, r.State(key("y")).Status)
		assert.Equal(t, domain.StatusCompleted, r.State(key("z")).Status)
		assert.Equal(t, 2, h.c.get(h.c.runs, "y"))
		assert.Less(t, n.index(key("z")), n.index(key("y")))
	})
}

func TestRunner_CycleFailsParkedTasks(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]script{
			"a":    {deps: []string{"b"}},
			"b":    {deps: []string{"a"}},
			"self": {deps: []string{"self"}},
			"ok":   {},
		})
		r := h.runner(2)
		ctx := context.Background()
		for _, id := range []string{"a", "self", "ok"} {
			require.NoError(t, r.EnqueueTask(ctx, key(id)))
		}

		var n notes
		require.NoError(t, r.Run(ctx, n.callback))

		for _, id := range []string{"a", "b", "self"} {
			assert.Equal(t, domain.StatusFailed, r.State(key(id)).Status, id)
			require.ErrorIs(t, r.Err(key(id)), domain.ErrBuildInvariant, id)
			require.ErrorIs(t, r.Err(key(id)), domain.ErrDependencyCycle, id)
			assert.Equal(t, 1, n.count[key(id)], id)
		}
		assert.Equal(t, domain.StatusCompleted, r.State(key("ok")).Status)
	})
}

func TestRunner_RunTwice(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		r := newHarness(t, nil).runner(1)
		require.NoError(t, r.Run(context.Background(), nil))

		err := r.Run(context.Background(), nil)
		require.ErrorIs(t, err, domain.ErrBuildInvariant)
		require.ErrorIs(t, err, domain.ErrRunnerStarted)
		require.ErrorIs(t, r.EnqueueTask(context.Background(), key("a")), domain.ErrRunnerStopping)
	})
}

func TestRunner_CancelledContext(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]script{
			"a": {deps: []string{"b", "c"}},
		})
		r := h.runner(1)
		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, r.EnqueueTask(ctx, key("a")))
		cancel()

		err := r.Run(ctx, nil)
		require.ErrorIs(t, err, context.Canceled)
		for _, id := range []string{"a", "b", "c"} {
			assert.True(t, r.State(key(id)).Status.IsTerminal(), id)
		}
		assert.Equal(t, domain.StatusFailed, r.State(key("a")).Status)
	})
}

func TestRunner_ShutdownFromCallback(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]script{
			"target": {},
			"later":  {deps: []string{"target"}},
		})
		r := h.runner(1)
		ctx := context.Background()
		require.NoError(t, r.EnqueueTask(ctx, key("target")))
		require.NoError(t, r.EnqueueTask(ctx, key("later")))

		require.NoError(t, r.Run(ctx, func(note domain.TaskNotification) {
			if note.Key == key("target") {
				r.Shutdown()
			}
		}))

		assert.Equal(t, domain.StatusCompleted, r.State(key("target")).Status)
		assert.Equal(t, domain.StatusFailed, r.State(key("later")).Status)
		require.ErrorIs(t, r.Err(key("later")), domain.ErrTaskCancelled)
		assert.Zero(t, h.c.get(h.c.runs, "later"))
		assert.Equal(t, runner.Stats{Created: 1, Cancelled: 1}, r.Stats(), "shutdown cancellations are not failures")
	})
}

func TestRunner_WaitForNextReady(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		r := newHarness(t, nil).runner(1)

		start := time.Now()
		item := r.WaitForNextReady(30 * time.Millisecond)
		assert.Equal(t, runner.ItemTimeout, item.Kind)
		assert.Equal(t, 30*time.Millisecond, time.Since(start))

		start = time.Now()
		item = r.WaitForNextReady(-1)
		assert.Equal(t, runner.ItemTimeout, item.Kind)
		waited := time.Since(start)
		assert.GreaterOrEqual(t, waited, 50*time.Millisecond)
		assert.LessOrEqual(t, waited, 100*time.Millisecond)

		require.NoError(t, r.EnqueueTask(context.Background(), key("a")))
		item = r.WaitForNextReady(time.Second)
		assert.Equal(t, runner.ItemTask, item.Kind)
		assert.Equal(t, key("a"), item.Key)
	})
}

func TestRunner_ReadyItemCarriesDependent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]script{
			"a": {deps: []string{"b"}},
		})
		r := h.runner(1)
		ctx := context.Background()
		require.NoError(t, r.EnqueueTask(ctx, key("a")))
		require.NoError(t, r.EnqueueTask(ctx, key("solo")))

		item := r.WaitForNextReady(time.Second)
		assert.Equal(t, runner.ItemTask, item.Kind)
		assert.Equal(t, key("b"), item.Key)
		assert.True(t, item.HasDependent)
		assert.Equal(t, key("a"), item.Dependent)

		item = r.WaitForNextReady(time.Second)
		assert.Equal(t, key("solo"), item.Key)
		assert.False(t, item.HasDependent)
		assert.Equal(t, domain.TaskKey{}, item.Dependent)
	})
}

func TestRunner_ParamsGiveDistinctEntries(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]script{"x": {}})
		r := h.runner(2)
		ctx := context.Background()

		one := domain.NewTaskKey(fakeDomain, "x", domain.ConfigMap{"p": "1"})
		two := domain.NewTaskKey(fakeDomain, "x", domain.ConfigMap{"p": "2"})
		require.NoError(t, r.EnqueueTask(ctx, one))
		require.NoError(t, r.EnqueueTask(ctx, two))
		require.NoError(t, r.Run(ctx, nil))

		assert.Equal(t, 2, r.TaskCount())
		h1, h2 := r.State(one).Hash, r.State(two).Hash
		require.NotEmpty(t, h1)
		assert.NotEqual(t, h1, h2)

		for _, k := range []domain.TaskKey{one, two} {
			hash := r.State(k).Hash
			ok, err := h.state.Cache.ContainsTrace(domain.NewTraceID(hash, k))
			require.NoError(t, err)
			assert.True(t, ok)
			ids, err := h.state.Cache.FindArtifacts(h.state.Generation, hash, ports.FindOptions{}, nil)
			require.NoError(t, err)
			assert.Len(t, ids, 1)
		}
	})
}

func TestRunner_CompileModuleScenario(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo.ly"), []byte("def foo\nreturn 1\n"), domain.FilePerm))
	filesystem, err := fs.NewFilesystem(root)
	require.NoError(t, err)
	cache := cas.NewMemoryCache()
	target := domain.NewTaskKey(task.DomainCompileModule, "/foo", nil)

	build := func() *runner.Runner {
		reg := registry.New()
		reg.Seal()
		state := &task.BuildState{
			Generation: domain.NewBuildGeneration(),
			Cache:      cache,
			Filesystem: filesystem,
			Toolchain:  toolchain.New(),
			Settings:   domain.NewTaskSettings(),
		}
		r := runner.New(reg, state, telemetry.NewNoOpTracer(), nil, runner.Options{Parallelism: 2})
		require.NoError(t, r.EnqueueTask(t.Context(), target))
		require.NoError(t, r.Run(t.Context(), nil))
		return r
	}

	first := build()
	st := first.State(target)
	require.Equal(t, domain.StatusCompleted, st.Status, "%v", first.Err(target))
	ok, err := cache.ContainsTrace(domain.NewTraceID(st.Hash, target))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, runner.Stats{Created: 3}, first.Stats())

	second := build()
	assert.Equal(t, st.Hash, second.State(target).Hash)
	assert.Equal(t, runner.Stats{Cached: 3}, second.Stats())

	diags, err := cache.LoadDiagnostics(domain.NewTraceID(st.Hash, target))
	require.NoError(t, err)
	assert.False(t, diags.HasErrors())
}

func TestRunner_OrchestrateScenario(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]script{
			"k1": {fail: true},
			"k2": {},
		})
		r := h.runner(2)
		ctx := context.Background()

		root := domain.NewTaskKey(task.DomainOrchestrate, "root", domain.ConfigMap{"targets": "fake:k1,fake:k2"})
		require.NoError(t, r.EnqueueTask(ctx, root))
		require.NoError(t, r.Run(ctx, nil))

		assert.Equal(t, domain.StatusFailed, r.State(root).Status)
		require.ErrorIs(t, r.Err(root), domain.ErrTaskFailure)
		assert.Equal(t, domain.StatusFailed, r.State(key("k1")).Status)
		assert.Equal(t, domain.StatusCompleted, r.State(key("k2")).Status)
	})
}

func TestRunner_AnalyzeModuleScenario(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.ly"), []byte("import \"/lib/math\"\ndef main\ncall add\n"), domain.FilePerm))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib", "math.ly"), []byte("def add\nreturn 1\n"), domain.FilePerm))
	filesystem, err := fs.NewFilesystem(root)
	require.NoError(t, err)

	reg := registry.New()
	reg.Seal()
	state := &task.BuildState{
		Generation: domain.NewBuildGeneration(),
		Cache:      cas.NewMemoryCache(),
		Filesystem: filesystem,
		Toolchain:  toolchain.New(),
		Settings:   domain.NewTaskSettings(),
	}
	r := runner.New(reg, state, telemetry.NewNoOpTracer(), nil, runner.Options{Parallelism: 2})

	target := domain.NewTaskKey(task.DomainAnalyzeModule, "/main", nil)
	importSymbols := domain.NewTaskKey(task.DomainSymbolizeModule, "/lib/math", nil)
	require.NoError(t, r.EnqueueTask(t.Context(), target))

	var n notes
	require.NoError(t, r.Run(t.Context(), n.callback))

	st := r.State(target)
	require.Equal(t, domain.StatusCompleted, st.Status, "%v", r.Err(target))
	assert.Equal(t, domain.StatusCompleted, r.State(importSymbols).Status)
	assert.Less(t, n.index(importSymbols), n.index(target), "import symbols complete before the outline")
	assert.Equal(t, runner.Stats{Created: 5}, r.Stats())

	ids, err := state.Cache.FindArtifacts(state.Generation, st.Hash, ports.FindOptions{},
		domain.Metadata{domain.MetaContentType: domain.ContentTypeOutline})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "/main", ids[0].Location)
}
