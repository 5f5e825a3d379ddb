package app_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lyric/internal/adapters/cas"
	"go.trai.ch/lyric/internal/adapters/config"
	"go.trai.ch/lyric/internal/adapters/toolchain"
	"go.trai.ch/lyric/internal/app"
	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/lyric/internal/core/ports/mocks"
	"go.trai.ch/lyric/internal/engine/registry"
	"go.uber.org/mock/gomock"
)

var sources = map[string]string{
	"src/app/main.ly": "import \"/lib/math\"\ndef main\nreturn add\n",
	"src/lib/math.ly": "def add\nreturn 1\n",
	"src/bad.ly":      "def 1x\n",
}

func newProject(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), domain.DirPerm))
		require.NoError(t, os.WriteFile(p, []byte(content), domain.FilePerm))
	}
	return root
}

func newApp(t *testing.T) *app.App {
	t.Helper()

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any()).AnyTimes()

	reg := registry.New()
	reg.Seal()

	return app.New(config.NewLoader(log), cas.NewOpener(), toolchain.New(), reg, log).
		WithOutput(io.Discard, io.Discard)
}

func target(s string) domain.TaskID {
	id, err := domain.ParseTaskID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func TestApp_Build(t *testing.T) {
	root := newProject(t, sources)
	a := newApp(t)

	result, err := a.Build(context.Background(), []domain.TaskID{target("compile_module:/app/main")}, app.BuildOptions{
		Dir:        root,
		OutputMode: "plain",
	})
	require.NoError(t, err)

	require.Len(t, result.Targets, 1)
	assert.Equal(t, domain.StatusCompleted, result.Targets[0].State.Status)
	assert.NotEmpty(t, result.Targets[0].State.Hash)
	assert.Equal(t, 6, result.Created)
	assert.Zero(t, result.Cached)
	assert.Zero(t, result.Failed)
	assert.Zero(t, result.Cancelled)

	for _, name := range []string{"app/main", "lib/math"} {
		content, err := os.ReadFile(filepath.Join(root, domain.DefaultInstallRoot, name))
		require.NoError(t, err, name)
		assert.Contains(t, string(content), toolchain.ObjectFormat)
	}
}

func TestApp_Build_PersistentCacheHits(t *testing.T) {
	root := newProject(t, sources)
	a := newApp(t)
	opts := app.BuildOptions{Dir: root, CacheMode: "persistent", OutputMode: "quiet"}
	targets := []domain.TaskID{target("compile_module:/app/main")}

	first, err := a.Build(context.Background(), targets, opts)
	require.NoError(t, err)

	second, err := a.Build(context.Background(), targets, opts)
	require.NoError(t, err)

	assert.NotEqual(t, first.Generation, second.Generation)
	assert.Equal(t, first.Targets[0].State.Hash, second.Targets[0].State.Hash)
	assert.Zero(t, second.Created)
	assert.Equal(t, 6, second.Cached)
	assert.DirExists(t, filepath.Join(root, domain.DefaultCachePath()))
}

func TestApp_Build_TargetFailure(t *testing.T) {
	root := newProject(t, sources)
	a := newApp(t)

	result, err := a.Build(context.Background(), []domain.TaskID{
		target("compile_module:/bad"),
		target("compile_module:/lib/math"),
	}, app.BuildOptions{Dir: root, OutputMode: "plain"})
	require.ErrorIs(t, err, domain.ErrBuildExecutionFailed)
	require.ErrorIs(t, err, domain.ErrSyntax)
	assert.Equal(t, domain.ErrInvalidConfiguration, domain.ConditionOf(result.Targets[0].Err))

	require.Len(t, result.Targets, 2)
	assert.Equal(t, domain.StatusFailed, result.Targets[0].State.Status)
	assert.Equal(t, domain.StatusCompleted, result.Targets[1].State.Status)
	assert.FileExists(t, filepath.Join(root, domain.DefaultInstallRoot, "lib", "math"))
}

func TestApp_Build_Params(t *testing.T) {
	root := newProject(t, sources)
	a := newApp(t)

	result, err := a.ComputeTargets(context.Background(), []domain.TaskID{target("compile:lib")}, app.BuildOptions{
		Dir:        root,
		OutputMode: "quiet",
		Params:     domain.ConfigMap{"modules": "/lib/math"},
	})
	require.NoError(t, err)
	require.Len(t, result.Targets, 1)
	assert.Equal(t, domain.StatusCompleted, result.Targets[0].State.Status)
	assert.True(t, result.Targets[0].Key.HasParams())
}

func TestApp_Build_SettingsOverrides(t *testing.T) {
	root := newProject(t, sources)
	a := newApp(t)

	overrides := domain.NewTaskSettings()
	overrides.Tasks[target("compile:lib")] = domain.ConfigMap{"modules": "/lib/math"}

	result, err := a.ComputeTargets(context.Background(), []domain.TaskID{target("compile:lib")}, app.BuildOptions{
		Dir:        root,
		OutputMode: "quiet",
		Overrides:  overrides,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, result.Targets[0].State.Status)
}

func TestApp_Build_NoTargets(t *testing.T) {
	a := newApp(t)

	_, err := a.Build(context.Background(), nil, app.BuildOptions{Dir: t.TempDir()})
	require.ErrorIs(t, err, domain.ErrNoTargetsSpecified)
}

func TestApp_Build_ConfigLoaderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockConfigLoader(ctrl)
	log := mocks.NewMockLogger(ctrl)
	loader.EXPECT().Load("/work").Return(nil, errors.New("config load error"))

	a := app.New(loader, cas.NewOpener(), toolchain.New(), registry.New(), log)
	_, err := a.Build(context.Background(), []domain.TaskID{target("parse_module:/x")}, app.BuildOptions{Dir: "/work"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestApp_Build_InvalidCacheMode(t *testing.T) {
	a := newApp(t)

	_, err := a.Build(context.Background(), []domain.TaskID{target("parse_module:/x")}, app.BuildOptions{
		Dir:       t.TempDir(),
		CacheMode: "cloud",
	})
	require.ErrorIs(t, err, domain.ErrInvalidCacheMode)
}

func TestApp_Diagnostics(t *testing.T) {
	root := newProject(t, sources)
	a := newApp(t)

	diags, err := a.Diagnostics(context.Background(), []domain.TaskID{
		target("compile_module:/app/main"),
		target("parse_module:/bad"),
	}, app.BuildOptions{Dir: root, OutputMode: "quiet"})
	require.NoError(t, err)
	require.Len(t, diags, 2)

	ok := diags[0]
	assert.Equal(t, domain.StatusCompleted, ok.Status)
	require.NoError(t, ok.Err)
	require.NotEmpty(t, ok.Spans.Spans)
	assert.False(t, ok.Spans.HasErrors())

	bad := diags[1]
	assert.Equal(t, domain.StatusFailed, bad.Status)
	require.ErrorIs(t, bad.Err, domain.ErrSyntax)
	assert.True(t, bad.Spans.HasErrors())
}

func TestApp_Clean(t *testing.T) {
	root := newProject(t, map[string]string{
		".lyric/cache/entry": "x",
		"build/app/main":     "x",
		"src/keep.ly":        "def keep\n",
	})
	a := newApp(t)

	require.NoError(t, a.Clean(context.Background(), app.CleanOptions{Dir: root, Cache: true, Install: true}))

	assert.NoDirExists(t, filepath.Join(root, domain.DefaultCachePath()))
	assert.NoDirExists(t, filepath.Join(root, domain.DefaultInstallRoot))
	assert.FileExists(t, filepath.Join(root, "src", "keep.ly"))
}

func TestApp_Watch(t *testing.T) {
	root := newProject(t, sources)
	ctrl := gomock.NewController(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	renderer := mocks.NewMockRenderer(ctrl)
	builds := 0
	renderer.EXPECT().OnBuildStart(gomock.Any(), []string{"compile_module:/app/main"}).
		Do(func(string, []string) {
			builds++
			if builds == 2 {
				cancel()
			}
		}).Times(2)
	renderer.EXPECT().OnTaskStart(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	renderer.EXPECT().OnTaskLog(gomock.Any(), gomock.Any()).AnyTimes()
	renderer.EXPECT().OnTaskComplete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	renderer.EXPECT().OnBuildComplete(gomock.Any()).Times(2)
	renderer.EXPECT().Flush().Return(nil).Times(2)

	changed := filepath.Join(root, "src", "lib", "math.ly")
	w := mocks.NewMockWatcher(ctrl)
	w.EXPECT().Start(gomock.Any(), filepath.Join(root, domain.DefaultSourceBase)).Return(nil)
	w.EXPECT().Stop().Return(nil)
	w.EXPECT().Events().Return(iter.Seq[ports.WatchEvent](func(yield func(ports.WatchEvent) bool) {
		yield(ports.WatchEvent{Path: changed, Operation: ports.OpWrite})
	}))

	a := newApp(t).
		WithRenderer(renderer).
		WithWatcherFactory(func() (ports.Watcher, error) { return w, nil })

	done := make(chan error, 1)
	go func() {
		done <- a.Watch(ctx, []domain.TaskID{target("compile_module:/app/main")}, app.BuildOptions{Dir: root})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not rebuild after the change")
	}
}

// interruptedRenderer is a renderer whose user already asked to stop.
type interruptedRenderer struct {
	*mocks.MockRenderer
	stop chan struct{}
}

func (r *interruptedRenderer) Interrupted() <-chan struct{} { return r.stop }

func newInterruptedRenderer(t *testing.T) *interruptedRenderer {
	t.Helper()

	renderer := mocks.NewMockRenderer(gomock.NewController(t))
	renderer.EXPECT().OnBuildStart(gomock.Any(), gomock.Any()).AnyTimes()
	renderer.EXPECT().OnTaskStart(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	renderer.EXPECT().OnTaskLog(gomock.Any(), gomock.Any()).AnyTimes()
	renderer.EXPECT().OnTaskComplete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	renderer.EXPECT().OnBuildComplete(gomock.Any()).AnyTimes()
	renderer.EXPECT().Flush().Return(nil).AnyTimes()

	stop := make(chan struct{})
	close(stop)
	return &interruptedRenderer{MockRenderer: renderer, stop: stop}
}

func TestApp_ComputeTargets_RendererInterrupt(t *testing.T) {
	root := newProject(t, sources)
	a := newApp(t).WithRenderer(newInterruptedRenderer(t))

	result, err := a.ComputeTargets(context.Background(), []domain.TaskID{target("compile_module:/app/main")},
		app.BuildOptions{Dir: root})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, domain.StatusFailed, result.Targets[0].State.Status)
	assert.Positive(t, result.Cancelled)
	assert.Zero(t, result.Failed, "an interrupt is not a task failure")
}

func TestApp_Watch_StopsOnRendererInterrupt(t *testing.T) {
	root := newProject(t, sources)
	ctrl := gomock.NewController(t)

	w := mocks.NewMockWatcher(ctrl)
	w.EXPECT().Start(gomock.Any(), gomock.Any()).Return(nil)
	w.EXPECT().Stop().Return(nil)
	w.EXPECT().Events().Return(iter.Seq[ports.WatchEvent](func(func(ports.WatchEvent) bool) {})).AnyTimes()

	a := newApp(t).
		WithRenderer(newInterruptedRenderer(t)).
		WithWatcherFactory(func() (ports.Watcher, error) { return w, nil })

	done := make(chan error, 1)
	go func() {
		done <- a.Watch(context.Background(), []domain.TaskID{target("compile_module:/app/main")}, app.BuildOptions{Dir: root})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch ignored the interrupt")
	}
}
