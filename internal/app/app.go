// Package app implements the application layer for lyric.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/lyric/internal/adapters/config"
	"go.trai.ch/lyric/internal/adapters/detector"
	"go.trai.ch/lyric/internal/adapters/fs"
	"go.trai.ch/lyric/internal/adapters/telemetry"
	"go.trai.ch/lyric/internal/adapters/watcher"
	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/lyric/internal/engine/runner"
	"go.trai.ch/lyric/internal/engine/task"
	"go.trai.ch/zerr"
)

// CacheOpener opens the cache selected by a builder configuration.
type CacheOpener interface {
	Open(cfg domain.BuilderConfig) (ports.Cache, error)
}

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	cacheOpener  CacheOpener
	toolchain    ports.Toolchain
	tasks        runner.TaskMaker
	logger       ports.Logger

	stdout     io.Writer
	stderr     io.Writer
	renderer   ports.Renderer
	newWatcher func() (ports.Watcher, error)
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	opener CacheOpener,
	toolchain ports.Toolchain,
	tasks runner.TaskMaker,
	log ports.Logger,
) *App {
	a := &App{
		configLoader: loader,
		cacheOpener:  opener,
		toolchain:    toolchain,
		tasks:        tasks,
		logger:       log,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
	}
	a.newWatcher = func() (ports.Watcher, error) {
		return watcher.NewWatcher(watcher.WithFilter(watcher.ModuleSources), watcher.WithLogger(a.logger))
	}
	return a
}

// WithOutput redirects build progress to the given writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// WithRenderer replaces the renderer chosen from the output mode.
// This is primarily used for testing.
func (a *App) WithRenderer(renderer ports.Renderer) *App {
	a.renderer = renderer
	return a
}

// WithWatcherFactory replaces how watch mode creates its file watcher.
func (a *App) WithWatcherFactory(factory func() (ports.Watcher, error)) *App {
	a.newWatcher = factory
	return a
}

// BuildOptions configures a build.
type BuildOptions struct {
	// Dir is where configuration discovery starts. Empty means the working directory.
	Dir string
	// Jobs overrides the configured worker count when non-zero.
	Jobs int
	// CacheMode overrides the configured cache mode when set.
	CacheMode string
	// InstallRoot overrides the configured install root when set.
	InstallRoot string
	// Params are attached to every target key.
	Params domain.ConfigMap
	// Overrides are applied on top of the configured task settings.
	Overrides *domain.TaskSettings
	// OutputMode is the --output flag value.
	OutputMode string
}

// TargetComputation is the outcome of one build target.
type TargetComputation struct {
	Key   domain.TaskKey
	State domain.TaskState
	Err   error
}

// BuildResult is the outcome of one build generation.
type BuildResult struct {
	Generation domain.BuildGeneration
	Targets    []TargetComputation
	Created    int
	Cached     int
	Failed     int
	Cancelled  int
	Elapsed    time.Duration

	cache ports.Cache
}

// Err joins the failures of all targets. It is nil when every target completed.
func (r *BuildResult) Err() error {
	var errs []error
	for _, t := range r.Targets {
		if t.Err != nil {
			errs = append(errs, domain.Detail(t.Err, "target", t.Key.String()))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{domain.ErrBuildExecutionFailed}, errs...)...)
}

// session is the state consecutive builds of one invocation share.
type session struct {
	builder  domain.BuilderConfig
	settings *domain.TaskSettings
	cache    ports.Cache
	fs       *fs.Filesystem
	renderer ports.Renderer
}

func (a *App) openSession(opts BuildOptions) (*session, error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to get working directory")
		}
		dir = wd
	}

	cfg, err := a.configLoader.Load(dir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}

	builder := cfg.Builder
	if opts.Jobs != 0 {
		builder.Jobs = config.ResolveJobs(opts.Jobs)
	}
	if opts.CacheMode != "" {
		mode, err := config.ParseCacheMode(opts.CacheMode)
		if err != nil {
			return nil, err
		}
		builder.CacheMode = mode
	}
	if opts.InstallRoot != "" {
		root, err := filepath.Abs(opts.InstallRoot)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to resolve install root"), "path", opts.InstallRoot)
		}
		builder.InstallRoot = root
	}

	cache, err := a.cacheOpener.Open(builder)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open cache")
	}
	filesystem, err := fs.NewFilesystem(builder.SourceBase)
	if err != nil {
		return nil, err
	}

	renderer := a.renderer
	if renderer == nil {
		mode := detector.ResolveMode(detector.DetectEnvironment(), opts.OutputMode)
		renderer = rendererFor(mode, a.stdout, a.stderr)
	}

	return &session{
		builder:  builder,
		settings: cfg.Settings.Merge(opts.Overrides),
		cache:    cache,
		fs:       filesystem,
		renderer: renderer,
	}, nil
}

// ComputeTargets builds targets in a new generation.
func (a *App) ComputeTargets(ctx context.Context, targets []domain.TaskID, opts BuildOptions) (*BuildResult, error) {
	if len(targets) == 0 {
		return nil, domain.ErrNoTargetsSpecified
	}
	s, err := a.openSession(opts)
	if err != nil {
		return nil, err
	}
	return a.compute(ctx, s, targets, opts.Params)
}

func (a *App) compute(
	ctx context.Context,
	s *session,
	targets []domain.TaskID,
	params domain.ConfigMap,
) (*BuildResult, error) {
	generation := domain.NewBuildGeneration()

	keys := make([]domain.TaskKey, 0, len(targets))
	names := make([]string, 0, len(targets))
	remaining := make(map[domain.TaskKey]struct{}, len(targets))
	for _, id := range targets {
		key := domain.NewTaskKey(id.Domain, id.ID, params)
		if _, dup := remaining[key]; dup {
			continue
		}
		remaining[key] = struct{}{}
		keys = append(keys, key)
		names = append(names, key.String())
	}

	provider := telemetry.NewProvider(s.renderer)
	defer func() {
		_ = provider.Shutdown(context.WithoutCancel(ctx))
	}()
	tracer := telemetry.NewOTelTracerWithProvider(provider, "lyric").WithLogSink(s.renderer.OnTaskLog)

	state := &task.BuildState{
		Generation: generation,
		Cache:      s.cache,
		Filesystem: s.fs,
		Toolchain:  a.toolchain,
		Settings:   s.settings,
		Logger:     a.logger,
	}
	r := runner.New(a.tasks, state, tracer, a.logger, runner.Options{
		Parallelism: s.builder.Jobs,
		WaitTimeout: time.Duration(s.builder.WaitTimeoutMillis) * time.Millisecond,
	})

	s.renderer.OnBuildStart(generation.String(), names)
	start := time.Now()

	ctx, stop := interruptible(ctx, s.renderer)
	defer stop()

	for _, key := range keys {
		if err := r.EnqueueTask(ctx, key); err != nil {
			return nil, err
		}
	}
	runErr := r.Run(ctx, func(n domain.TaskNotification) {
		delete(remaining, n.Key)
		if len(remaining) == 0 {
			r.Shutdown()
		}
	})

	stats := r.Stats()
	result := &BuildResult{
		Generation: generation,
		Created:    stats.Created,
		Cached:     stats.Cached,
		Failed:     stats.Failed,
		Cancelled:  stats.Cancelled,
		Elapsed:    time.Since(start),
		cache:      s.cache,
	}
	for _, key := range keys {
		tc := TargetComputation{Key: key, State: r.State(key)}
		switch tc.State.Status {
		case domain.StatusCompleted:
		case domain.StatusFailed:
			tc.Err = r.Err(key)
		default:
			tc.Err = domain.Condition(domain.ErrBuildInvariant,
				domain.Detail(domain.ErrTargetNotTerminal, "status", tc.State.Status.String()))
		}
		result.Targets = append(result.Targets, tc)
	}

	s.renderer.OnBuildComplete(ports.BuildSummary{
		Generation: generation.String(),
		Completed:  stats.Created + stats.Cached,
		Failed:     stats.Failed,
		Cancelled:  stats.Cancelled,
		Created:    stats.Created,
		Cached:     stats.Cached,
		Elapsed:    result.Elapsed,
	})
	if err := s.renderer.Flush(); err != nil {
		a.logger.Warn(fmt.Sprintf("failed to flush output: %v", err))
	}

	if runErr != nil {
		return result, zerr.Wrap(runErr, "build interrupted")
	}
	return result, nil
}

// Build computes targets and installs the artifacts of every completed target.
// It fails with ErrBuildExecutionFailed when a target failed.
func (a *App) Build(ctx context.Context, targets []domain.TaskID, opts BuildOptions) (*BuildResult, error) {
	if len(targets) == 0 {
		return nil, domain.ErrNoTargetsSpecified
	}
	s, err := a.openSession(opts)
	if err != nil {
		return nil, err
	}
	return a.buildOnce(ctx, s, targets, opts.Params)
}

func (a *App) buildOnce(
	ctx context.Context,
	s *session,
	targets []domain.TaskID,
	params domain.ConfigMap,
) (*BuildResult, error) {
	result, err := a.compute(ctx, s, targets, params)
	if err != nil {
		return result, err
	}
	if err := a.Install(ctx, result, s.builder.InstallRoot); err != nil {
		return result, err
	}
	return result, result.Err()
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	// Dir is where configuration discovery starts. Empty means the working directory.
	Dir     string
	Cache   bool
	Install bool
}

// Clean removes the persistent cache and the install root.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	dir := options.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return zerr.Wrap(err, "failed to get working directory")
		}
		dir = wd
	}
	cfg, err := a.configLoader.Load(dir)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	var errs error
	remove := func(path string, name string) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := os.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)), "path", path))
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	if options.Cache {
		remove(cfg.Builder.CacheDir, "artifact cache")
	}
	if options.Install {
		remove(cfg.Builder.InstallRoot, "install root")
	}

	return errs
}
