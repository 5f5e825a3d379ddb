// Package config provides the configuration loader for lyric.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load discovers lyric.yaml by walking up from cwd. When no file is found the
// defaults rooted at cwd are returned.
func (l *Loader) Load(cwd string) (*ports.Configuration, error) {
	configPath, err := findConfiguration(cwd)
	if err != nil {
		return nil, err
	}
	if configPath == "" {
		return &ports.Configuration{
			Builder:  normalize(domain.DefaultBuilderConfig(filepath.Clean(cwd))),
			Settings: domain.NewTaskSettings(),
		}, nil
	}

	var lyricfile Lyricfile
	if err := readAndUnmarshalYAML(configPath, &lyricfile); err != nil {
		return nil, zerr.With(err, "path", configPath)
	}

	cfg, err := l.build(configPath, &lyricfile)
	if err != nil {
		return nil, zerr.With(err, "path", configPath)
	}
	return cfg, nil
}

func findConfiguration(cwd string) (string, error) {
	currentDir := cwd
	for {
		candidate := filepath.Join(currentDir, domain.LyricFileName)
		info, err := os.Stat(candidate)
		switch {
		case err == nil && !info.IsDir():
			return candidate, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", candidate)
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			return "", nil
		}
		currentDir = parentDir
	}
}

func (l *Loader) build(configPath string, lyricfile *Lyricfile) (*ports.Configuration, error) {
	builder := domain.DefaultBuilderConfig(filepath.Dir(configPath))

	if lyricfile.SourceBase != "" {
		builder.SourceBase = lyricfile.SourceBase
	}
	if lyricfile.InstallRoot != "" {
		builder.InstallRoot = lyricfile.InstallRoot
	}
	if lyricfile.Jobs != nil {
		builder.Jobs = *lyricfile.Jobs
	}
	if lyricfile.WaitTimeoutMillis != nil {
		builder.WaitTimeoutMillis = *lyricfile.WaitTimeoutMillis
	}
	if lyricfile.Cache.Dir != "" {
		builder.CacheDir = lyricfile.Cache.Dir
	}
	if lyricfile.Cache.Mode != "" {
		mode, err := ParseCacheMode(lyricfile.Cache.Mode)
		if err != nil {
			return nil, err
		}
		builder.CacheMode = mode
	}

	settings := domain.NewTaskSettings()
	settings.Global = domain.ConfigMap(lyricfile.Global).Clone()
	for name, cfg := range lyricfile.Domains {
		if name == "" {
			return nil, domain.Condition(domain.ErrInvalidConfiguration, domain.ErrEmptyDomain)
		}
		settings.Domains[name] = domain.ConfigMap(cfg).Clone()
	}
	for name, cfg := range lyricfile.Tasks {
		id, err := domain.ParseTaskID(name)
		if err != nil {
			return nil, domain.Condition(domain.ErrInvalidConfiguration, err)
		}
		settings.Tasks[id] = domain.ConfigMap(cfg).Clone()
	}

	if lyricfile.Version == "" {
		l.Logger.Warn(fmt.Sprintf("'version' is not set in %s", domain.LyricFileName))
	}

	return &ports.Configuration{
		Builder:  normalize(builder),
		Settings: settings,
		Path:     configPath,
	}, nil
}

// ParseCacheMode validates a cache mode name.
func ParseCacheMode(s string) (domain.CacheMode, error) {
	switch mode := domain.CacheMode(s); mode {
	case domain.CacheModeMemory, domain.CacheModePersistent:
		return mode, nil
	default:
		return "", domain.Condition(domain.ErrInvalidConfiguration,
			domain.Detail(domain.ErrInvalidCacheMode, "mode", s))
	}
}

// normalize resolves relative directories against the root and fills derived defaults.
func normalize(cfg domain.BuilderConfig) domain.BuilderConfig {
	cfg.SourceBase = resolvePath(cfg.Root, cfg.SourceBase)
	cfg.InstallRoot = resolvePath(cfg.Root, cfg.InstallRoot)
	cfg.CacheDir = resolvePath(cfg.Root, cfg.CacheDir)
	cfg.Jobs = ResolveJobs(cfg.Jobs)
	if cfg.WaitTimeoutMillis <= 0 {
		cfg.WaitTimeoutMillis = domain.DefaultWaitTimeoutMillis
	}
	return cfg
}

// ResolveJobs maps a configured job count to a worker count. Negative values
// select the number of CPUs, zero falls back to a single worker.
func ResolveJobs(jobs int) int {
	switch {
	case jobs < 0:
		return max(runtime.NumCPU(), 1)
	case jobs == 0:
		return 1
	default:
		return jobs
	}
}

func resolvePath(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(root, p))
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is validated by caller
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return domain.Condition(domain.ErrInvalidConfiguration,
			zerr.Wrap(parseErr, domain.ErrConfigParseFailed.Error()))
	}

	return nil
}
