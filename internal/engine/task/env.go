package task

import (
	"fmt"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/zerr"
)

// BuildState is shared by every task of one build generation.
type BuildState struct {
	Generation domain.BuildGeneration
	Cache      ports.Cache
	Filesystem ports.Filesystem
	Toolchain  ports.Toolchain
	Settings   *domain.TaskSettings
	// Logger receives warnings that must not fail a task. It may be nil.
	Logger ports.Logger
}

func (s *BuildState) warn(msg string) {
	if s.Logger != nil {
		s.Logger.Warn(msg)
	}
}

// ConfigureEnv is handed to Body.Configure.
type ConfigureEnv struct {
	Key domain.TaskKey
	// Config is the merged configuration node of the task.
	Config     domain.ConfigMap
	Filesystem ports.Filesystem
	Toolchain  ports.Toolchain
}

// Configuration is what a body reports about itself before it runs.
type Configuration struct {
	// HashInputs are folded into the config hash. Anything that changes the output
	// of the task, such as the entity tag of a source file, belongs here.
	HashInputs []string
	// Deps must complete before the task runs for the first time.
	Deps []domain.TaskKey
}

// RunEnv is handed to Body.Run.
type RunEnv struct {
	Key        domain.TaskKey
	Generation domain.BuildGeneration
	Hash       string
	Config     domain.ConfigMap
	// DepStates holds the state of every completed dependency, static and requested.
	DepStates  map[domain.TaskKey]domain.TaskState
	Cache      ports.Cache
	Filesystem ports.Filesystem
	Toolchain  ports.Toolchain
	Span       ports.Span

	task *Task
}

// TempDir returns the task's scratch directory, creating it on first use.
// It is removed when the task is done.
func (e *RunEnv) TempDir() (string, error) {
	return e.task.ensureTempDir()
}

// Logf writes a line to the task span.
func (e *RunEnv) Logf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.Span, format+"\n", args...)
}

// ArtifactID returns the id of an artifact produced by this task.
func (e *RunEnv) ArtifactID(location string) domain.ArtifactID {
	return domain.NewArtifactID(e.Generation, e.Hash, location)
}

// StoreArtifact declares an artifact at location and stores content and metadata into it.
func (e *RunEnv) StoreArtifact(location string, content []byte, metadata domain.Metadata) (domain.ArtifactID, error) {
	id := e.ArtifactID(location)
	if err := e.Cache.DeclareArtifact(id); err != nil {
		return domain.ArtifactID{}, err
	}
	md := metadata.Clone()
	if md == nil {
		md = domain.Metadata{}
	}
	md[domain.MetaTaskDomain] = e.Key.Domain()
	if err := e.Cache.StoreMetadata(id, md); err != nil {
		return domain.ArtifactID{}, err
	}
	if err := e.Cache.StoreContent(id, content); err != nil {
		return domain.ArtifactID{}, err
	}
	return id, nil
}

// DependencyArtifacts lists the artifacts a completed dependency produced. The
// dependency's trace names the generation they live in, which is an earlier one
// when the dependency was a cache hit.
func (e *RunEnv) DependencyArtifacts(dep domain.TaskKey, filter domain.Metadata) ([]domain.ArtifactID, error) {
	state, ok := e.DepStates[dep]
	if !ok || state.Status != domain.StatusCompleted {
		return nil, domain.Condition(domain.ErrBuildInvariant,
			domain.Detail(domain.ErrDependencyNotComplete, "dependency", dep.String()))
	}
	generation, err := e.Cache.LoadTrace(domain.NewTraceID(state.Hash, dep))
	if err != nil {
		return nil, domain.Detail(err, "dependency", dep.String())
	}
	return e.Cache.FindArtifacts(generation, state.Hash, ports.FindOptions{}, filter)
}

// DependencyContent loads the content of the single artifact of dep at location.
func (e *RunEnv) DependencyContent(dep domain.TaskKey, location, contentType string) ([]byte, error) {
	ids, err := e.DependencyArtifacts(dep, domain.Metadata{domain.MetaContentType: contentType})
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if id.Location == location {
			return e.Cache.LoadContentFollowingLinks(id)
		}
	}
	return nil, zerr.With(domain.Detail(domain.ErrArtifactNotFound, "location", location), "dependency", dep.String())
}

// LinkArtifacts aliases ids into this task's namespace at their own locations.
// Locations already present are left alone.
func (e *RunEnv) LinkArtifacts(ids []domain.ArtifactID) error {
	for _, src := range ids {
		dst := e.ArtifactID(src.Location)
		exists, err := e.Cache.ContainsArtifact(dst)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := e.Cache.LinkArtifact(dst, src); err != nil {
			return err
		}
	}
	return nil
}

// LinkDependencies links the artifacts of every dependency into this task's namespace.
func (e *RunEnv) LinkDependencies(deps []domain.TaskKey) error {
	for _, dep := range deps {
		ids, err := e.DependencyArtifacts(dep, nil)
		if err != nil {
			return err
		}
		if err := e.LinkArtifacts(ids); err != nil {
			return err
		}
	}
	return nil
}
