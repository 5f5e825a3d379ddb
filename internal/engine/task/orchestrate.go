package task

import (
	"archive/tar"
	"bytes"
	"context"
	"maps"
	"slices"
	"strings"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/zerr"
)

// compile builds every module of its "modules" list and links the results.
type compile struct {
	deps []domain.TaskKey
}

func (b *compile) Configure(_ context.Context, env *ConfigureEnv) (Configuration, error) {
	modules, err := requireModules(env.Config)
	if err != nil {
		return Configuration{}, err
	}
	b.deps = moduleKeys(DomainCompileModule, modules)
	return Configuration{Deps: b.deps}, nil
}

func (b *compile) Run(_ context.Context, env *RunEnv) Poll {
	return Done(env.LinkDependencies(b.deps))
}

// orchestrate depends on arbitrary targets, given as "domain:id" entries of its
// "targets" list, and links everything they produced.
type orchestrate struct {
	deps []domain.TaskKey
}

func (b *orchestrate) Configure(_ context.Context, env *ConfigureEnv) (Configuration, error) {
	targets, err := env.Config.StringList("targets")
	if err != nil {
		return Configuration{}, err
	}
	for _, target := range targets {
		id, err := domain.ParseTaskID(target)
		if err != nil {
			return Configuration{}, err
		}
		b.deps = append(b.deps, domain.KeyFor(id))
	}
	return Configuration{Deps: b.deps}, nil
}

func (b *orchestrate) Run(_ context.Context, env *RunEnv) Poll {
	return Done(env.LinkDependencies(b.deps))
}

// archive bundles the objects of its modules and their imports into one tar file
// stored at /<id>.lya.
type archive struct {
	deps []domain.TaskKey
}

func (b *archive) Configure(_ context.Context, env *ConfigureEnv) (Configuration, error) {
	modules, err := requireModules(env.Config)
	if err != nil {
		return Configuration{}, err
	}
	b.deps = moduleKeys(DomainCompileModule, modules)
	return Configuration{Deps: b.deps}, nil
}

func (b *archive) Run(_ context.Context, env *RunEnv) Poll {
	objects := make(map[string][]byte)
	for _, dep := range b.deps {
		ids, err := env.DependencyArtifacts(dep, domain.Metadata{domain.MetaContentType: domain.ContentTypeObject})
		if err != nil {
			return Done(err)
		}
		for _, id := range ids {
			if _, ok := objects[id.Location]; ok {
				continue
			}
			content, err := env.Cache.LoadContentFollowingLinks(id)
			if err != nil {
				return Done(err)
			}
			objects[id.Location] = content
		}
	}

	data, err := writeArchive(objects)
	if err != nil {
		return Done(err)
	}

	location := "/" + strings.TrimPrefix(env.Key.ID(), "/") + domain.ArchiveFileExtension
	md := domain.Metadata{domain.MetaContentType: domain.ContentTypeArchive}
	if _, err := env.StoreArtifact(location, data, md); err != nil {
		return Done(err)
	}
	env.Logf("archived %d objects into %s", len(objects), location)
	return Done(nil)
}

// writeArchive writes entries in location order with zeroed timestamps, so equal
// inputs produce identical archives.
func writeArchive(entries map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, location := range slices.Sorted(maps.Keys(entries)) {
		content := entries[location]
		hdr := &tar.Header{
			Name:     strings.TrimPrefix(location, "/"),
			Mode:     domain.FilePerm,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
			Format:   tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to write archive header"), "location", location)
		}
		if _, err := tw.Write(content); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to write archive entry"), "location", location)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, zerr.Wrap(err, "failed to close archive")
	}
	return buf.Bytes(), nil
}

func requireModules(config domain.ConfigMap) ([]string, error) {
	modules, err := config.StringList("modules")
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, domain.Detail(domain.ErrMissingConfigValue, "key", "modules")
	}
	return modules, nil
}
