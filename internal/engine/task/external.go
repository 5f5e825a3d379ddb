package task

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/zerr"
)

// fetchExternalFile copies a file from outside the source base into the cache.
// Its id is a file:// URL or an absolute path. The "location" setting names the
// artifact location and defaults to /<basename>.
type fetchExternalFile struct {
	path     string
	location string
}

func (b *fetchExternalFile) Configure(_ context.Context, env *ConfigureEnv) (Configuration, error) {
	p, err := externalPath(env.Key.ID())
	if err != nil {
		return Configuration{}, err
	}
	res, err := env.Filesystem.Stat(p)
	if err != nil {
		return Configuration{}, err
	}

	location, ok, err := env.Config.String("location")
	if err != nil {
		return Configuration{}, err
	}
	if !ok || location == "" {
		location = "/" + filepath.Base(p)
	}
	b.path = res.Path
	b.location = path.Clean("/" + location)
	return Configuration{HashInputs: []string{res.EntityTag, b.location}}, nil
}

func (b *fetchExternalFile) Run(_ context.Context, env *RunEnv) Poll {
	content, err := env.Filesystem.ReadFile(b.path)
	if err != nil {
		return Done(err)
	}
	md := domain.Metadata{domain.MetaContentType: domain.ContentTypeFile}
	if _, err := env.StoreArtifact(b.location, content, md); err != nil {
		return Done(err)
	}
	return Done(nil)
}

func externalPath(id string) (string, error) {
	p := id
	if strings.HasPrefix(id, "file://") {
		u, err := url.Parse(id)
		if err != nil {
			return "", domain.Condition(domain.ErrInvalidConfiguration,
				zerr.With(zerr.Wrap(err, "invalid file url"), "url", id))
		}
		p = u.Path
	}
	if !filepath.IsAbs(p) {
		return "", domain.Condition(domain.ErrInvalidConfiguration,
			zerr.With(zerr.New("external file must be an absolute path or file url"), "id", id))
	}
	return filepath.Clean(p), nil
}

// provideFile stores a prebuilt object or plugin, read from the "path" setting,
// as the artifact of the module location given by its id.
type provideFile struct {
	contentType string
	path        string
}

func (b *provideFile) Configure(_ context.Context, env *ConfigureEnv) (Configuration, error) {
	p, err := env.Config.RequireString("path")
	if err != nil {
		return Configuration{}, err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return Configuration{}, domain.Condition(domain.ErrInvalidConfiguration,
			zerr.With(zerr.Wrap(err, "failed to resolve path"), "path", p))
	}
	res, err := env.Filesystem.Stat(abs)
	if err != nil {
		return Configuration{}, err
	}
	b.path = res.Path
	return Configuration{HashInputs: []string{res.EntityTag}}, nil
}

func (b *provideFile) Run(_ context.Context, env *RunEnv) Poll {
	content, err := env.Filesystem.ReadFile(b.path)
	if err != nil {
		return Done(err)
	}
	location := path.Clean("/" + env.Key.ID())
	if _, err := env.StoreArtifact(location, content, moduleMetadata(b.contentType, location)); err != nil {
		return Done(err)
	}
	return Done(nil)
}
