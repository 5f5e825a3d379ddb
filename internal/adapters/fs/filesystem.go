package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unique"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Filesystem = (*Filesystem)(nil)

// Filesystem implements ports.Filesystem over the local disk. Module locations are
// resolved below the source base. Entity tags are memoized per path and reused
// while the file's size and modification time are unchanged.
type Filesystem struct {
	sourceBase string

	mu   sync.Mutex
	tags map[unique.Handle[string]]tagEntry
}

type tagEntry struct {
	size    int64
	modTime time.Time
	tag     string
}

// NewFilesystem creates a Filesystem resolving modules below sourceBase.
func NewFilesystem(sourceBase string) (*Filesystem, error) {
	abs, err := filepath.Abs(sourceBase)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to resolve source base"), "path", sourceBase)
	}
	return &Filesystem{
		sourceBase: abs,
		tags:       make(map[unique.Handle[string]]tagEntry),
	}, nil
}

// SourceBase returns the absolute directory modules are resolved in.
func (f *Filesystem) SourceBase() string {
	return f.sourceBase
}

// ResolveModule maps a module location such as "/foo/bar" to <sourceBase>/foo/bar.ly.
func (f *Filesystem) ResolveModule(location string) (ports.Resource, error) {
	cleaned := path.Clean("/" + location)
	if cleaned == "/" {
		return ports.Resource{}, domain.Condition(domain.ErrInvalidConfiguration,
			domain.Detail(domain.ErrPathOutsideRoot, "location", location))
	}

	p := filepath.Join(f.sourceBase, filepath.FromSlash(cleaned)+domain.ModuleFileExtension)
	rel, err := filepath.Rel(f.sourceBase, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ports.Resource{}, domain.Condition(domain.ErrInvalidConfiguration,
			domain.Detail(domain.ErrPathOutsideRoot, "location", location))
	}

	return f.Stat(p)
}

// Stat fingerprints the file at path.
func (f *Filesystem) Stat(p string) (ports.Resource, error) {
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return ports.Resource{}, domain.Condition(domain.ErrMissingInput, zerr.With(err, "path", p))
		}
		return ports.Resource{}, zerr.With(zerr.Wrap(err, "failed to stat path"), "path", p)
	}
	if info.IsDir() {
		return ports.Resource{}, domain.Condition(domain.ErrMissingInput,
			zerr.With(zerr.New("path is a directory"), "path", p))
	}

	tag, err := f.entityTag(p, info)
	if err != nil {
		return ports.Resource{}, err
	}

	return ports.Resource{Path: p, EntityTag: tag, Size: info.Size()}, nil
}

// ReadFile returns the content of the file at path.
func (f *Filesystem) ReadFile(p string) ([]byte, error) {
	data, err := os.ReadFile(p) //nolint:gosec // Path is resolved by the caller
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, domain.Condition(domain.ErrMissingInput, zerr.With(err, "path", p))
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", p)
	}
	return data, nil
}

// Invalidate drops memoized entity tags for the given paths.
func (f *Filesystem) Invalidate(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		delete(f.tags, unique.Make(p))
	}
}

func (f *Filesystem) entityTag(p string, info os.FileInfo) (string, error) {
	key := unique.Make(p)

	f.mu.Lock()
	entry, ok := f.tags[key]
	f.mu.Unlock()
	if ok && entry.size == info.Size() && entry.modTime.Equal(info.ModTime()) {
		return entry.tag, nil
	}

	sum, err := ComputeFileHash(p)
	if err != nil {
		return "", err
	}
	tag := FormatHash(sum)

	f.mu.Lock()
	f.tags[key] = tagEntry{size: info.Size(), modTime: info.ModTime(), tag: tag}
	f.mu.Unlock()

	return tag, nil
}
