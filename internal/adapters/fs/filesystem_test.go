package fs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lyric/internal/adapters/fs"
	"go.trai.ch/lyric/internal/core/domain"
)

func writeModule(t *testing.T, base, location, content string) string {
	t.Helper()
	p := filepath.Join(base, filepath.FromSlash(location)+domain.ModuleFileExtension)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestFilesystem_ResolveModule(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	p := writeModule(t, base, "/app/main", "def main\n")

	fsys, err := fs.NewFilesystem(base)
	require.NoError(t, err)

	res, err := fsys.ResolveModule("/app/main")
	require.NoError(t, err)
	assert.Equal(t, p, res.Path)
	assert.Len(t, res.EntityTag, 16)
	assert.Equal(t, int64(len("def main\n")), res.Size)

	same, err := fsys.ResolveModule("app/main")
	require.NoError(t, err)
	assert.Equal(t, res, same)
}

func TestFilesystem_ResolveModuleErrors(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	fsys, err := fs.NewFilesystem(base)
	require.NoError(t, err)

	_, err = fsys.ResolveModule("/missing")
	require.ErrorIs(t, err, domain.ErrMissingInput)

	_, err = fsys.ResolveModule("/")
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	require.ErrorIs(t, err, domain.ErrPathOutsideRoot)

	require.NoError(t, os.MkdirAll(filepath.Join(base, "dir.ly"), 0o750))
	_, err = fsys.ResolveModule("/dir")
	require.ErrorIs(t, err, domain.ErrMissingInput)
}

func TestFilesystem_EntityTagTracksContent(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	p := writeModule(t, base, "/m", "def a\n")

	fsys, err := fs.NewFilesystem(base)
	require.NoError(t, err)

	first, err := fsys.Stat(p)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(p, []byte("def a\ndef b\n"), 0o600))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(p, later, later))

	second, err := fsys.Stat(p)
	require.NoError(t, err)
	assert.NotEqual(t, first.EntityTag, second.EntityTag)

	fsys.Invalidate(p)
	third, err := fsys.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, second.EntityTag, third.EntityTag)
}

func TestFilesystem_ReadFile(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	p := writeModule(t, base, "/m", "x = 1\n")

	fsys, err := fs.NewFilesystem(base)
	require.NoError(t, err)

	data, err := fsys.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(data))

	_, err = fsys.ReadFile(filepath.Join(base, "nope"))
	require.ErrorIs(t, err, domain.ErrMissingInput)
}

func TestComputeFileHash(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(p, []byte("abc"), 0o600))

	sum, err := fs.ComputeFileHash(p)
	require.NoError(t, err)
	assert.Equal(t, "44bc2cf5ad770999", fs.FormatHash(sum))

	_, err = fs.ComputeFileHash(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrFileOpenFailed.Error())
}
