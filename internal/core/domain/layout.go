package domain

import "path/filepath"

const (
	// LyricDirName is the name of the internal workspace directory.
	LyricDirName = ".lyric"

	// CacheDirName is the name of the persistent cache directory.
	CacheDirName = "cache"

	// LyricFileName is the name of the project configuration file.
	LyricFileName = "lyric.yaml"

	// ModuleFileExtension is the extension of Lyric module sources.
	ModuleFileExtension = ".ly"

	// ArchiveFileExtension is the extension of module archives.
	ArchiveFileExtension = ".lya"

	// DefaultSourceBase is the default directory holding module sources.
	DefaultSourceBase = "src"

	// DefaultInstallRoot is the default directory target artifacts are installed to.
	DefaultInstallRoot = "build"

	// DefaultWaitTimeoutMillis bounds how long an idle worker waits before re-checking shutdown.
	DefaultWaitTimeoutMillis = 1000

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultCachePath returns the default path for the persistent cache.
// It joins .lyric and cache.
func DefaultCachePath() string {
	return filepath.Join(LyricDirName, CacheDirName)
}
