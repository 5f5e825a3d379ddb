package ports

// Resource describes a file reachable through the Filesystem.
type Resource struct {
	// Path is the absolute path of the file.
	Path string
	// EntityTag is a content fingerprint. It changes whenever the content changes.
	EntityTag string
	// Size is the size of the file in bytes.
	Size int64
}

// Filesystem gives tasks read access to module sources and external files.
//
//go:generate mockgen -source=filesystem.go -destination=mocks/mock_filesystem.go -package=mocks
type Filesystem interface {
	// ResolveModule maps a module location such as "/foo/bar" to its source file.
	// It fails with domain.ErrMissingInput if the file does not exist.
	ResolveModule(location string) (Resource, error)
	// Stat fingerprints the file at path.
	// It fails with domain.ErrMissingInput if the file does not exist.
	Stat(path string) (Resource, error)
	// ReadFile returns the content of the file at path.
	ReadFile(path string) ([]byte, error)
}
