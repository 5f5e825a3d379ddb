// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/lyric/internal/core/domain"

// FindOptions narrows the artifacts returned by Cache.FindArtifacts.
type FindOptions struct {
	// BaseLocation restricts results to locations at or below this path.
	BaseLocation string
}

// Cache is the content-addressed artifact store shared by all tasks of a build.
// Implementations must be safe for concurrent use.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type Cache interface {
	// DeclareArtifact registers a new, empty artifact. It fails if the artifact exists.
	DeclareArtifact(id domain.ArtifactID) error
	// ContainsArtifact reports whether the artifact exists, as content or as a link.
	ContainsArtifact(id domain.ArtifactID) (bool, error)
	// StoreContent stores the bytes of a declared artifact. Content is write-once.
	StoreContent(id domain.ArtifactID, content []byte) error
	// StoreMetadata stores the metadata of a declared artifact.
	StoreMetadata(id domain.ArtifactID, metadata domain.Metadata) error
	// LinkArtifact makes dst an alias of src without copying content.
	// src must exist and dst must not.
	LinkArtifact(dst, src domain.ArtifactID) error
	// FindArtifacts lists the artifacts of a task hash within a generation whose metadata
	// matches every entry of metadataFilter.
	FindArtifacts(
		generation domain.BuildGeneration,
		hash string,
		opts FindOptions,
		metadataFilter domain.Metadata,
	) ([]domain.ArtifactID, error)
	// LoadMetadataFollowingLinks loads the metadata of id, resolving links.
	LoadMetadataFollowingLinks(id domain.ArtifactID) (domain.Metadata, error)
	// LoadContentFollowingLinks loads the content of id, resolving links.
	LoadContentFollowingLinks(id domain.ArtifactID) ([]byte, error)

	// ContainsTrace reports whether a trace exists.
	ContainsTrace(id domain.TraceID) (bool, error)
	// LoadTrace returns the generation a trace was stored in.
	LoadTrace(id domain.TraceID) (domain.BuildGeneration, error)
	// StoreTrace records that the task identified by id completed in generation.
	StoreTrace(id domain.TraceID, generation domain.BuildGeneration) error
	// StoreDiagnostics stores the diagnostics of a task.
	StoreDiagnostics(id domain.TraceID, diagnostics domain.SpanSet) error
	// LoadDiagnostics loads the diagnostics of a task.
	LoadDiagnostics(id domain.TraceID) (domain.SpanSet, error)
}
