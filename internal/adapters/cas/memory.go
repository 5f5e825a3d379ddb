// Package cas implements the content addressed artifact cache.
package cas

import (
	"slices"
	"strings"
	"sync"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
)

var _ ports.Cache = (*MemoryCache)(nil)

// maxLinkDepth bounds link resolution so a corrupted cache cannot loop forever.
const maxLinkDepth = 64

// entry is either an artifact holding content and metadata, or a link to another artifact.
type entry struct {
	link     *domain.ArtifactID
	metadata domain.Metadata
	content  []byte
	stored   bool
}

// MemoryCache implements ports.Cache in process memory.
type MemoryCache struct {
	mu          sync.RWMutex
	artifacts   map[domain.ArtifactID]*entry
	traces      map[domain.TraceID]domain.BuildGeneration
	diagnostics map[domain.TraceID]domain.SpanSet
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		artifacts:   make(map[domain.ArtifactID]*entry),
		traces:      make(map[domain.TraceID]domain.BuildGeneration),
		diagnostics: make(map[domain.TraceID]domain.SpanSet),
	}
}

// DeclareArtifact registers a new, empty artifact.
func (c *MemoryCache) DeclareArtifact(id domain.ArtifactID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.artifacts[id]; ok {
		return domain.Detail(domain.ErrArtifactExists, "artifact", id.String())
	}
	c.artifacts[id] = &entry{metadata: domain.Metadata{}}
	return nil
}

// ContainsArtifact reports whether the artifact exists.
func (c *MemoryCache) ContainsArtifact(id domain.ArtifactID) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.artifacts[id]
	return ok, nil
}

// StoreContent stores the bytes of a declared artifact.
func (c *MemoryCache) StoreContent(id domain.ArtifactID, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.declaredLocked(id)
	if err != nil {
		return err
	}
	if e.stored {
		return domain.Detail(domain.ErrContentAlreadyStored, "artifact", id.String())
	}
	e.content = slices.Clone(content)
	e.stored = true
	return nil
}

// StoreMetadata stores the metadata of a declared artifact.
func (c *MemoryCache) StoreMetadata(id domain.ArtifactID, metadata domain.Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.declaredLocked(id)
	if err != nil {
		return err
	}
	e.metadata = metadata.Clone()
	return nil
}

// LinkArtifact makes dst an alias of src.
func (c *MemoryCache) LinkArtifact(dst, src domain.ArtifactID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.artifacts[src]; !ok {
		return domain.Detail(domain.ErrArtifactNotFound, "artifact", src.String())
	}
	if _, ok := c.artifacts[dst]; ok {
		return domain.Detail(domain.ErrArtifactExists, "artifact", dst.String())
	}
	target := src
	c.artifacts[dst] = &entry{link: &target}
	return nil
}

// FindArtifacts lists the artifacts of a task hash within a generation.
func (c *MemoryCache) FindArtifacts(
	generation domain.BuildGeneration,
	hash string,
	opts ports.FindOptions,
	metadataFilter domain.Metadata,
) ([]domain.ArtifactID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var found []domain.ArtifactID
	for id := range c.artifacts {
		if id.Generation != generation || id.Hash != hash {
			continue
		}
		if !underBase(id.Location, opts.BaseLocation) {
			continue
		}
		if len(metadataFilter) > 0 {
			resolved, err := c.resolveLocked(id)
			if err != nil {
				return nil, err
			}
			if !resolved.metadata.Matches(metadataFilter) {
				continue
			}
		}
		found = append(found, id)
	}

	slices.SortFunc(found, func(a, b domain.ArtifactID) int {
		return strings.Compare(a.Location, b.Location)
	})
	return found, nil
}

// LoadMetadataFollowingLinks loads the metadata of id, resolving links.
func (c *MemoryCache) LoadMetadataFollowingLinks(id domain.ArtifactID) (domain.Metadata, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, err := c.resolveLocked(id)
	if err != nil {
		return nil, err
	}
	return e.metadata.Clone(), nil
}

// LoadContentFollowingLinks loads the content of id, resolving links.
func (c *MemoryCache) LoadContentFollowingLinks(id domain.ArtifactID) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, err := c.resolveLocked(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.content), nil
}

// ContainsTrace reports whether a trace exists.
func (c *MemoryCache) ContainsTrace(id domain.TraceID) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.traces[id]
	return ok, nil
}

// LoadTrace returns the generation a trace was stored in.
func (c *MemoryCache) LoadTrace(id domain.TraceID) (domain.BuildGeneration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	gen, ok := c.traces[id]
	if !ok {
		return domain.BuildGeneration{}, domain.Detail(domain.ErrTraceNotFound, "trace", id.String())
	}
	return gen, nil
}

// StoreTrace records that the task identified by id completed in generation.
func (c *MemoryCache) StoreTrace(id domain.TraceID, generation domain.BuildGeneration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.traces[id] = generation
	return nil
}

// StoreDiagnostics stores the diagnostics of a task.
func (c *MemoryCache) StoreDiagnostics(id domain.TraceID, diagnostics domain.SpanSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.diagnostics[id] = diagnostics
	return nil
}

// LoadDiagnostics loads the diagnostics of a task.
func (c *MemoryCache) LoadDiagnostics(id domain.TraceID) (domain.SpanSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	spans, ok := c.diagnostics[id]
	if !ok {
		return domain.SpanSet{}, domain.Detail(domain.ErrDiagnosticsNotFound, "trace", id.String())
	}
	return spans, nil
}

// ContentSize returns the number of content bytes held, counting each stored artifact once.
func (c *MemoryCache) ContentSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := 0
	for _, e := range c.artifacts {
		if e.link == nil {
			total += len(e.content)
		}
	}
	return total
}

func (c *MemoryCache) declaredLocked(id domain.ArtifactID) (*entry, error) {
	e, ok := c.artifacts[id]
	if !ok {
		return nil, domain.Detail(domain.ErrArtifactNotDeclared, "artifact", id.String())
	}
	if e.link != nil {
		return nil, domain.Detail(domain.ErrArtifactExists, "artifact", id.String())
	}
	return e, nil
}

func (c *MemoryCache) resolveLocked(id domain.ArtifactID) (*entry, error) {
	current := id
	for range maxLinkDepth {
		e, ok := c.artifacts[current]
		if !ok {
			return nil, domain.Detail(domain.ErrArtifactNotFound, "artifact", current.String())
		}
		if e.link == nil {
			return e, nil
		}
		current = *e.link
	}
	return nil, domain.Detail(domain.ErrLinkCycle, "artifact", id.String())
}

// underBase reports whether location equals base or lies below it.
func underBase(location, base string) bool {
	if base == "" || base == "/" {
		return true
	}
	base = strings.TrimSuffix(base, "/")
	return location == base || strings.HasPrefix(location, base+"/")
}
