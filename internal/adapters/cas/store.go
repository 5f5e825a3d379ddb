package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Cache = (*Store)(nil)

const (
	artifactsDir   = "artifacts"
	tracesDir      = "traces"
	diagnosticsDir = "diagnostics"
)

// storedArtifact is the on-disk form of one artifact or link.
type storedArtifact struct {
	Generation string          `json:"generation"`
	Hash       string          `json:"hash"`
	Location   string          `json:"location"`
	Link       *storedLink     `json:"link,omitempty"`
	Metadata   domain.Metadata `json:"metadata,omitempty"`
	Content    []byte          `json:"content,omitempty"`
	Stored     bool            `json:"stored,omitempty"`
}

type storedLink struct {
	Generation string `json:"generation"`
	Hash       string `json:"hash"`
	Location   string `json:"location"`
}

type storedTrace struct {
	Generation string `json:"generation"`
}

// Store implements ports.Cache using a file-per-entry strategy below a root directory.
// Artifacts are grouped by generation and task hash so FindArtifacts can list a directory.
type Store struct {
	root string
	mu   sync.RWMutex
}

// NewStore creates a Store backed by the directory at root.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheCreateFailed.Error()), "path", root)
	}
	return &Store{root: root}, nil
}

// Root returns the directory the store persists to.
func (s *Store) Root() string {
	return s.root
}

// DeclareArtifact registers a new, empty artifact.
func (s *Store) DeclareArtifact(id domain.ArtifactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.create(id, storedArtifact{
		Generation: id.Generation.String(),
		Hash:       id.Hash,
		Location:   id.Location,
		Metadata:   domain.Metadata{},
	})
}

// ContainsArtifact reports whether the artifact exists.
func (s *Store) ContainsArtifact(id domain.ArtifactID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.artifactFile(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, zerr.Wrap(err, domain.ErrCacheReadFailed.Error())
}

// StoreContent stores the bytes of a declared artifact.
func (s *Store) StoreContent(id domain.ArtifactID, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.declared(id)
	if err != nil {
		return err
	}
	if a.Stored {
		return domain.Detail(domain.ErrContentAlreadyStored, "artifact", id.String())
	}
	a.Content = slices.Clone(content)
	a.Stored = true
	return s.write(s.artifactFile(id), a)
}

// StoreMetadata stores the metadata of a declared artifact.
func (s *Store) StoreMetadata(id domain.ArtifactID, metadata domain.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.declared(id)
	if err != nil {
		return err
	}
	a.Metadata = metadata.Clone()
	return s.write(s.artifactFile(id), a)
}

// LinkArtifact makes dst an alias of src.
func (s *Store) LinkArtifact(dst, src domain.ArtifactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readArtifact(src); err != nil {
		return err
	}
	return s.create(dst, storedArtifact{
		Generation: dst.Generation.String(),
		Hash:       dst.Hash,
		Location:   dst.Location,
		Link: &storedLink{
			Generation: src.Generation.String(),
			Hash:       src.Hash,
			Location:   src.Location,
		},
	})
}

// FindArtifacts lists the artifacts of a task hash within a generation.
func (s *Store) FindArtifacts(
	generation domain.BuildGeneration,
	hash string,
	opts ports.FindOptions,
	metadataFilter domain.Metadata,
) ([]domain.ArtifactID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.root, artifactsDir, generation.String(), digest(hash))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrCacheReadFailed.Error())
	}

	var found []domain.ArtifactID
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var a storedArtifact
		if err := s.read(filepath.Join(dir, e.Name()), &a); err != nil {
			return nil, err
		}
		id := domain.NewArtifactID(generation, a.Hash, a.Location)
		if !underBase(id.Location, opts.BaseLocation) {
			continue
		}
		if len(metadataFilter) > 0 {
			resolved, err := s.resolve(id)
			if err != nil {
				return nil, err
			}
			if !resolved.Metadata.Matches(metadataFilter) {
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
func (s *Store) LoadMetadataFollowingLinks(id domain.ArtifactID) (domain.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	if a.Metadata == nil {
		return domain.Metadata{}, nil
	}
	return a.Metadata, nil
}

// LoadContentFollowingLinks loads the content of id, resolving links.
func (s *Store) LoadContentFollowingLinks(id domain.ArtifactID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	return a.Content, nil
}

// ContainsTrace reports whether a trace exists.
func (s *Store) ContainsTrace(id domain.TraceID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.traceFile(tracesDir, id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, zerr.Wrap(err, domain.ErrCacheReadFailed.Error())
}

// LoadTrace returns the generation a trace was stored in.
func (s *Store) LoadTrace(id domain.TraceID) (domain.BuildGeneration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t storedTrace
	if err := s.read(s.traceFile(tracesDir, id), &t); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.BuildGeneration{}, domain.Detail(domain.ErrTraceNotFound, "trace", id.String())
		}
		return domain.BuildGeneration{}, err
	}
	gen, err := domain.ParseBuildGeneration(t.Generation)
	if err != nil {
		return domain.BuildGeneration{}, zerr.Wrap(err, domain.ErrCacheUnmarshalFailed.Error())
	}
	return gen, nil
}

// StoreTrace records that the task identified by id completed in generation.
func (s *Store) StoreTrace(id domain.TraceID, generation domain.BuildGeneration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(s.traceFile(tracesDir, id), storedTrace{Generation: generation.String()})
}

// StoreDiagnostics stores the diagnostics of a task.
func (s *Store) StoreDiagnostics(id domain.TraceID, diagnostics domain.SpanSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(s.traceFile(diagnosticsDir, id), diagnostics)
}

// LoadDiagnostics loads the diagnostics of a task.
func (s *Store) LoadDiagnostics(id domain.TraceID) (domain.SpanSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var spans domain.SpanSet
	if err := s.read(s.traceFile(diagnosticsDir, id), &spans); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.SpanSet{}, domain.Detail(domain.ErrDiagnosticsNotFound, "trace", id.String())
		}
		return domain.SpanSet{}, err
	}
	return spans, nil
}

func (s *Store) declared(id domain.ArtifactID) (storedArtifact, error) {
	var a storedArtifact
	if err := s.read(s.artifactFile(id), &a); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return a, domain.Detail(domain.ErrArtifactNotDeclared, "artifact", id.String())
		}
		return a, err
	}
	if a.Link != nil {
		return a, domain.Detail(domain.ErrArtifactExists, "artifact", id.String())
	}
	return a, nil
}

func (s *Store) readArtifact(id domain.ArtifactID) (storedArtifact, error) {
	var a storedArtifact
	if err := s.read(s.artifactFile(id), &a); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return a, domain.Detail(domain.ErrArtifactNotFound, "artifact", id.String())
		}
		return a, err
	}
	return a, nil
}

func (s *Store) resolve(id domain.ArtifactID) (storedArtifact, error) {
	current := id
	for range maxLinkDepth {
		a, err := s.readArtifact(current)
		if err != nil {
			return a, err
		}
		if a.Link == nil {
			return a, nil
		}
		gen, err := domain.ParseBuildGeneration(a.Link.Generation)
		if err != nil {
			return a, zerr.Wrap(err, domain.ErrCacheUnmarshalFailed.Error())
		}
		current = domain.NewArtifactID(gen, a.Link.Hash, a.Link.Location)
	}
	return storedArtifact{}, domain.Detail(domain.ErrLinkCycle, "artifact", id.String())
}

// create writes a new artifact file, failing if one already exists.
func (s *Store) create(id domain.ArtifactID, a storedArtifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheMarshalFailed.Error())
	}

	filename := s.artifactFile(id)
	if err := os.MkdirAll(filepath.Dir(filename), domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrCacheCreateFailed.Error())
	}

	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, domain.FilePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return domain.Detail(domain.ErrArtifactExists, "artifact", id.String())
		}
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	if err := f.Close(); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	return nil
}

// write replaces filename atomically with the JSON encoding of v.
func (s *Store) write(filename string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheMarshalFailed.Error())
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrCacheCreateFailed.Error())
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Already renamed on success

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	if err := os.Chmod(tmp.Name(), domain.FilePerm); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	return nil
}

func (s *Store) read(filename string, v any) error {
	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return zerr.Wrap(err, domain.ErrCacheReadFailed.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return zerr.Wrap(err, domain.ErrCacheUnmarshalFailed.Error())
	}
	return nil
}

func (s *Store) artifactFile(id domain.ArtifactID) string {
	return filepath.Join(s.root, artifactsDir, id.Generation.String(), digest(id.Hash), digest(id.Location)+".json")
}

func (s *Store) traceFile(kind string, id domain.TraceID) string {
	return filepath.Join(s.root, kind, digest(id.String())+".json")
}

func digest(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}
