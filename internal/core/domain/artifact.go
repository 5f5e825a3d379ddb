package domain

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// BuildGeneration scopes the cache entries of one build invocation.
type BuildGeneration struct {
	uuid.UUID
}

// NewBuildGeneration mints a fresh generation.
func NewBuildGeneration() BuildGeneration {
	return BuildGeneration{UUID: uuid.New()}
}

// ParseBuildGeneration parses the textual form of a generation.
func ParseBuildGeneration(s string) (BuildGeneration, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return BuildGeneration{}, err
	}
	return BuildGeneration{UUID: id}, nil
}

// IsZero reports whether the generation is unset.
func (g BuildGeneration) IsZero() bool {
	return g.UUID == uuid.Nil
}

// ArtifactID addresses one cached artifact.
type ArtifactID struct {
	Generation BuildGeneration
	Hash       string
	Location   string
}

// NewArtifactID creates a new ArtifactID.
func NewArtifactID(generation BuildGeneration, hash, location string) ArtifactID {
	return ArtifactID{Generation: generation, Hash: hash, Location: location}
}

func (a ArtifactID) String() string {
	return a.Generation.String() + "/" + a.Hash + a.Location
}

// TraceID addresses the trace of a completed task: the generation it completed in and its diagnostics.
type TraceID struct {
	Hash   string
	Domain string
	ID     string
}

// NewTraceID creates the TraceID of a task hash and key.
func NewTraceID(hash string, key TaskKey) TraceID {
	return TraceID{Hash: hash, Domain: key.Domain(), ID: key.ID()}
}

func (t TraceID) String() string {
	return t.Hash + "/" + t.Domain + ":" + t.ID
}

// Well-known metadata keys and content types.
const (
	MetaContentType    = "content-type"
	MetaModuleLocation = "module-location"
	MetaTaskDomain     = "task-domain"

	ContentTypeAST     = "application/lyric-ast"
	ContentTypeSymbols = "application/lyric-symbols"
	ContentTypeObject  = "application/lyric-object"
	ContentTypeOutline = "application/lyric-outline"
	ContentTypePlugin  = "application/lyric-plugin"
	ContentTypeArchive = "application/lyric-archive"
	ContentTypeFile    = "application/octet-stream"
)

// Metadata holds the attributes of an artifact.
type Metadata map[string]string

// Clone returns a copy of the metadata.
func (m Metadata) Clone() Metadata {
	return maps.Clone(m)
}

// Matches reports whether every entry of filter is present in m with an equal value.
func (m Metadata) Matches(filter Metadata) bool {
	for k, v := range filter {
		if got, ok := m[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// SpanEvent is one log line or error recorded on a span.
type SpanEvent struct {
	Time    time.Time `json:"time" yaml:"time"`
	Kind    string    `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
}

// Span event kinds.
const (
	EventLog   = "log"
	EventError = "error"
)

// SpanRecord is the diagnostic record of one span.
type SpanRecord struct {
	Name       string            `json:"name" yaml:"name"`
	Start      time.Time         `json:"start" yaml:"start"`
	End        time.Time         `json:"end,omitzero" yaml:"end,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Events     []SpanEvent       `json:"events,omitempty" yaml:"events,omitempty"`
	Failed     bool              `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// SpanSet is the set of span records making up the diagnostics of one task.
type SpanSet struct {
	Spans []SpanRecord `json:"spans" yaml:"spans"`
}

// HasErrors reports whether any span in the set failed.
func (s SpanSet) HasErrors() bool {
	for _, span := range s.Spans {
		if span.Failed {
			return true
		}
	}
	return false
}
