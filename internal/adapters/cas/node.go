package cas

import (
	"context"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
)

// NodeID is the unique identifier for the cache opener Graft node.
const NodeID graft.ID = "adapter.cache"

// Opener creates the cache a build runs against.
type Opener struct{}

// NewOpener creates a new Opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Open returns the cache selected by cfg.CacheMode. Relative cache directories
// are resolved against cfg.Root.
func (o *Opener) Open(cfg domain.BuilderConfig) (ports.Cache, error) {
	switch cfg.CacheMode {
	case domain.CacheModeMemory, "":
		return NewMemoryCache(), nil
	case domain.CacheModePersistent:
		dir := cfg.CacheDir
		if dir == "" {
			dir = domain.DefaultCachePath()
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.Root, dir)
		}
		return NewStore(dir)
	default:
		return nil, domain.Condition(domain.ErrInvalidConfiguration,
			domain.Detail(domain.ErrInvalidCacheMode, "mode", string(cfg.CacheMode)))
	}
}

func init() {
	graft.Register(graft.Node[*Opener]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Opener, error) {
			return NewOpener(), nil
		},
	})
}
