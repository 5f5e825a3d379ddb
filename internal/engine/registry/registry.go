// Package registry maps task domains to task constructors.
package registry

import (
	"maps"
	"slices"
	"sync"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/lyric/internal/engine/task"
)

// Constructor creates the task of key for one build generation.
type Constructor func(generation domain.BuildGeneration, key domain.TaskKey, span ports.Span) (*task.Task, error)

// FromBody adapts a body factory into a Constructor.
func FromBody(factory task.BodyFactory) Constructor {
	return func(generation domain.BuildGeneration, key domain.TaskKey, span ports.Span) (*task.Task, error) {
		body, err := factory(key)
		if err != nil {
			return nil, err
		}
		if body == nil {
			return nil, nil
		}
		return task.New(generation, key, span, body), nil
	}
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	without []string
}

// WithoutBuiltins leaves the named built-in domains unregistered.
func WithoutBuiltins(domains ...string) Option {
	return func(o *options) {
		o.without = append(o.without, domains...)
	}
}

// Registry holds the task constructors of a build. It is mutable until sealed,
// and tasks can only be made once it is sealed.
type Registry struct {
	mu     sync.RWMutex
	ctors  map[string]Constructor
	sealed bool
}

// New creates an unsealed registry holding the built-in task domains.
func New(opts ...Option) *Registry {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	r := &Registry{ctors: make(map[string]Constructor)}
	for name, factory := range task.Builtins() {
		if slices.Contains(o.without, name) {
			continue
		}
		r.ctors[name] = FromBody(factory)
	}
	return r
}

// RegisterTaskDomain adds a constructor for a new domain.
func (r *Registry) RegisterTaskDomain(taskDomain string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMutableLocked(taskDomain); err != nil {
		return err
	}
	if _, ok := r.ctors[taskDomain]; ok {
		return invariant(domain.Detail(domain.ErrDomainAlreadyRegistered, "domain", taskDomain))
	}
	r.ctors[taskDomain] = ctor
	return nil
}

// ReplaceTaskDomain sets the constructor of a domain, registered or not.
func (r *Registry) ReplaceTaskDomain(taskDomain string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMutableLocked(taskDomain); err != nil {
		return err
	}
	r.ctors[taskDomain] = ctor
	return nil
}

// DeregisterTaskDomain removes a registered domain.
func (r *Registry) DeregisterTaskDomain(taskDomain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return invariant(domain.Detail(domain.ErrRegistrySealed, "domain", taskDomain))
	}
	if _, ok := r.ctors[taskDomain]; !ok {
		return invariant(domain.Detail(domain.ErrUnknownDomain, "domain", taskDomain))
	}
	delete(r.ctors, taskDomain)
	return nil
}

// Seal freezes the registry. It cannot be undone.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// IsSealed reports whether Seal was called.
func (r *Registry) IsSealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Domains returns the registered domains in sorted order.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.ctors))
}

// MakeTask creates the task of key.
func (r *Registry) MakeTask(generation domain.BuildGeneration, key domain.TaskKey, span ports.Span) (*task.Task, error) {
	r.mu.RLock()
	sealed := r.sealed
	ctor, ok := r.ctors[key.Domain()]
	r.mu.RUnlock()

	if !sealed {
		return nil, invariant(domain.Detail(domain.ErrRegistryNotSealed, "task", key.String()))
	}
	if !ok {
		return nil, invariant(domain.Detail(domain.ErrUnknownDomain, "domain", key.Domain()))
	}

	t, err := ctor(generation, key, span)
	if err != nil {
		return nil, invariant(domain.Detail(err, "task", key.String()))
	}
	if t == nil {
		return nil, invariant(domain.Detail(domain.ErrNilTask, "task", key.String()))
	}
	return t, nil
}

func (r *Registry) checkMutableLocked(taskDomain string) error {
	if taskDomain == "" {
		return invariant(domain.ErrEmptyDomain)
	}
	if r.sealed {
		return invariant(domain.Detail(domain.ErrRegistrySealed, "domain", taskDomain))
	}
	return nil
}

func invariant(err error) error {
	return domain.Condition(domain.ErrBuildInvariant, err)
}
