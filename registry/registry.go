// Package registry holds the name -> constructor table that plugins populate
// at startup and the dispatcher reads per request.
//
// A Registry is created once at process start and passed explicitly to the
// plugin loader and the dispatcher. All registration happens during the
// one-shot load phase; Seal ends that phase, after which the table is
// read-only.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/logging"
)

// Registrar is the write side of the registry handed to plugins.
type Registrar interface {
	Register(name string, constructor core.Constructor) error
}

// Options configures a Registry.
type Options struct {
	// RejectDuplicates makes a second registration of a name fail with
	// *core.DuplicateNameError instead of silently replacing the first.
	RejectDuplicates bool

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Entry describes a registered agent name and the unit that registered it.
type Entry struct {
	Name   string `json:"name"`
	Origin string `json:"origin,omitempty"`
}

type binding struct {
	constructor core.Constructor
	origin      string
}

// Registry maps agent names to constructors.
type Registry struct {
	mu               sync.RWMutex
	bindings         map[string]binding
	sealed           bool
	rejectDuplicates bool
	logger           logging.Logger
}

// New creates an empty Registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Registry{
		bindings:         make(map[string]binding),
		rejectDuplicates: opts.RejectDuplicates,
		logger:           opts.Logger,
	}
}

// Register binds name to constructor with no recorded origin.
func (r *Registry) Register(name string, constructor core.Constructor) error {
	return r.register("", name, constructor)
}

// Scoped returns a Registrar that records origin (typically a plugin unit
// name) for every binding it creates.
func (r *Registry) Scoped(origin string) Registrar {
	return scopedRegistrar{registry: r, origin: origin}
}

func (r *Registry) register(origin, name string, constructor core.Constructor) error {
	if name == "" {
		return fmt.Errorf("%w: empty agent name", core.ErrInvalidRegistration)
	}

	if constructor == nil {
		return fmt.Errorf("%w: nil constructor for %s", core.ErrInvalidRegistration, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %s", core.ErrRegistrySealed, name)
	}

	if existing, ok := r.bindings[name]; ok {
		if r.rejectDuplicates {
			return &core.DuplicateNameError{Name: name, Origin: origin, Existing: existing.origin}
		}

		r.logger.Warn("registry.overwrite",
			"agent", name,
			"previous_origin", existing.origin,
			"origin", origin,
		)
	}

	r.bindings[name] = binding{constructor: constructor, origin: origin}

	r.logger.Info("registry.registered", "agent", name, "origin", origin, "total", len(r.bindings))

	return nil
}

// Lookup returns the constructor bound to name. Matching is exact.
func (r *Registry) Lookup(name string) (core.Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[name]
	if !ok {
		return nil, &core.AgentNotFoundError{Name: name}
	}

	return b.constructor, nil
}

// Seal ends the load phase; later registrations fail with core.ErrRegistrySealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sealed
}

// Len returns the number of bound names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.bindings)
}

// Names returns the bound names sorted lexically.
func (r *Registry) Names() []string {
	entries := r.Entries()

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}

	return names
}

// Entries returns all bindings sorted by name.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.bindings))
	for name, b := range r.bindings {
		entries = append(entries, Entry{Name: name, Origin: b.origin})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return entries
}

type scopedRegistrar struct {
	registry *Registry
	origin   string
}

func (s scopedRegistrar) Register(name string, constructor core.Constructor) error {
	return s.registry.register(s.origin, name, constructor)
}
