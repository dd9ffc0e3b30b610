package checks

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicateCheck is returned when a name is registered twice.
	ErrDuplicateCheck = errors.New("check already registered")

	// ErrInvalidSpec is returned for specs missing a name, a body or a valid tier.
	ErrInvalidSpec = errors.New("invalid check spec")
)

// Registry is an ordered set of check specs for one validation run.
type Registry struct {
	mu    sync.RWMutex
	specs []Spec
	index map[string]int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register appends a spec. Names must be unique within the registry.
func (r *Registry) Register(s Spec) error {
	if s.Name == "" || s.Run == nil {
		return fmt.Errorf("%w: name and run function are required", ErrInvalidSpec)
	}
	if !s.Tier.Valid() {
		return fmt.Errorf("%w: check %s has unknown tier %q", ErrInvalidSpec, s.Name, s.Tier)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[s.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCheck, s.Name)
	}
	r.index[s.Name] = len(r.specs)
	r.specs = append(r.specs, s)
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(s Spec) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get retrieves a spec by name.
func (r *Registry) Get(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return Spec{}, false
	}
	return r.specs[i], true
}

// List returns the names of all registered checks in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		names = append(names, s.Name)
	}
	return names
}

// Len returns the number of registered checks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}

// Specs returns a copy of the specs in registration order.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Ordered returns the specs sorted by tier (critical first). Registration
// order is kept within a tier.
func (r *Registry) Ordered() []Spec {
	out := r.Specs()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Tier.Rank() < out[j].Tier.Rank()
	})
	return out
}

// Filter returns a new Registry holding only the named checks. Unknown
// names are returned separately so callers can report them.
func (r *Registry) Filter(names map[string]bool) (*Registry, []string) {
	filtered := NewRegistry()
	if len(names) == 0 {
		for _, s := range r.Specs() {
			_ = filtered.Register(s)
		}
		return filtered, nil
	}

	var unknown []string
	for name := range names {
		if _, ok := r.Get(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)

	for _, s := range r.Specs() {
		if names[s.Name] {
			_ = filtered.Register(s)
		}
	}
	return filtered, unknown
}
