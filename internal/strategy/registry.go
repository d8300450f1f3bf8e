package strategy

import (
	"fmt"
	"sort"
)

// Factory constructs a fresh strategy instance. The registry hands out a
// new instance per lookup so concurrent runs never share strategy state.
type Factory func() Strategy

// Registry holds a named collection of strategy factories for lookup and
// enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a strategy factory under the given name. Registering the
// same name twice fails.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("strategy name must not be empty")
	}
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("strategy %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Get constructs a fresh instance of the named strategy. The second return
// value indicates whether the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	f, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
