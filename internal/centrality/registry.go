package centrality

import (
	"sort"
	"sync"

	apperrors "github.com/graph-analysis/pkg/errors"
)

// Factory creates an algorithm instance.
type Factory func() Algorithm

// Registry maps algorithm names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every built-in algorithm.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("harmonic", func() Algorithm { return Harmonic{} })
	r.Register("closeness", func() Algorithm { return Closeness{} })
	r.Register("degree", func() Algorithm { return Degree{} })
	r.Register("weighted-degree", func() Algorithm { return Degree{Weighted: true} })
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get creates the algorithm registered under name.
func (r *Registry) Get(name string) (Algorithm, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "unknown algorithm %q", name)
	}
	return f(), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
