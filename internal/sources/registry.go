package sources

import (
	"fmt"
	"sort"
	"strings"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

// Factory builds a source adapter (RSS, Reddit, etc.) from its pipeline configuration.
type Factory func(spec domain.SourceSpec) (ports.Source, error)

// Registry keeps a mapping from source types to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds or replaces the factory for a source type.
func (r *Registry) Register(sourceType string, factory Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[strings.ToLower(sourceType)] = factory
}

// Resolve returns a factory by type or an error if it is absent.
func (r *Registry) Resolve(sourceType string) (Factory, error) {
	if factory, ok := r.factories[strings.ToLower(sourceType)]; ok {
		return factory, nil
	}
	return nil, fmt.Errorf("source type %s is not registered", sourceType)
}

// Build resolves the factory for spec.Type and constructs the adapter.
func (r *Registry) Build(spec domain.SourceSpec) (ports.Source, error) {
	factory, err := r.Resolve(spec.Type)
	if err != nil {
		return nil, err
	}
	src, err := factory(spec)
	if err != nil {
		return nil, fmt.Errorf("build %s source: %w", spec.Type, err)
	}
	return src, nil
}

// Types lists registered source types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
