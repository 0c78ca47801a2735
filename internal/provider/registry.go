package provider

import (
	"fmt"

	"github.com/nhle/tempvortex/internal/model"
)

// Registry maps every ProviderID to its adapter. It is built once at
// startup and read-only afterwards.
type Registry struct {
	adapters map[model.ProviderID]Provider
}

// NewRegistry builds a registry from adapters. It fails unless each
// known provider has exactly one adapter.
func NewRegistry(adapters ...Provider) (*Registry, error) {
	m := make(map[model.ProviderID]Provider, len(adapters))
	for _, a := range adapters {
		id := a.ID()
		if !id.Valid() {
			return nil, fmt.Errorf("registering adapter: unknown provider %q", id)
		}
		if _, dup := m[id]; dup {
			return nil, fmt.Errorf("registering adapter: duplicate provider %q", id)
		}
		m[id] = a
	}
	for _, id := range model.ProviderRotation {
		if _, ok := m[id]; !ok {
			return nil, fmt.Errorf("registering adapter: no adapter for provider %q", id)
		}
	}
	return &Registry{adapters: m}, nil
}

// Lookup returns the adapter for id. It only fails for ids outside the
// known provider set.
func (r *Registry) Lookup(id model.ProviderID) (Provider, error) {
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", id)
	}
	return a, nil
}

// IDs returns the registered providers in rotation order.
func (r *Registry) IDs() []model.ProviderID {
	ids := make([]model.ProviderID, len(model.ProviderRotation))
	copy(ids, model.ProviderRotation)
	return ids
}
