package asset

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages asset descriptors in a thread-safe manner.
// It is the asset registry collaborator: the matching core only asks it
// whether an asset exists.
type Registry struct {
	mu       sync.RWMutex
	assets   map[ID]Asset
	bySymbol map[string]ID
}

// NewRegistry creates an empty asset registry
func NewRegistry() *Registry {
	return &Registry{
		assets:   make(map[ID]Asset),
		bySymbol: make(map[string]ID),
	}
}

// Register adds a new asset to the registry
// Returns error if the id or symbol is already taken
func (r *Registry) Register(a Asset) error {
	if err := a.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[a.ID]; exists {
		return fmt.Errorf("asset id %d already registered", a.ID)
	}
	if _, exists := r.bySymbol[a.Symbol]; exists {
		return fmt.Errorf("asset %s already registered", a.Symbol)
	}

	r.assets[a.ID] = a
	r.bySymbol[a.Symbol] = a.ID
	return nil
}

// Get retrieves an asset by id
func (r *Registry) Get(id ID) (Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.assets[id]
	if !exists {
		return Asset{}, fmt.Errorf("asset %d not found", id)
	}
	return a, nil
}

// Lookup retrieves an asset by symbol
func (r *Registry) Lookup(symbol string) (Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.bySymbol[symbol]
	if !exists {
		return Asset{}, fmt.Errorf("asset %s not found", symbol)
	}
	return r.assets[id], nil
}

// Exists checks if an asset is registered
func (r *Registry) Exists(id ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.assets[id]
	return exists
}

// List returns all registered assets ordered by id
func (r *Registry) List() []Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the total number of registered assets
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}
