package metadata

import "sync"

// Registry holds the active integrations in memory. Reloaded after admin
// mutations; safe for concurrent readers.
type Registry struct {
	mu           sync.RWMutex
	integrations map[string]*Integration
}

func NewRegistry() *Registry {
	return &Registry{integrations: make(map[string]*Integration)}
}

// Get returns the integration with the given id, or nil.
func (r *Registry) Get(id string) *Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.integrations[id]
}

// All returns all registered integrations.
func (r *Registry) All() []*Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Integration, 0, len(r.integrations))
	for _, it := range r.integrations {
		out = append(out, it)
	}
	return out
}

// Load replaces all integrations in the registry.
func (r *Registry) Load(integrations []*Integration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.integrations = make(map[string]*Integration, len(integrations))
	for _, it := range integrations {
		r.integrations[it.ID] = it
	}
}
