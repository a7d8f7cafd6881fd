package registry

import (
	"sync"

	"github.com/openclaw/model-router/models"
	"github.com/openclaw/model-router/services"
)

// Registry owns the catalog of model descriptors. Descriptors are immutable
// once loaded; the whole set is swapped atomically on config reload.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*models.ModelDescriptor
	order []string
}

// New creates a registry from a list of already-validated descriptors.
func New(descriptors []*models.ModelDescriptor) *Registry {
	r := &Registry{}
	r.Replace(descriptors)
	return r
}

// Replace atomically swaps the full descriptor set. Used at startup and on
// config hot reload.
func (r *Registry) Replace(descriptors []*models.ModelDescriptor) {
	byID := make(map[string]*models.ModelDescriptor, len(descriptors))
	order := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if _, exists := byID[d.ID]; exists {
			continue
		}
		byID[d.ID] = d
		order = append(order, d.ID)
	}

	r.mu.Lock()
	r.byID = byID
	r.order = order
	r.mu.Unlock()
}

// Get returns the descriptor for the given identifier.
func (r *Registry) Get(id string) (*models.ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byID[id]
	if !ok {
		return nil, services.ErrModelNotFound.WithDetail("model_id", id)
	}
	return d, nil
}

// ByCapability returns all available models that support the given task
// type, in registry order.
func (r *Registry) ByCapability(t models.TaskType) []*models.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.ModelDescriptor
	for _, id := range r.order {
		d := r.byID[id]
		if d.Available && d.Supports(t) {
			out = append(out, d)
		}
	}
	return out
}

// List returns all descriptors in registry order.
func (r *Registry) List() []*models.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ModelDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
