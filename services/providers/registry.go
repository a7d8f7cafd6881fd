package providers

import (
	"errors"
	"sync"
)

var (
	// ErrInvokerNotFound is returned when no invoker serves a model
	ErrInvokerNotFound = errors.New("invoker not found")

	// ErrInvokerAlreadyRegistered is returned when registering a duplicate invoker
	ErrInvokerAlreadyRegistered = errors.New("invoker already registered")
)

// Registry maps model identifiers to the invoker that serves them.
type Registry struct {
	mu            sync.RWMutex
	invokers      map[string]Invoker
	modelInvokers map[string]string // model ID -> invoker name
}

// NewRegistry creates a new invoker registry
func NewRegistry() *Registry {
	return &Registry{
		invokers:      make(map[string]Invoker),
		modelInvokers: make(map[string]string),
	}
}

// Register registers an invoker instance
func (r *Registry) Register(inv Invoker) error {
	if inv == nil {
		return errors.New("invoker cannot be nil")
	}
	name := inv.Name()
	if name == "" {
		return errors.New("invoker name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.invokers[name]; exists {
		return ErrInvokerAlreadyRegistered
	}
	r.invokers[name] = inv
	return nil
}

// Bind routes a model identifier to a registered invoker.
func (r *Registry) Bind(modelID, invokerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.invokers[invokerName]; !exists {
		return ErrInvokerNotFound
	}
	r.modelInvokers[modelID] = invokerName
	return nil
}

// ForModel returns the invoker serving the given model.
func (r *Registry) ForModel(modelID string) (Invoker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.modelInvokers[modelID]
	if !ok {
		return nil, ErrInvokerNotFound
	}
	inv, ok := r.invokers[name]
	if !ok {
		return nil, ErrInvokerNotFound
	}
	return inv, nil
}

// ListInvokers returns all registered invoker names
func (r *Registry) ListInvokers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.invokers))
	for name := range r.invokers {
		names = append(names, name)
	}
	return names
}
