// Package registry binds graph operations to in-process Go handlers.
package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Handler implements one operation. It receives the argument given to
// Execute, or nil for operations fired by transitions and triggers.
type Handler func(ctx context.Context, arg any) error

// Registry manages the available handlers. It implements
// ports.OperationExecutor and is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback ports.OperationExecutor
}

var _ ports.OperationExecutor = (*Registry)(nil)

// NewRegistry creates a new empty registry.
// Operations without a handler go to fallback; with a nil fallback they fail.
func NewRegistry(fallback ports.OperationExecutor) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		fallback: fallback,
	}
}

// Register adds a handler to the registry.
// If a handler with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Names lists the registered operations in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Execute looks up a handler by operation name and runs it.
func (r *Registry) Execute(ctx context.Context, op *domain.Operation, arg any) error {
	r.mu.RLock()
	fn, ok := r.handlers[op.Name()]
	r.mu.RUnlock()

	if !ok {
		if r.fallback != nil {
			return r.fallback.Execute(ctx, op, arg)
		}
		return fmt.Errorf("no handler registered for operation %q", op.Name())
	}
	return fn(ctx, arg)
}
