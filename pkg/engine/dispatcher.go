package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mercator-hq/verdict/pkg/facts"
)

// Dispatcher executes actions on behalf of the engine.
type Dispatcher interface {
	// Dispatch runs the action against fc. Failures are *ActionError values
	// of kind UnknownAction or HandlerFailed.
	Dispatch(ctx context.Context, action *ActionSpec, fc *facts.Context) error
}

// Handler implements one action type. Handlers may mutate fc and may signal
// external effects; they should not block.
type Handler interface {
	Handle(ctx context.Context, action *ActionSpec, fc *facts.Context) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, action *ActionSpec, fc *facts.Context) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, action *ActionSpec, fc *facts.Context) error {
	return f(ctx, action, fc)
}

// Registry is a name-keyed Dispatcher. New action types are added by
// registering handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for actionType. Registering the same type twice
// fails with ErrHandlerExists.
func (r *Registry) Register(actionType string, h Handler) error {
	if actionType == "" {
		return fmt.Errorf("action type is empty")
	}
	if h == nil {
		return fmt.Errorf("handler for %q is nil", actionType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[actionType]; exists {
		return fmt.Errorf("%w: %q", ErrHandlerExists, actionType)
	}
	r.handlers[actionType] = h
	return nil
}

// RegisterFunc is Register for a plain function.
func (r *Registry) RegisterFunc(actionType string, f func(ctx context.Context, action *ActionSpec, fc *facts.Context) error) error {
	return r.Register(actionType, HandlerFunc(f))
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(actionType string, h Handler) {
	if err := r.Register(actionType, h); err != nil {
		panic(err)
	}
}

// Remove unregisters actionType and reports whether it was present.
func (r *Registry) Remove(actionType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.handlers[actionType]
	delete(r.handlers, actionType)
	return ok
}

// Has reports whether a handler is registered for actionType.
func (r *Registry) Has(actionType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.handlers[actionType]
	return ok
}

// Names returns the registered action types in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch looks up the handler for action.Type and runs it.
func (r *Registry) Dispatch(ctx context.Context, action *ActionSpec, fc *facts.Context) error {
	r.mu.RLock()
	h, ok := r.handlers[action.Type]
	r.mu.RUnlock()

	if !ok {
		return &ActionError{Kind: UnknownAction, ActionType: action.Type}
	}
	if err := h.Handle(ctx, action, fc); err != nil {
		return &ActionError{Kind: HandlerFailed, ActionType: action.Type, Cause: err}
	}
	return nil
}
