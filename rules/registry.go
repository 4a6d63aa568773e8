package rules

import (
	"context"
	"sync"
)

// Function is a named capability the host exposes to the engine. The
// ENHANCE action and dynamic rule generators look functions up by name;
// the host is responsible for security-reviewing anything registered here.
type Function interface {
	// Invoke runs the function with the given arguments and returns its
	// result. The engine waits for completion before executing the next
	// action in the rule.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// FunctionFunc adapts an ordinary function to the Function interface.
type FunctionFunc func(ctx context.Context, args map[string]any) (any, error)

// Invoke implements Function.
func (f FunctionFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// FunctionRegistry holds the host-supplied functions available to the
// engine, keyed by name.
type FunctionRegistry struct {
	mu  sync.RWMutex
	fns map[string]Function
}

// NewFunctionRegistry creates an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		fns: make(map[string]Function),
	}
}

// Register adds or replaces a function under the given name.
func (r *FunctionRegistry) Register(name string, fn Function) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
}

// RegisterFunc is a convenience wrapper around Register for plain functions.
func (r *FunctionRegistry) RegisterFunc(name string, fn FunctionFunc) {
	r.Register(name, fn)
}

// Lookup returns the function registered under name.
func (r *FunctionRegistry) Lookup(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	return fn, ok
}

// Names returns the registered function names.
func (r *FunctionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	return names
}
