// Package tool declares the Tool contract and a thread-safe Registry,
// generalized from the teacher's ai/model/chat/tool package (Definition +
// Registry + Builder) to the JSON-schema tool declarations the LLM gateway
// forwards to each tier.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Definition is the LLM-facing tool declaration.
type Definition struct {
	Name        string
	Description string
	// ParametersSchema is a JSON Schema object describing the tool's input.
	ParametersSchema map[string]any
}

// Context carries per-turn state available to a tool during Call: the
// authenticated user id (or domain.AnonymousUserID) and the session id, so
// tools like database_query can scope queries without threading extra
// parameters through every call site.
type Context struct {
	context.Context
	UserID    string
	SessionID string
}

// Tool is a single callable capability. Call never returns a Go error for
// expected failure modes (unavailable backend, bad input); per spec §4.6
// every tool instead returns a string describing the failure so the model
// can react to it. Call only returns an error for calls aborted by ctx
// cancellation, or, for a Func, when its Handler is nil.
type Tool interface {
	Definition() Definition
	Call(ctx Context, argsJSON string) (string, error)
}

// Func adapts a plain function to the Tool interface.
type Func struct {
	Def     Definition
	Handler func(ctx Context, argsJSON string) (string, error)
}

func (f Func) Definition() Definition { return f.Def }

func (f Func) Call(ctx Context, argsJSON string) (string, error) {
	if f.Handler == nil {
		return "", fmt.Errorf("tool %s: handler is nil", f.Def.Name)
	}
	return f.Handler(ctx, argsJSON)
}

// Registry is a thread-safe, static-at-startup mapping from tool name to
// Tool, mirroring the teacher's Registry (Register/Find/All plus Size,
// generalized to this package's Tool interface).
type Registry struct {
	mu    sync.RWMutex
	store map[string]Tool
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{store: make(map[string]Tool)}
}

// Register adds tools to the registry, keyed by name. Duplicate names are
// rejected rather than silently overwritten, since tool identity here
// governs dispatch correctness in the orchestrator's tool loop.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		if t == nil {
			continue
		}
		name := t.Definition().Name
		if name == "" {
			return errors.New("tool: definition name cannot be empty")
		}
		if _, exists := r.store[name]; exists {
			return fmt.Errorf("tool: %q already registered", name)
		}
		r.store[name] = t
	}
	return nil
}

// Find retrieves a tool by name.
func (r *Registry) Find(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.store[name]
	return t, ok
}

// All returns every registered tool's Definition, in the shape the gateway
// forwards verbatim to the current tier when enable_tools=true.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.store))
	for _, t := range r.store {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Size returns the number of registered tools.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store)
}
