package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// Registry is an ordered, read-only set of tools. It is safe for concurrent
// use once built.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

// NewRegistry builds a registry in the given order. Duplicate names fail.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools:  make([]Tool, 0, len(tools)),
		byName: make(map[string]Tool, len(tools)),
	}
	for _, t := range tools {
		name := t.Descriptor().Name
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("tool: registry: %w: %q", ErrDuplicateTool, name)
		}
		r.tools = append(r.tools, t)
		r.byName[name] = t
	}
	return r, nil
}

// Use returns a new registry with every tool wrapped by the middlewares.
// The first middleware is the outermost.
func (r *Registry) Use(mws ...Middleware) *Registry {
	out := &Registry{
		tools:  make([]Tool, len(r.tools)),
		byName: make(map[string]Tool, len(r.tools)),
	}
	for i, t := range r.tools {
		for j := len(mws) - 1; j >= 0; j-- {
			t = mws[j](t)
		}
		out.tools[i] = t
		out.byName[t.Descriptor().Name] = t
	}
	return out
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// List returns tool names in registration order.
func (r *Registry) List() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Descriptor().Name
	}
	return names
}

// Descriptors returns every descriptor in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Descriptor()
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.tools) }

// Signatures concatenates every descriptor's JSON signature for the prompt.
func (r *Registry) Signatures() string {
	var b strings.Builder
	for _, t := range r.tools {
		b.WriteString(t.Descriptor().String())
	}
	return b.String()
}

// Definitions returns all tools in OpenAI function-calling format.
func (r *Registry) Definitions() []protocol.ToolDefinition {
	defs := make([]protocol.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		d := t.Descriptor()
		defs = append(defs, protocol.NewToolDefinition(d.Name, d.Description, d.JSONSchema()))
	}
	return defs
}

// Execute resolves, validates and invokes a single call. Panics inside the
// tool are returned as SystemError.
func (r *Registry) Execute(ctx context.Context, call protocol.ToolCall) (res any, err error) {
	t, ok := r.byName[call.Name]
	if !ok {
		return nil, clientErrorf(ErrToolNotFound, "no tool named %q", call.Name)
	}

	valid, err := ValidateArgs(t.Descriptor(), call)
	if err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = &SystemError{Tool: call.Name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return t.Invoke(WithCallID(ctx, call.ID), Args(valid.Arguments))
}

// Result is the outcome of one call in a batch.
type Result struct {
	Call  protocol.ToolCall
	Value any
	Err   error
}

// ExecuteBatch runs calls in order. A failing call never stops its siblings.
func (r *Registry) ExecuteBatch(ctx context.Context, calls []protocol.ToolCall) []Result {
	out := make([]Result, 0, len(calls))
	for _, c := range calls {
		v, err := r.Execute(ctx, c)
		out = append(out, Result{Call: c, Value: v, Err: err})
	}
	return out
}
