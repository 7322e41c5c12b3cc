package tool

import "context"

// Tool is the capability every agent tool implements: a descriptor for the
// model and an invocation on already-coerced arguments.
type Tool interface {
	Descriptor() Descriptor
	Invoke(ctx context.Context, args Args) (any, error)
}

// Handler is the function bound to a Func tool.
type Handler func(ctx context.Context, args Args) (any, error)

// Func is a Tool backed by a plain function.
type Func struct {
	desc Descriptor
	fn   Handler
}

// NewFunc binds a handler to its descriptor.
func NewFunc(desc Descriptor, fn Handler) *Func {
	return &Func{desc: desc, fn: fn}
}

func (f *Func) Descriptor() Descriptor { return f.desc }

// Invoke runs the handler and returns its result verbatim. Handler errors
// other than ClientError are wrapped as SystemError.
func (f *Func) Invoke(ctx context.Context, args Args) (any, error) {
	res, err := f.fn(ctx, args)
	if err != nil {
		if IsClientError(err) || IsSystemError(err) {
			return nil, err
		}
		return nil, &SystemError{Tool: f.desc.Name, Err: err}
	}
	return res, nil
}
