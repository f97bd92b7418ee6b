package hostfuncs

import (
	"context"
)

// HostContext wraps a standard context.Context with capability-specific helpers.
// It exposes the invoked function name and the request being served, and lets
// middleware store call-scoped values without polluting the standard context.
type HostContext interface {
	context.Context

	// FunctionName returns the name of the capability being invoked.
	FunctionName() string

	// Request returns the request the calling script is serving.
	Request() RequestInfo

	// SetValue stores a call-scoped value. Unlike context.WithValue,
	// this mutates the existing HostContext.
	SetValue(key, value any)

	// GetValue retrieves a value set by SetValue.
	GetValue(key any) (value any, ok bool)
}

type hostContext struct {
	context.Context
	request  RequestInfo
	values   map[any]any
	funcName string
}

// NewHostContext creates a new HostContext wrapping ctx. A nil request is replaced by NoRequest.
func NewHostContext(ctx context.Context, funcName string, req RequestInfo) HostContext {
	if req == nil {
		req = NoRequest{}
	}
	return &hostContext{
		Context:  ctx,
		funcName: funcName,
		request:  req,
	}
}

func (c *hostContext) FunctionName() string {
	return c.funcName
}

func (c *hostContext) Request() RequestInfo {
	return c.request
}

func (c *hostContext) SetValue(key, value any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = value
}

func (c *hostContext) GetValue(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// HostContextFrom returns ctx itself when it already is a HostContext,
// otherwise a new HostContext with no request.
func HostContextFrom(ctx context.Context, funcName string) HostContext {
	if hc, ok := ctx.(HostContext); ok {
		return hc
	}
	return NewHostContext(ctx, funcName, nil)
}
