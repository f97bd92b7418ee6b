package hostfuncs

import (
	"context"
	"fmt"
	"sort"

	"github.com/reglet-dev/luabridge/domain/errors"
)

// HandlerRegistry is an immutable collection of named capabilities.
// Once created via NewRegistry, capabilities cannot be added or removed,
// so lookups need no locking while scripts run.
type HandlerRegistry struct {
	capabilities map[string]Capability
	names        []string // sorted for consistent iteration
	middleware   []Middleware
}

type registryBuilder struct {
	capabilities map[string]Capability
	middleware   []Middleware
	errors       []error
}

// NewRegistry creates an immutable HandlerRegistry with the given options.
// Returns an error if any capability name is registered twice.
//
// Example usage:
//
//	registry, err := NewRegistry(
//	    WithMiddleware(PanicRecoveryMiddleware()),
//	    WithBundle(BridgeBundle(deps)),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{
		capabilities: make(map[string]Capability),
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	names := make([]string, 0, len(b.capabilities))
	for name := range b.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)

	// first middleware wraps outermost
	wrapped := make(map[string]Capability, len(b.capabilities))
	for name, c := range b.capabilities {
		h := c.Handler
		for i := len(b.middleware) - 1; i >= 0; i-- {
			h = b.middleware[i](h)
		}
		c.Handler = h
		wrapped[name] = c
	}

	return &HandlerRegistry{
		capabilities: wrapped,
		names:        names,
		middleware:   b.middleware,
	}, nil
}

// Invoke dispatches a capability call by name after checking its arity.
func (r *HandlerRegistry) Invoke(ctx context.Context, name string, args Args) (Results, error) {
	c, ok := r.capabilities[name]
	if !ok {
		return nil, fmt.Errorf("unknown host function: %s", name)
	}
	if len(args) < c.MinArgs || len(args) > c.MaxArgs {
		return nil, &errors.ArityError{Function: name, Min: c.MinArgs, Max: c.MaxArgs, Got: len(args)}
	}

	req := HostContextFrom(ctx, name).Request()
	return c.Handler(NewHostContext(ctx, name, req), args)
}

// Names returns a sorted list of all registered capability names.
func (r *HandlerRegistry) Names() []string {
	result := make([]string, len(r.names))
	copy(result, r.names)
	return result
}

func (b *registryBuilder) add(c Capability) error {
	if c.Name == "" {
		return fmt.Errorf("capability name cannot be empty")
	}
	if c.Handler == nil {
		return fmt.Errorf("capability %q has no handler", c.Name)
	}
	if c.MinArgs < 0 || c.MaxArgs < c.MinArgs {
		return fmt.Errorf("capability %q has invalid arity %d..%d", c.Name, c.MinArgs, c.MaxArgs)
	}
	if _, exists := b.capabilities[c.Name]; exists {
		return fmt.Errorf("duplicate capability name: %q", c.Name)
	}
	b.capabilities[c.Name] = c
	return nil
}

// WithCapability registers a single capability.
func WithCapability(c Capability) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.add(c); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware adds middleware to the registry.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
