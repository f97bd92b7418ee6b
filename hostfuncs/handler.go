package hostfuncs

import "io"

// Handler implements one capability. Arity has already been validated when it runs.
// A returned error is raised in the script as a runtime error.
type Handler func(ctx HostContext, args Args) (Results, error)

// Capability is a named host function with a fixed arity range.
type Capability struct {
	Handler Handler
	Name    string
	MinArgs int
	MaxArgs int
}

// RequestInfo is the view of the current request that capabilities may use.
type RequestInfo interface {
	// ContentLength returns the declared request body size, 0 if absent.
	ContentLength() int64

	// Descriptor returns the request socket's descriptor number.
	Descriptor() int

	// Lookup resolves a descriptor number the script obtained earlier.
	Lookup(fd int) (io.ReadWriter, bool)
}

// NoRequest is used when a capability runs outside request handling,
// for example while the script is loaded at startup.
type NoRequest struct{}

func (NoRequest) ContentLength() int64             { return 0 }
func (NoRequest) Descriptor() int                  { return -1 }
func (NoRequest) Lookup(int) (io.ReadWriter, bool) { return nil, false }
