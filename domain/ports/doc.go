// Package ports defines interfaces for the collaborators the bridge depends on.
// Domain logic depends on these abstractions and infrastructure adapters
// implement them.
package ports
