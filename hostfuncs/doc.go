// Package hostfuncs provides pure Go implementations of the host services a
// running script may call: logging, request introspection, the key/value
// cache and the remote uwsgi message client.
//
// Nothing in this package depends on the interpreter. Capabilities take a
// typed argument list and return a typed result list; the host package adapts
// them to the script runtime and validates arity through HandlerRegistry.
package hostfuncs
