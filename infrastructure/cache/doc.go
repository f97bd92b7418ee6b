// Package cache provides the ports.Cache adapters scripts reach through
// cache_get and cache_set: an in-process map and a SQLite-backed store.
//
// Entries expire by TTL. Neither store evicts for capacity.
package cache
