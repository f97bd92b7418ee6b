// Package entities provides the core domain entities shared by the bridge
// packages: structured error details and per-request access records.
package entities
