package host

import "runtime"

// Collector runs after every request reaches its terminal state.
type Collector interface {
	Collect()
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func()

// Collect implements Collector.
func (f CollectorFunc) Collect() { f() }

// GCCollector forces a garbage collection cycle, releasing what the request's script allocated.
type GCCollector struct{}

// Collect implements Collector.
func (GCCollector) Collect() { runtime.GC() }

// NoCollector does nothing.
type NoCollector struct{}

// Collect implements Collector.
func (NoCollector) Collect() {}
