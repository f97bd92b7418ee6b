package host

import (
	"context"
	stdErrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/reglet-dev/luabridge/domain/ports"
	"github.com/reglet-dev/luabridge/hostfuncs"
	"github.com/reglet-dev/luabridge/wireformat"
)

// Executor owns the slot arena and drives requests through the state machine.
type Executor struct {
	registry  *hostfuncs.HandlerRegistry
	parser    ports.VarsParser
	access    ports.AccessLogger
	collector Collector
	logger    *zap.Logger
	script    Script
	slots     []*Slot
	numSlots  int
	async     int
}

// NewExecutor creates every slot and loads the script into each of them.
// A script that fails to load or exposes no handler aborts construction.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	e := &Executor{
		parser:    ports.VarsParserFunc(wireformat.ParseVars),
		collector: GCCollector{},
		logger:    zap.NewNop(),
		numSlots:  1,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.script.load == nil {
		return nil, stdErrors.New("no script configured")
	}
	if e.registry == nil {
		reg, err := hostfuncs.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("failed to create default registry: %w", err)
		}
		e.registry = reg
	}

	src, err := e.script.load()
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", e.script.Name, err)
	}

	e.logger.Info("initializing Lua environment",
		zap.String("script", e.script.Name),
		zap.Int("slots", e.numSlots),
		zap.Int("async", e.async))

	e.slots = make([]*Slot, e.numSlots)
	for i := range e.slots {
		s, err := newSlot(ctx, i, e.script.Name, src, e.registry)
		if err != nil {
			e.closeSlots()
			return nil, err
		}
		e.slots[i] = s
	}
	return e, nil
}

// Slots returns the number of execution slots.
func (e *Executor) Slots() int { return len(e.slots) }

// Slot returns the slot with index i, or nil when out of range.
func (e *Executor) Slot(i int) *Slot {
	if i < 0 || i >= len(e.slots) {
		return nil
	}
	return e.slots[i]
}

// Async returns the configured per-slot request multiplexing.
func (e *Executor) Async() int { return e.async }

// Streaming reports whether body streaming suspends after every chunk.
func (e *Executor) Streaming() bool { return e.async > 1 }

// AfterRequest hands the finished request to the access logger, if one is configured.
func (e *Executor) AfterRequest(req *Request) {
	if e.access == nil {
		return
	}
	e.access.LogRequest(req.Record())
}

// Close releases every slot. The executor must not be used afterwards.
func (e *Executor) Close(_ context.Context) error {
	e.closeSlots()
	return nil
}

func (e *Executor) closeSlots() {
	for i, s := range e.slots {
		if s != nil {
			s.close()
			e.slots[i] = nil
		}
	}
}
