package host

import (
	"bytes"
	"context"
	stdErrors "errors"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/reglet-dev/luabridge/domain/errors"
	"github.com/reglet-dev/luabridge/hostfuncs"
)

// ErrNoHandler is returned when a script neither returns a function nor defines a global run.
var ErrNoHandler = stdErrors.New("script returned no handler and defines no global run function")

// Script is the handler source every slot loads at startup.
type Script struct {
	load func() ([]byte, error)
	Name string
}

// Slot is one persistent interpreter. It must only be driven from one goroutine at a time.
type Slot struct {
	L        *lua.LState
	handler  *lua.LFunction
	registry *hostfuncs.HandlerRegistry
	ctx      context.Context
	current  *Request
	id       int
	served   atomic.Int64
}

func newSlot(ctx context.Context, id int, name string, src []byte, registry *hostfuncs.HandlerRegistry) (*Slot, error) {
	s := &Slot{
		L:        lua.NewState(),
		registry: registry,
		ctx:      context.Background(),
		id:       id,
	}
	s.exportCapabilities()

	if err := s.load(ctx, name, src); err != nil {
		s.L.Close()
		return nil, &errors.ScriptError{Phase: "load", Slot: id, Err: err}
	}
	return s, nil
}

func (s *Slot) load(ctx context.Context, name string, src []byte) error {
	chunk, err := s.L.Load(bytes.NewReader(src), name)
	if err != nil {
		return err
	}

	s.bind(ctx, nil)
	defer s.unbind()

	s.L.Push(chunk)
	if err := s.L.PCall(0, 1, nil); err != nil {
		return err
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)

	if fn, ok := ret.(*lua.LFunction); ok {
		s.handler = fn
		return nil
	}
	if fn, ok := s.L.GetGlobal("run").(*lua.LFunction); ok {
		s.handler = fn
		return nil
	}
	return ErrNoHandler
}

// ID returns the slot index.
func (s *Slot) ID() int { return s.id }

// Served returns how many requests reached their terminal state on this slot.
// It is safe to call while the slot is running.
func (s *Slot) Served() int64 { return s.served.Load() }

// bind makes req the target of capability calls and lets ctx abort running script code.
func (s *Slot) bind(ctx context.Context, req *Request) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = ctx
	s.current = req
	s.L.SetContext(ctx)
}

func (s *Slot) unbind() {
	s.L.RemoveContext()
	s.ctx = context.Background()
	s.current = nil
}

func (s *Slot) close() {
	s.L.Close()
}
