package host

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/reglet-dev/luabridge/hostfuncs"
	"github.com/reglet-dev/luabridge/wireformat"
)

// exportCapabilities publishes every registered capability in the global uwsgi table.
func (s *Slot) exportCapabilities() {
	funcs := make(map[string]lua.LGFunction)
	if s.registry != nil {
		for _, name := range s.registry.Names() {
			funcs[name] = s.capability(name)
		}
	}
	s.L.RegisterModule("uwsgi", funcs)
}

func (s *Slot) capability(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		args := make(hostfuncs.Args, L.GetTop())
		for i := range args {
			args[i] = fromLua(L.Get(i + 1))
		}

		var info hostfuncs.RequestInfo
		if s.current != nil {
			info = s.current
		}
		res, err := s.registry.Invoke(hostfuncs.NewHostContext(s.ctx, name, info), name, args)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		for _, v := range res {
			L.Push(toLua(L, v))
		}
		return len(res)
	}
}

func fromLua(v lua.LValue) hostfuncs.Value {
	switch lv := v.(type) {
	case lua.LBool:
		return hostfuncs.Bool(bool(lv))
	case lua.LNumber:
		return hostfuncs.Number(float64(lv))
	case lua.LString:
		return hostfuncs.String(string(lv))
	case *lua.LTable:
		return hostfuncs.Table(snapshotTable(lv))
	default:
		return hostfuncs.Nil()
	}
}

func toLua(L *lua.LState, v hostfuncs.Value) lua.LValue {
	switch v.Kind() {
	case hostfuncs.KindBool:
		b, _ := v.AsBool()
		return lua.LBool(b)
	case hostfuncs.KindNumber:
		n, _ := v.AsNumber()
		return lua.LNumber(n)
	case hostfuncs.KindString:
		s, _ := v.AsString()
		return lua.LString(s)
	case hostfuncs.KindTable:
		t, _ := v.AsTable()
		tbl := L.CreateTable(0, len(t))
		for _, e := range t {
			tbl.RawSetString(string(e.Key), lua.LString(e.Value))
		}
		return tbl
	default:
		return lua.LNil
	}
}

// snapshotTable copies the string-convertible pairs of t in iteration order.
// Encoding then works on a stable view even if the script mutates t later.
func snapshotTable(t *lua.LTable) wireformat.Table {
	var out wireformat.Table
	eachPair(t, func(k, v lua.LValue) bool {
		if lua.LVCanConvToString(k) && lua.LVCanConvToString(v) {
			out = out.Add(lua.LVAsString(k), lua.LVAsString(v))
		}
		return true
	})
	return out
}

// eachPair walks t like the interpreter's next(): array part first, then
// hash keys in insertion order. fn returns false to stop.
func eachPair(t *lua.LTable, fn func(k, v lua.LValue) bool) {
	k, v := t.Next(lua.LNil)
	for k != lua.LNil {
		if !fn(k, v) {
			return
		}
		k, v = t.Next(k)
	}
}
