package host

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/domain/errors"
	"github.com/reglet-dev/luabridge/wireformat"
)

var crlf = []byte("\r\n")

// Handle advances req by one step on its slot.
//
// A fresh request runs the handler, writes the status line and headers and
// streams the body. In streaming mode every body chunk ends the step with
// OutcomeAgain and the request stays suspended; calling Handle again writes
// the next chunk. OutcomeDone means the request is terminal. The returned
// error, if any, is also kept on the request.
//
// The context of the first step governs the whole request: coroutines the
// script creates derive from it and are cancelled once the request is terminal.
func (e *Executor) Handle(ctx context.Context, req *Request) (Outcome, error) {
	if req.state == StateTerminal {
		return OutcomeDone, req.err
	}
	s := e.Slot(req.slot)
	if s == nil {
		req.state = StateTerminal
		req.err = fmt.Errorf("request assigned to unknown slot %d", req.slot)
		return OutcomeDone, req.err
	}

	if req.cancel == nil {
		req.ctx, req.cancel = context.WithCancel(ctx)
	}
	s.bind(req.ctx, req)
	defer s.unbind()

	if req.state == StateSuspended {
		req.resumes++
		return e.resume(s, req)
	}
	return e.begin(s, req)
}

func (e *Executor) begin(s *Slot, req *Request) (Outcome, error) {
	L := s.L
	req.baseline = L.GetTop()

	if req.packetSize == 0 {
		e.logger.Warn("invalid request, skipping", zap.String("requestId", req.id))
		return e.finish(s, req, &errors.ProtocolError{Reason: "empty packet"})
	}

	vars, err := e.parser.Parse(req.rawVars)
	if err != nil {
		e.logger.Warn("invalid request, skipping", zap.String("requestId", req.id), zap.Error(err))
		return e.finish(s, req, err)
	}
	req.vars = vars
	if req.protocol == "" {
		req.protocol = DefaultProtocol
		if p, ok := vars.Get(wireformat.VarServerProtocol); ok && p != "" {
			req.protocol = p
		}
	}
	if !req.presetCL {
		req.contentLength = wireformat.ContentLength(vars)
	}
	req.remaining = req.contentLength

	req.table = e.requestTable(s, req)

	L.Push(s.handler)
	L.Push(req.table)
	if err := L.PCall(1, 3, nil); err != nil {
		e.logger.Error(err.Error(), zap.String("requestId", req.id), zap.Int("slot", s.id))
		return e.finish(s, req, &errors.ScriptError{Phase: "handler", Slot: s.id, Err: err})
	}
	status, headers, body := L.Get(-3), L.Get(-2), L.Get(-1)
	L.Pop(3)

	raw := true
	if lua.LVCanConvToString(status) {
		raw = false
		line := lua.LVAsString(status)
		if err := req.write([]byte(req.protocol + " " + line + "\r\n")); err != nil {
			return e.finish(s, req, err)
		}
		req.status = parseStatus(line)
	} else {
		req.status = entities.StatusUnset
	}

	if tbl, ok := headers.(*lua.LTable); ok {
		if err := writeHeaders(req, tbl); err != nil {
			return e.finish(s, req, err)
		}
	}
	if !raw {
		if err := req.write(crlf); err != nil {
			return e.finish(s, req, err)
		}
	}

	if body == lua.LNil {
		return e.finish(s, req, nil)
	}
	req.continuation = body
	return e.stream(s, req)
}

func (e *Executor) resume(s *Slot, req *Request) (Outcome, error) {
	return e.stream(s, req)
}

// stream calls the body continuation. Outside streaming mode it loops until
// the continuation is exhausted; in streaming mode it returns after one chunk.
func (e *Executor) stream(s *Slot, req *Request) (Outcome, error) {
	L := s.L
	for {
		L.Push(req.continuation)
		if err := L.PCall(0, 1, nil); err != nil {
			e.logger.Debug("body continuation stopped", zap.String("requestId", req.id), zap.Error(err))
			return e.finish(s, req, &errors.ScriptError{Phase: "body", Slot: s.id, Err: err})
		}
		chunk := L.Get(-1)
		L.Pop(1)

		str, ok := chunk.(lua.LString)
		if !ok {
			return e.finish(s, req, nil)
		}
		if err := req.write([]byte(str)); err != nil {
			return e.finish(s, req, err)
		}
		req.responseSize += int64(len(str))

		if e.Streaming() {
			req.state = StateSuspended
			return OutcomeAgain, nil
		}
	}
}

// Abort moves a request that will not be stepped again to the terminal state,
// running the same cleanup as every other terminal path. It must be called
// from the goroutine that drives the request's slot. Aborting a terminal
// request only returns its error.
func (e *Executor) Abort(req *Request, err error) error {
	if req.state == StateTerminal {
		return req.err
	}
	s := e.Slot(req.slot)
	if s == nil {
		req.state = StateTerminal
		req.err = err
		if req.cancel != nil {
			req.cancel()
		}
		return err
	}
	// a request that never began keeps the zero baseline, the depth of an idle slot
	_, err = e.finish(s, req, err)
	return err
}

// finish moves req to the terminal state and releases everything the script held for it.
func (e *Executor) finish(s *Slot, req *Request, err error) (Outcome, error) {
	s.L.SetTop(req.baseline)
	req.continuation = nil
	req.table = nil
	req.state = StateTerminal
	req.err = err
	req.end = time.Now()
	if req.cancel != nil {
		req.cancel()
	}
	s.served.Add(1)
	e.collector.Collect()
	return OutcomeDone, err
}

func (e *Executor) requestTable(s *Slot, req *Request) *lua.LTable {
	L := s.L
	tbl := L.CreateTable(0, len(req.vars)+2)
	tbl.RawSetString(wireformat.VarContentType, lua.LString(""))
	for _, v := range req.vars {
		tbl.RawSetString(string(v.Key), lua.LString(v.Value))
	}

	input := L.CreateTable(0, 1)
	input.RawSetString("read", L.NewFunction(func(L *lua.LState) int {
		return e.readInput(L, req)
	}))
	tbl.RawSetString("input", input)
	return tbl
}

// readInput implements input.read([n]) and input:read([n]).
func (e *Executor) readInput(L *lua.LState, req *Request) int {
	if req.contentLength == 0 || req.remaining <= 0 {
		L.Push(lua.LString(""))
		return 1
	}

	argc := L.GetTop()
	first := 1
	if argc >= 1 {
		if _, ok := L.Get(1).(*lua.LTable); ok {
			first = 2
		}
	}

	want := req.remaining
	if argc >= first {
		if n, ok := L.Get(first).(lua.LNumber); ok {
			e.logger.Debug(fmt.Sprintf("requested %d bytes", int64(n)), zap.String("requestId", req.id))
			want = int64(n)
		}
	}
	if want > req.remaining {
		want = req.remaining
	}
	if want <= 0 {
		L.Push(lua.LString(""))
		return 1
	}

	buf := make([]byte, want)
	n, err := io.ReadFull(req.conn, buf)
	req.remaining -= int64(n)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		L.RaiseError("%s", (&errors.IOError{Operation: "read", Fd: req.fd, Err: err}).Error())
		return 0
	}
	L.Push(lua.LString(buf[:n]))
	return 1
}

func writeHeaders(req *Request, headers *lua.LTable) error {
	var err error
	eachPair(headers, func(k, v lua.LValue) bool {
		if !lua.LVCanConvToString(k) {
			return true
		}
		name := lua.LVAsString(k)
		if list, ok := v.(*lua.LTable); ok {
			n := list.Len()
			for i := 1; i <= n && err == nil; i++ {
				if item := list.RawGetInt(i); lua.LVCanConvToString(item) {
					err = req.write([]byte(name + ": " + lua.LVAsString(item) + "\r\n"))
				}
			}
		} else if lua.LVCanConvToString(v) {
			err = req.write([]byte(name + ": " + lua.LVAsString(v) + "\r\n"))
		}
		return err == nil
	})
	return err
}

// parseStatus mirrors atoi over the first three characters of the status line.
func parseStatus(line string) int {
	if len(line) > 3 {
		line = line[:3]
	}
	end := 0
	for end < len(line) && line[end] >= '0' && line[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, _ := strconv.Atoi(line[:end])
	return n
}
