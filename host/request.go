package host

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/domain/errors"
	"github.com/reglet-dev/luabridge/wireformat"
)

// DefaultProtocol is used in the status line when the request carries no SERVER_PROTOCOL.
const DefaultProtocol = "HTTP/1.1"

// State is the position of a request in the execution state machine.
type State uint8

const (
	// StateFresh requests have not been handed to the script yet.
	StateFresh State = iota
	// StateSuspended requests are streaming a body and wait to be resumed.
	StateSuspended
	// StateTerminal requests are finished; their connection may be closed.
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateSuspended:
		return "suspended"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome tells the caller of Handle whether the request needs another step.
type Outcome uint8

const (
	OutcomeDone Outcome = iota
	OutcomeAgain
)

func (o Outcome) String() string {
	if o == OutcomeAgain {
		return "again"
	}
	return "done"
}

// Request is the per-request context driven by Executor.Handle.
// It implements hostfuncs.RequestInfo for the capabilities the script calls.
type Request struct {
	conn io.ReadWriter

	// ctx scopes every interpreter thread the request starts; cancel runs at the terminal state
	ctx    context.Context
	cancel context.CancelFunc

	start time.Time
	end   time.Time
	err   error

	vars    wireformat.Table
	rawVars []byte

	// script-side references, released at the terminal state
	continuation lua.LValue
	table        *lua.LTable

	id         string
	protocol   string
	remoteAddr string

	contentLength int64
	remaining     int64
	responseSize  int64

	packetSize int
	fd         int
	status     int
	slot       int
	resumes    int
	baseline   int

	state    State
	presetCL bool
}

// RequestOption configures a Request.
type RequestOption func(*Request)

// WithDescriptor sets the descriptor number scripts see through req_fd.
func WithDescriptor(fd int) RequestOption {
	return func(r *Request) {
		r.fd = fd
	}
}

// WithSlot assigns the execution slot that will run the request.
func WithSlot(slot int) RequestOption {
	return func(r *Request) {
		r.slot = slot
	}
}

// WithProtocol presets the protocol used in the status line.
func WithProtocol(p string) RequestOption {
	return func(r *Request) {
		r.protocol = p
	}
}

// WithContentLength presets the content length instead of reading CONTENT_LENGTH.
func WithContentLength(n int64) RequestOption {
	return func(r *Request) {
		r.contentLength = n
		r.presetCL = true
	}
}

// WithRemoteAddr records the peer address for the access log.
func WithRemoteAddr(addr string) RequestOption {
	return func(r *Request) {
		r.remoteAddr = addr
	}
}

// WithStartTime overrides the accept time.
func WithStartTime(t time.Time) RequestOption {
	return func(r *Request) {
		r.start = t
	}
}

// NewRequest creates a fresh request reading and writing on conn.
// packetSize is the size field of the inbound header and rawVars the variable block it announced.
func NewRequest(conn io.ReadWriter, packetSize int, rawVars []byte, opts ...RequestOption) *Request {
	r := &Request{
		conn:       conn,
		packetSize: packetSize,
		rawVars:    rawVars,
		id:         uuid.NewString(),
		fd:         -1,
		status:     entities.StatusUnset,
		state:      StateFresh,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.start.IsZero() {
		r.start = time.Now()
	}
	return r
}

// ContentLength implements hostfuncs.RequestInfo.
func (r *Request) ContentLength() int64 { return r.contentLength }

// Descriptor implements hostfuncs.RequestInfo.
func (r *Request) Descriptor() int { return r.fd }

// Lookup implements hostfuncs.RequestInfo.
func (r *Request) Lookup(fd int) (io.ReadWriter, bool) {
	if fd != r.fd || r.conn == nil {
		return nil, false
	}
	return r.conn, true
}

func (r *Request) ID() string             { return r.id }
func (r *Request) State() State           { return r.state }
func (r *Request) Status() int            { return r.status }
func (r *Request) ResponseSize() int64    { return r.responseSize }
func (r *Request) Protocol() string       { return r.protocol }
func (r *Request) Slot() int              { return r.slot }
func (r *Request) Vars() wireformat.Table { return r.vars }
func (r *Request) Err() error             { return r.err }
func (r *Request) Conn() io.ReadWriter    { return r.conn }
func (r *Request) Resumes() int           { return r.resumes }
func (r *Request) Elapsed() time.Duration { return r.end.Sub(r.start) }
func (r *Request) Start() time.Time       { return r.start }

// Record summarizes the request for the access log.
func (r *Request) Record() entities.AccessRecord {
	rec := entities.AccessRecord{
		Start:        r.start,
		End:          r.end,
		RequestID:    r.id,
		Protocol:     r.protocol,
		RemoteAddr:   r.remoteAddr,
		Status:       r.status,
		ResponseSize: r.responseSize,
		Slot:         r.slot,
		Resumes:      r.resumes,
		Error:        errors.ToErrorDetail(r.err),
	}
	if rec.End.IsZero() {
		rec.End = time.Now()
	}
	rec.Method, _ = r.vars.Get(wireformat.VarRequestMethod)
	rec.URI, _ = r.vars.Get(wireformat.VarRequestURI)
	if rec.RemoteAddr == "" {
		rec.RemoteAddr, _ = r.vars.Get(wireformat.VarRemoteAddr)
	}
	return rec
}

func (r *Request) write(p []byte) error {
	if _, err := r.conn.Write(p); err != nil {
		return &errors.IOError{Operation: "write", Fd: r.fd, Err: err}
	}
	return nil
}
