// Package scripttest provides a test harness for Lua handler scripts.
//
// A Harness loads a script into a real executor wired with the bridge
// capabilities, an in-memory cache and a recording log sink, then drives
// requests over in-memory connections:
//
//	h := scripttest.New(t, script)
//	r := h.Do(t, map[string]string{"REQUEST_URI": "/"}, "")
//	scripttest.AssertStatus(t, r, 200)
package scripttest

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/domain/ports"
	"github.com/reglet-dev/luabridge/host"
	"github.com/reglet-dev/luabridge/hostfuncs"
	"github.com/reglet-dev/luabridge/infrastructure/cache"
	"github.com/reglet-dev/luabridge/internal/testutil"
)

// Header is one response header line.
type Header struct {
	Name  string
	Value string
}

// Response is what a script wrote for one request.
type Response struct {
	Err        error
	Protocol   string
	StatusLine string
	Raw        []byte
	Body       []byte
	Headers    []Header
	Status     int
	Steps      int
}

// Header returns the first value of the named header, matched case-insensitively.
func (r *Response) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// TestCase defines one request against a script.
type TestCase struct {
	Name     string
	Vars     map[string]string
	Body     string
	Validate func(t *testing.T, r *Response)
}

// Option configures a Harness.
type Option func(*harnessConfig)

type harnessConfig struct {
	cache    ports.Cache
	hostOpts []host.Option
	msgOpts  []hostfuncs.MessageOption
}

// WithCache replaces the in-memory cache.
func WithCache(c ports.Cache) Option {
	return func(cfg *harnessConfig) {
		cfg.cache = c
	}
}

// WithExecutorOptions passes extra options to the executor, for example host.WithAsync.
func WithExecutorOptions(opts ...host.Option) Option {
	return func(cfg *harnessConfig) {
		cfg.hostOpts = append(cfg.hostOpts, opts...)
	}
}

// WithMessageOptions configures uwsgi.send_message.
func WithMessageOptions(opts ...hostfuncs.MessageOption) Option {
	return func(cfg *harnessConfig) {
		cfg.msgOpts = append(cfg.msgOpts, opts...)
	}
}

// Harness runs requests against one loaded script.
type Harness struct {
	exec  *host.Executor
	cache ports.Cache
	log   *testutil.LineRecorder
}

// New loads script and fails the test if it does not load.
func New(t *testing.T, script string, opts ...Option) *Harness {
	t.Helper()
	cfg := harnessConfig{cache: cache.NewMemoryStore()}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Harness{cache: cfg.cache, log: &testutil.LineRecorder{}}
	reg, err := hostfuncs.NewRegistry(
		hostfuncs.WithMiddleware(hostfuncs.PanicRecoveryMiddleware()),
		hostfuncs.WithBundle(hostfuncs.BridgeBundle(hostfuncs.BridgeDeps{
			Cache:          cfg.cache,
			Logger:         h.log,
			MessageOptions: cfg.msgOpts,
		})),
	)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	base := []host.Option{
		host.WithScriptSource("scripttest.lua", []byte(script)),
		host.WithHostFunctions(reg),
		host.WithCollector(nil),
	}
	h.exec, err = host.NewExecutor(context.Background(), append(base, cfg.hostOpts...)...)
	if err != nil {
		t.Fatalf("failed to load script: %v", err)
	}
	t.Cleanup(func() { _ = h.exec.Close(context.Background()) })
	return h
}

// Do runs one request to completion. Variables are sent sorted by name.
func (h *Harness) Do(t *testing.T, vars map[string]string, body string) *Response {
	t.Helper()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, name, vars[name])
	}

	raw := testutil.EncodeVars(t, pairs...)
	conn := testutil.NewMemConn(body)
	req := host.NewRequest(conn, len(raw), raw)

	r := &Response{}
	for {
		r.Steps++
		outcome, err := h.exec.Handle(context.Background(), req)
		if outcome == host.OutcomeDone {
			r.Err = err
			break
		}
		if r.Steps > 1_000_000 {
			t.Fatalf("request did not finish after %d steps", r.Steps)
		}
	}

	r.Raw = conn.Out.Bytes()
	r.Status = req.Status()
	r.Protocol = req.Protocol()
	parse(r, req.Status() == entities.StatusUnset)
	return r
}

// Logs returns the lines the script wrote with uwsgi.log.
func (h *Harness) Logs() []string { return h.log.Lines() }

// Cache returns the cache behind cache_get and cache_set.
func (h *Harness) Cache() ports.Cache { return h.cache }

// Run executes every test case as a subtest against one harness.
func Run(t *testing.T, script string, tests []TestCase, opts ...Option) {
	t.Helper()
	h := New(t, script, opts...)
	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			r := h.Do(t, tc.Vars, tc.Body)
			if tc.Validate != nil {
				tc.Validate(t, r)
			}
		})
	}
}

// parse splits r.Raw into status line, headers and body. In raw mode no
// status line is written, so everything up to the first blank line is headers.
func parse(r *Response, raw bool) {
	rest := r.Raw
	if !raw {
		line, tail, ok := bytes.Cut(rest, []byte("\r\n"))
		if !ok {
			return
		}
		r.StatusLine = strings.TrimPrefix(string(line), r.Protocol+" ")
		rest = tail
	}
	for len(rest) > 0 {
		line, tail, ok := bytes.Cut(rest, []byte("\r\n"))
		if !ok {
			break
		}
		if len(line) == 0 {
			rest = tail
			break
		}
		name, value, _ := strings.Cut(string(line), ": ")
		r.Headers = append(r.Headers, Header{Name: name, Value: value})
		rest = tail
	}
	r.Body = rest
}

// AssertStatus asserts the numeric status.
func AssertStatus(t *testing.T, r *Response, status int) {
	t.Helper()
	if r.Err != nil {
		t.Errorf("request failed: %v", r.Err)
		return
	}
	if r.Status != status {
		t.Errorf("expected status %d, got %d (%q)", status, r.Status, r.StatusLine)
	}
}

// AssertHeader asserts the named header has value.
func AssertHeader(t *testing.T, r *Response, name, value string) {
	t.Helper()
	got, ok := r.Header(name)
	if !ok {
		t.Errorf("missing header %q", name)
		return
	}
	if got != value {
		t.Errorf("header %q: expected %q, got %q", name, value, got)
	}
}

// AssertBody asserts the response body.
func AssertBody(t *testing.T, r *Response, body string) {
	t.Helper()
	if string(r.Body) != body {
		t.Errorf("expected body %q, got %q", body, r.Body)
	}
}

// AssertFailed asserts the request ended with an error.
func AssertFailed(t *testing.T, r *Response) {
	t.Helper()
	if r.Err == nil {
		t.Errorf("expected the request to fail, status %d", r.Status)
	}
}
