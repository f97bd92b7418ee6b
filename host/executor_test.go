package host

import (
	"context"
	stdErrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/domain/errors"
	"github.com/reglet-dev/luabridge/internal/testutil"
)

func TestNewExecutor(t *testing.T) {
	ctx := context.Background()
	e, err := NewExecutor(ctx, WithScriptSource("x.lua", []byte(helloScript)), WithSlots(3), WithAsync(8))
	require.NoError(t, err)
	require.NotNil(t, e)

	assert.Equal(t, 3, e.Slots())
	assert.Equal(t, 8, e.Async())
	assert.True(t, e.Streaming())
	for i := 0; i < 3; i++ {
		require.NotNil(t, e.Slot(i))
		assert.Equal(t, i, e.Slot(i).ID())
	}
	assert.Nil(t, e.Slot(3))
	assert.Nil(t, e.Slot(-1))

	assert.NoError(t, e.Close(ctx))
}

func TestNewExecutor_ScriptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.lua")
	require.NoError(t, os.WriteFile(path, []byte(helloScript), 0o600))

	e, err := NewExecutor(context.Background(), WithScriptFile(path))
	require.NoError(t, err)
	defer func() { _ = e.Close(context.Background()) }()
	assert.Equal(t, 1, e.Slots())
}

func TestNewExecutor_LoadFailures(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		phase  bool
		target error
	}{
		{name: "no script"},
		{name: "missing file", opts: []Option{WithScriptFile(filepath.Join(t.TempDir(), "absent.lua"))}, target: os.ErrNotExist},
		{name: "syntax error", opts: []Option{WithScriptSource("bad.lua", []byte("return function("))}, phase: true},
		{name: "runtime error", opts: []Option{WithScriptSource("bad.lua", []byte(`error("at load")`))}, phase: true},
		{name: "no handler", opts: []Option{WithScriptSource("bad.lua", []byte(`return 42`))}, phase: true, target: ErrNoHandler},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := NewExecutor(context.Background(), tc.opts...)
			require.Error(t, err)
			assert.Nil(t, e)
			if tc.phase {
				var scriptErr *errors.ScriptError
				require.ErrorAs(t, err, &scriptErr)
				assert.Equal(t, "load", scriptErr.Phase)
			}
			if tc.target != nil {
				assert.True(t, stdErrors.Is(err, tc.target), err.Error())
			}
		})
	}
}

func TestNewExecutor_GlobalRunFallback(t *testing.T) {
	e := newTestExecutor(t, `
function run(env)
	return "200 OK", {}, coroutine.wrap(function() coroutine.yield("from run") end)
end`)
	conn := testutil.NewMemConn("")
	_, err := run(t, e, newTestRequest(t, conn, "PATH_INFO", "/"))
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n\r\nfrom run", conn.Out.String())
}

func TestNewExecutor_ReturnedHandlerWins(t *testing.T) {
	e := newTestExecutor(t, `
function run(env) return "500 Wrong", {}, nil end
return function(env) return "200 Right", {}, nil end`)
	conn := testutil.NewMemConn("")
	_, err := run(t, e, newTestRequest(t, conn, "PATH_INFO", "/"))
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 Right\r\n\r\n", conn.Out.String())
}

func TestNewExecutor_SlotsAreIsolated(t *testing.T) {
	e := newTestExecutor(t, `
local hits = 0
return function(env)
	hits = hits + 1
	return "200 OK", {}, coroutine.wrap(function() coroutine.yield(tostring(hits)) end)
end`, WithSlots(2))

	body := func(slot int) string {
		conn := testutil.NewMemConn("")
		raw := testutil.EncodeVars(t, "PATH_INFO", "/")
		_, err := run(t, e, NewRequest(conn, len(raw), raw, WithSlot(slot)))
		require.NoError(t, err)
		return conn.Out.String()[len("HTTP/1.1 200 OK\r\n\r\n"):]
	}

	assert.Equal(t, "1", body(0))
	assert.Equal(t, "2", body(0))
	assert.Equal(t, "1", body(1))
}

type recordingAccess struct{ records []entities.AccessRecord }

func (r *recordingAccess) LogRequest(rec entities.AccessRecord) { r.records = append(r.records, rec) }

func TestExecutor_AfterRequest(t *testing.T) {
	access := &recordingAccess{}
	e := newTestExecutor(t, helloScript, WithAccessLog(access))

	req := newTestRequest(t, testutil.NewMemConn(""), "REQUEST_METHOD", "GET", "REQUEST_URI", "/x", "REMOTE_ADDR", "10.0.0.1")
	_, err := run(t, e, req)
	require.NoError(t, err)
	e.AfterRequest(req)

	require.Len(t, access.records, 1)
	rec := access.records[0]
	assert.Equal(t, req.ID(), rec.RequestID)
	assert.Equal(t, "GET", rec.Method)
	assert.Equal(t, "/x", rec.URI)
	assert.Equal(t, "10.0.0.1", rec.RemoteAddr)
	assert.Equal(t, "HTTP/1.1", rec.Protocol)
	assert.Equal(t, 200, rec.Status)
	assert.Equal(t, int64(2), rec.ResponseSize)
	assert.Nil(t, rec.Error)
	assert.False(t, rec.End.Before(rec.Start))
}

func TestExecutor_AfterRequestWithoutLogger(t *testing.T) {
	e := newTestExecutor(t, helloScript)
	req := newTestRequest(t, testutil.NewMemConn(""), "PATH_INFO", "/")
	_, err := run(t, e, req)
	require.NoError(t, err)
	assert.NotPanics(t, func() { e.AfterRequest(req) })
}
