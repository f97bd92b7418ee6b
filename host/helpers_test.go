package host

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/luabridge/hostfuncs"
	"github.com/reglet-dev/luabridge/infrastructure/cache"
	"github.com/reglet-dev/luabridge/internal/testutil"
)

// brokenConn fails every write.
type brokenConn struct{}

func (brokenConn) Read([]byte) (int, error)  { return 0, stdErrors.New("closed") }
func (brokenConn) Write([]byte) (int, error) { return 0, stdErrors.New("broken pipe") }

type countingCollector struct{ n int }

func (c *countingCollector) Collect() { c.n++ }

func newTestExecutor(t *testing.T, script string, opts ...Option) *Executor {
	t.Helper()
	reg, err := hostfuncs.NewRegistry(
		hostfuncs.WithBundle(hostfuncs.BridgeBundle(hostfuncs.BridgeDeps{
			Cache:  cache.NewMemoryStore(),
			Logger: &testutil.LineRecorder{},
		})),
		hostfuncs.WithMiddleware(hostfuncs.PanicRecoveryMiddleware()),
	)
	require.NoError(t, err)

	base := []Option{
		WithScriptSource("test.lua", []byte(script)),
		WithHostFunctions(reg),
		WithCollector(nil),
	}
	e, err := NewExecutor(context.Background(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func newTestRequest(t *testing.T, conn *testutil.MemConn, pairs ...string) *Request {
	raw := testutil.EncodeVars(t, pairs...)
	return NewRequest(conn, len(raw), raw, WithDescriptor(9))
}

// run drives req to completion and returns how many steps it took.
func run(t *testing.T, e *Executor, req *Request) (int, error) {
	t.Helper()
	steps := 0
	for {
		steps++
		out, err := e.Handle(context.Background(), req)
		if out == OutcomeDone {
			return steps, err
		}
		require.NoError(t, err)
		require.Equal(t, StateSuspended, req.State())
		require.Less(t, steps, 10000, "request never finished")
	}
}
