package serverfx

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/infrastructure/cache"
	"github.com/reglet-dev/luabridge/server"
	"github.com/reglet-dev/luabridge/wireformat"
)

const script = `
return function(env)
	uwsgi.cache_set("last", env.REQUEST_URI)
	return "200 OK", {["Content-Type"] = "text/plain"}, coroutine.wrap(function()
		coroutine.yield("hello " .. uwsgi.cache_get("last"))
	end)
end
`

func testConfig(t *testing.T) entities.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "app.lua")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o600))

	cfg := entities.DefaultConfig()
	cfg.Script = path
	cfg.Listen = "127.0.0.1:0"
	cfg.Admin.Listen = "127.0.0.1:0"
	cfg.Slots = 2
	cfg.Logging = true
	cfg.Log.Dir = ""
	cfg.Log.Console = false
	return cfg
}

func request(t *testing.T, addr net.Addr, uri string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	raw, err := wireformat.EncodeTable(wireformat.Table{}.Add("REQUEST_URI", uri))
	require.NoError(t, err)
	require.NoError(t, wireformat.WriteFrame(conn, server.LuaModifier1, 0, raw))

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(out)
}

func TestModule_ServesRequests(t *testing.T) {
	var ep *Endpoints
	app := fxtest.New(t, Module(testConfig(t)), fx.Populate(&ep))
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, ep.UWSGI)
	require.NotNil(t, ep.Admin)

	got := request(t, ep.UWSGI, "/fx")
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nhello /fx", got)

	resp, err := http.Get("http://" + ep.Admin.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `luabridge_capability_calls_total{function="cache_set",result="ok"} 1`)
	assert.Contains(t, string(body), `luabridge_requests_total{class="2xx"} 1`)
}

func TestModule_SQLiteCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Admin.Listen = ""
	cfg.Cache = entities.CacheConfig{
		Driver:        "sqlite",
		Path:          filepath.Join(t.TempDir(), "cache.db"),
		PurgeInterval: entities.Duration(10 * time.Millisecond),
	}

	var ep *Endpoints
	app := fxtest.New(t, Module(cfg), fx.Populate(&ep))
	app.RequireStart()
	defer app.RequireStop()

	assert.Nil(t, ep.Admin)
	assert.Contains(t, request(t, ep.UWSGI, "/persisted"), "hello /persisted")
}

func TestModule_BadScriptFailsStartup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Script = filepath.Join(t.TempDir(), "missing.lua")

	app := fx.New(Module(cfg), fx.NopLogger)
	assert.Error(t, app.Err())
}

func TestPurgeLoop(t *testing.T) {
	store, err := cache.OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, store.Set(ctx, []byte("short"), []byte("v"), time.Millisecond))
	require.NoError(t, store.Set(ctx, []byte("kept"), []byte("v"), 0))

	core, logs := observer.New(zapcore.DebugLevel)
	done := make(chan struct{})
	go func() {
		defer close(done)
		purgeLoop(ctx, store, 10*time.Millisecond, zap.New(core))
	}()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("purged expired cache entries").Len() > 0
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	entry := logs.FilterMessage("purged expired cache entries").All()[0]
	assert.Equal(t, int64(1), entry.ContextMap()["removed"])

	_, ok, err := store.Get(context.Background(), []byte("kept"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPurgeLoop_DisabledReturnsImmediately(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		purgeLoop(context.Background(), nil, 0, zap.NewNop())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purge loop with zero interval kept running")
	}
}
