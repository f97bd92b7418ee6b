package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/reglet-dev/luabridge/domain/entities"
)

func TestNewLogger_FileAndConsole(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, err := NewLogger("bridge", WithDir(dir), WithConsole(&console))
	require.NoError(t, err)

	logger.Info("started", zap.Int("slots", 4))
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(console.Bytes()), &entry))
	assert.Equal(t, "started", entry["msg"])
	assert.Equal(t, "bridge", entry["logger"])
	assert.EqualValues(t, 4, entry["slots"])

	data, err := os.ReadFile(filepath.Join(dir, "bridge.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"started"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewLogger_Level(t *testing.T) {
	var console bytes.Buffer
	logger, err := NewLogger("dbg", WithDir(""), WithConsole(&console), WithLevel(zap.DebugLevel))
	require.NoError(t, err)

	logger.Debug("visible")
	assert.Contains(t, console.String(), "visible")
}

func TestNewLogger_NoSinks(t *testing.T) {
	logger, err := NewLogger("none", WithDir(""), WithConsole(nil))
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestLineLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLineLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.LogLine("[- uWSGI - x] line\n")
		}()
	}
	wg.Wait()
	require.NoError(t, l.Sync())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 10)
	for _, line := range lines {
		assert.Equal(t, "[- uWSGI - x] line", line)
	}
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	access := NewAccessLog(zap.New(core))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	access.LogRequest(entities.AccessRecord{
		Start:        start,
		End:          start.Add(3 * time.Millisecond),
		RequestID:    "abc",
		Protocol:     "HTTP/1.1",
		Method:       "GET",
		URI:          "/",
		Status:       200,
		ResponseSize: 2,
	})
	access.LogRequest(entities.AccessRecord{
		Start: start,
		End:   start,
		Error: &entities.ErrorDetail{Message: "boom", Type: "script", Code: "body"},
	})

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "abc", first["requestId"])
	assert.EqualValues(t, 200, first["status"])
	assert.Equal(t, 3*time.Millisecond, first["lat"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, "body", entries[1].ContextMap()["errorReason"])
}

type countingAccess struct{ n int }

func (c *countingAccess) LogRequest(entities.AccessRecord) { c.n++ }

func TestMultiAccessLogger(t *testing.T) {
	a, b := &countingAccess{}, &countingAccess{}
	MultiAccessLogger{a, nil, b}.LogRequest(entities.AccessRecord{})
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}
