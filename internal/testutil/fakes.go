package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/luabridge/wireformat"
)

// MemConn is an in-memory request socket: reads drain In, writes land in Out.
type MemConn struct {
	In  *bytes.Reader
	Out bytes.Buffer
}

// NewMemConn returns a MemConn whose request body is body.
func NewMemConn(body string) *MemConn {
	return &MemConn{In: bytes.NewReader([]byte(body))}
}

func (c *MemConn) Read(p []byte) (int, error)  { return c.In.Read(p) }
func (c *MemConn) Write(p []byte) (int, error) { return c.Out.Write(p) }

// LineRecorder is a ports.ScriptLogger keeping every line in memory.
type LineRecorder struct {
	mu    sync.Mutex
	lines []string
}

// LogLine implements ports.ScriptLogger.
func (r *LineRecorder) LogLine(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

// Lines returns a copy of the recorded lines.
func (r *LineRecorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Text returns the recorded lines concatenated.
func (r *LineRecorder) Text() string {
	return strings.Join(r.Lines(), "")
}

// EncodeVars encodes alternating name/value pairs as a request variable block.
func EncodeVars(t testing.TB, pairs ...string) []byte {
	t.Helper()
	var tbl wireformat.Table
	for i := 0; i+1 < len(pairs); i += 2 {
		tbl = tbl.Add(pairs[i], pairs[i+1])
	}
	raw, err := wireformat.EncodeTable(tbl)
	require.NoError(t, err)
	return raw
}
