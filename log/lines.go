package log

import (
	"io"
	"sync"

	"go.uber.org/zap/zapcore"
)

// LineLogger writes preformatted script log lines verbatim. It implements ports.ScriptLogger.
type LineLogger struct {
	out zapcore.WriteSyncer
	mu  sync.Mutex
}

// NewLineLogger wraps w. Writes are serialized, so every slot may share one LineLogger.
func NewLineLogger(w io.Writer) *LineLogger {
	return &LineLogger{out: zapcore.AddSync(w)}
}

// LogLine implements ports.ScriptLogger.
func (l *LineLogger) LogLine(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, line)
}

// Sync flushes the underlying writer.
func (l *LineLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Sync()
}
