package host

import (
	"os"

	"go.uber.org/zap"

	"github.com/reglet-dev/luabridge/domain/ports"
	"github.com/reglet-dev/luabridge/hostfuncs"
)

// Option defines a functional option for configuring the Executor.
type Option func(*Executor)

// WithHostFunctions configures the executor with the capability registry exported to scripts.
func WithHostFunctions(registry *hostfuncs.HandlerRegistry) Option {
	return func(e *Executor) {
		e.registry = registry
	}
}

// WithSlots sets the number of execution slots. Values below 1 are ignored.
func WithSlots(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.numSlots = n
		}
	}
}

// WithAsync sets how many requests one slot may multiplex. Above 1, body
// streaming suspends after every chunk.
func WithAsync(n int) Option {
	return func(e *Executor) {
		e.async = n
	}
}

// WithScriptFile loads the handler script from path.
func WithScriptFile(path string) Option {
	return func(e *Executor) {
		e.script = Script{Name: path, load: func() ([]byte, error) { return os.ReadFile(path) }}
	}
}

// WithScriptSource uses src as the handler script. name appears in error messages.
func WithScriptSource(name string, src []byte) Option {
	return func(e *Executor) {
		e.script = Script{Name: name, load: func() ([]byte, error) { return src, nil }}
	}
}

// WithCollector replaces the post-request hook. Passing nil disables it.
func WithCollector(c Collector) Option {
	return func(e *Executor) {
		if c == nil {
			c = NoCollector{}
		}
		e.collector = c
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithAccessLog enables per-request logging in AfterRequest.
func WithAccessLog(a ports.AccessLogger) Option {
	return func(e *Executor) {
		e.access = a
	}
}

// WithVarsParser replaces the request-variable parser.
func WithVarsParser(p ports.VarsParser) Option {
	return func(e *Executor) {
		if p != nil {
			e.parser = p
		}
	}
}
