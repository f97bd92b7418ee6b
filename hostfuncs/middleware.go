package hostfuncs

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Middleware wraps a Handler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next Handler) Handler

// RegistryOption is a functional option for configuring a HandlerRegistry.
type RegistryOption func(*registryBuilder)

type callStartKey struct{}

// CallStart returns when the current capability call entered the middleware
// chain. The first middleware to ask records the time, so every layer
// measures the same call.
func CallStart(ctx HostContext) time.Time {
	if v, ok := ctx.GetValue(callStartKey{}); ok {
		return v.(time.Time)
	}
	now := time.Now()
	ctx.SetValue(callStartKey{}, now)
	return now
}

// PanicError is returned by PanicRecoveryMiddleware when a capability panicked.
type PanicError struct {
	Function string
	Value    any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("uwsgi.%s panicked: %v", e.Function, e.Value)
}

// PanicRecoveryMiddleware catches panics in capabilities and turns them into
// script-visible errors instead of crashing the host.
func PanicRecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx HostContext, args Args) (res Results, err error) {
			defer func() {
				if r := recover(); r != nil {
					res = nil
					err = &PanicError{Function: ctx.FunctionName(), Value: r}
				}
			}()
			return next(ctx, args)
		}
	}
}

// LoggingMiddleware logs every capability invocation at debug level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx HostContext, args Args) (Results, error) {
			start := CallStart(ctx)
			res, err := next(ctx, args)
			fields := []zap.Field{
				zap.String("function", ctx.FunctionName()),
				zap.Int("args", len(args)),
				zap.Int("results", len(res)),
				zap.Duration("lat", time.Since(start)),
			}
			if err != nil {
				logger.Warn("host function failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("host function completed", fields...)
			}
			return res, err
		}
	}
}
