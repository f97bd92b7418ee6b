package hostfuncs

import (
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reglet-dev/luabridge/domain/ports"
)

// HostFuncBundle is a pre-configured set of related capabilities.
// Bundles allow registering several capabilities at once.
type HostFuncBundle interface {
	Capabilities() []Capability
}

type staticBundle struct {
	capabilities []Capability
}

func (b *staticBundle) Capabilities() []Capability {
	return b.capabilities
}

type compositeBundle struct {
	bundles []HostFuncBundle
}

func (b *compositeBundle) Capabilities() []Capability {
	var all []Capability
	for _, bundle := range b.bundles {
		all = append(all, bundle.Capabilities()...)
	}
	return all
}

// CombineBundles merges several bundles into one. Name clashes are reported by NewRegistry.
func CombineBundles(bundles ...HostFuncBundle) HostFuncBundle {
	return &compositeBundle{bundles: bundles}
}

// WithBundle registers every capability of a bundle.
func WithBundle(bundle HostFuncBundle) RegistryOption {
	return func(b *registryBuilder) {
		for _, c := range bundle.Capabilities() {
			if err := b.add(c); err != nil {
				b.errors = append(b.errors, err)
			}
		}
	}
}

// logPrefix matches the host's own log lines.
const logPrefix = "[- uWSGI - "

// BridgeDeps are the host services the bridge capabilities reach.
type BridgeDeps struct {
	// Cache backs cache_get and cache_set. Without one, cache_get always yields nil.
	Cache ports.Cache

	// Logger receives lines written with uwsgi.log.
	Logger ports.ScriptLogger

	// Dialer overrides the message client's connection helper.
	Dialer ports.Dialer

	// Diagnostics receives host-side warnings such as cache failures.
	Diagnostics *zap.Logger

	// Clock stamps log lines. Defaults to time.Now.
	Clock func() time.Time

	MessageOptions []MessageOption
}

// BridgeBundle returns the capabilities exported to scripts as the uwsgi table:
// log, cl, req_fd, send_message, cache_get and cache_set, plus the
// content_length and request_descriptor aliases.
func BridgeBundle(deps BridgeDeps) HostFuncBundle {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Diagnostics == nil {
		deps.Diagnostics = zap.NewNop()
	}
	msgOpts := append([]MessageOption(nil), deps.MessageOptions...)
	if deps.Dialer != nil {
		msgOpts = append(msgOpts, WithDialer(deps.Dialer))
	}
	msgOpts = append(msgOpts, WithMessageLogger(deps.Diagnostics))

	b := &bridge{deps: deps, msgOpts: msgOpts}
	return CombineBundles(b.requestBundle(), b.messageBundle(), b.cacheBundle())
}

func (b *bridge) requestBundle() HostFuncBundle {
	return &staticBundle{capabilities: []Capability{
		{Name: "log", MinArgs: 1, MaxArgs: 1, Handler: b.log},
		{Name: "cl", Handler: b.contentLength},
		{Name: "content_length", Handler: b.contentLength},
		{Name: "req_fd", Handler: b.requestDescriptor},
		{Name: "request_descriptor", Handler: b.requestDescriptor},
	}}
}

func (b *bridge) messageBundle() HostFuncBundle {
	return &staticBundle{capabilities: []Capability{
		{Name: "send_message", MinArgs: 1, MaxArgs: 7, Handler: b.sendMessage},
	}}
}

func (b *bridge) cacheBundle() HostFuncBundle {
	return &staticBundle{capabilities: []Capability{
		{Name: "cache_get", MinArgs: 1, MaxArgs: 1, Handler: b.cacheGet},
		{Name: "cache_set", MinArgs: 2, MaxArgs: 3, Handler: b.cacheSet},
	}}
}

type bridge struct {
	deps    BridgeDeps
	msgOpts []MessageOption
}

// FormatLogLine renders a script log line the way the host prints its own messages.
func FormatLogLine(now time.Time, line string) string {
	var sb strings.Builder
	sb.Grow(len(logPrefix) + len(time.ANSIC) + len(line) + 3)
	sb.WriteString(logPrefix)
	sb.WriteString(now.Format(time.ANSIC))
	sb.WriteString("] ")
	sb.WriteString(line)
	if !strings.HasSuffix(line, "\n") {
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (b *bridge) log(_ HostContext, args Args) (Results, error) {
	line, ok := args.Arg(0).AsString()
	if !ok || b.deps.Logger == nil {
		return nil, nil
	}
	b.deps.Logger.LogLine(FormatLogLine(b.deps.Clock(), line))
	return nil, nil
}

func (b *bridge) contentLength(ctx HostContext, _ Args) (Results, error) {
	return Results{Number(float64(ctx.Request().ContentLength()))}, nil
}

func (b *bridge) requestDescriptor(ctx HostContext, _ Args) (Results, error) {
	return Results{Number(float64(ctx.Request().Descriptor()))}, nil
}

func (b *bridge) sendMessage(ctx HostContext, args Args) (Results, error) {
	var target Target
	switch first := args.Arg(0); first.Kind() {
	case KindNumber:
		fd, _ := first.AsNumber()
		rw, ok := ctx.Request().Lookup(int(fd))
		if !ok {
			return Results{Nil()}, nil
		}
		conn, ok := rw.(net.Conn)
		if !ok {
			return Results{Nil()}, nil
		}
		target.Conn = conn
	case KindString:
		target.Address, _ = first.AsString()
	default:
		return Results{Nil()}, nil
	}

	req := SendMessageRequest{
		Target:    target,
		Modifier1: uint8(args.Integer(1, 0)),
		Modifier2: uint8(args.Integer(2, 0)),
	}
	if payload, ok := args.Arg(3).AsTable(); ok {
		req.Payload = payload
	}
	if len(args) > 4 {
		if secs := args.Number(4, 0); secs > 0 {
			req.Timeout = time.Duration(secs * float64(time.Second))
		}
	}
	// the input descriptor is only honored together with its size
	if len(args) == 7 {
		rw, ok := ctx.Request().Lookup(int(args.Integer(5, -1)))
		if ok {
			req.Input = rw
			req.InputSize = args.Integer(6, 0)
		}
	}

	resp := PerformSendMessage(ctx, req, b.msgOpts...)
	if resp.Error != nil {
		b.deps.Diagnostics.Warn("send_message failed",
			zap.String("target", target.String()),
			zap.Error(resp.Error))
		return Results{Nil()}, nil
	}

	res := make(Results, len(resp.Chunks))
	for i, c := range resp.Chunks {
		res[i] = Bytes(c)
	}
	return res, nil
}

func (b *bridge) cacheGet(ctx HostContext, args Args) (Results, error) {
	key, ok := args.Arg(0).AsString()
	if !ok || b.deps.Cache == nil {
		return Results{Nil()}, nil
	}
	value, found, err := b.deps.Cache.Get(ctx, []byte(key))
	if err != nil {
		b.deps.Diagnostics.Warn("cache_get failed", zap.String("key", key), zap.Error(err))
		return Results{Nil()}, nil
	}
	if !found {
		return Results{Nil()}, nil
	}
	return Results{Bytes(value)}, nil
}

func (b *bridge) cacheSet(ctx HostContext, args Args) (Results, error) {
	key, keyOK := args.Arg(0).AsString()
	value, valueOK := args.Arg(1).AsString()
	if !keyOK || !valueOK || b.deps.Cache == nil {
		return Results{Nil()}, nil
	}
	ttl := time.Duration(args.Integer(2, 0)) * time.Second
	if ttl < 0 {
		ttl = 0
	}
	if err := b.deps.Cache.Set(ctx, []byte(key), []byte(value), ttl); err != nil {
		b.deps.Diagnostics.Warn("cache_set failed", zap.String("key", key), zap.Error(err))
	}
	return Results{Nil()}, nil
}
