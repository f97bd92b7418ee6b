package hostfuncs

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/reglet-dev/luabridge/domain/errors"
	"github.com/reglet-dev/luabridge/domain/ports"
	"github.com/reglet-dev/luabridge/wireformat"
)

const (
	// DefaultMessageTimeout applies when a request does not carry its own timeout.
	DefaultMessageTimeout = 4 * time.Second

	// ChunkSize is the largest single read from a remote peer. Each read becomes one chunk.
	ChunkSize = 4096
)

// Target names the remote peer of a message. Either Address or Conn is set.
type Target struct {
	// Conn is an already connected peer. It is borrowed: the client never closes it.
	Conn net.Conn

	// Address is "host:port" or a unix socket path.
	Address string
}

func (t Target) String() string {
	if t.Address != "" {
		return t.Address
	}
	if t.Conn != nil && t.Conn.RemoteAddr() != nil {
		return t.Conn.RemoteAddr().String()
	}
	return "<conn>"
}

// SendMessageRequest describes one request/response exchange with a remote uwsgi peer.
type SendMessageRequest struct {
	// Input, when set, is streamed after the frame. Exactly InputSize bytes are copied.
	Input io.Reader

	Target Target

	// Payload is encoded as the frame body. A nil table sends an empty frame.
	Payload wireformat.Table

	InputSize int64

	// Timeout bounds the dial, the write and every single read. Zero uses the client default.
	Timeout time.Duration

	Modifier1 uint8
	Modifier2 uint8
}

// SendMessageResponse holds the chunks read from the peer, in arrival order.
type SendMessageResponse struct {
	// Error is set when no usable response was received.
	Error error

	Chunks [][]byte

	// Truncated reports that the peer sent more than the configured response limit.
	Truncated bool
}

// MessageObserver is notified once per completed exchange.
type MessageObserver interface {
	ObserveMessage(target string, received int, err error)
}

// MessageOption is a functional option for configuring the message client.
type MessageOption func(*messageConfig)

type messageConfig struct {
	dialer          ports.Dialer
	observer        MessageObserver
	logger          *zap.Logger
	timeout         time.Duration
	maxResponseSize int
	chunkSize       int
}

func defaultMessageConfig() messageConfig {
	return messageConfig{
		dialer:          NetDialer{},
		logger:          zap.NewNop(),
		timeout:         DefaultMessageTimeout,
		maxResponseSize: DefaultMaxResponseSize,
		chunkSize:       ChunkSize,
	}
}

// WithMessageTimeout sets the default timeout for requests that carry none.
func WithMessageTimeout(d time.Duration) MessageOption {
	return func(c *messageConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDialer replaces the connection helper used for address targets.
func WithDialer(d ports.Dialer) MessageOption {
	return func(c *messageConfig) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithMaxResponseSize caps the total bytes kept from one response.
func WithMaxResponseSize(n int) MessageOption {
	return func(c *messageConfig) {
		if n > 0 {
			c.maxResponseSize = n
		}
	}
}

// WithChunkSize sets the read size. Mostly useful in tests.
func WithChunkSize(n int) MessageOption {
	return func(c *messageConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithMessageLogger sets the logger used for timeouts and read failures.
func WithMessageLogger(l *zap.Logger) MessageOption {
	return func(c *messageConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMessageObserver registers an observer, typically a metrics collector.
func WithMessageObserver(o MessageObserver) MessageOption {
	return func(c *messageConfig) {
		c.observer = o
	}
}

// PerformSendMessage connects to the target, sends one framed request and
// collects the response until the peer closes or stops answering.
//
// Example usage from a capability:
//
//	resp := hostfuncs.PerformSendMessage(ctx, hostfuncs.SendMessageRequest{
//	    Target:    hostfuncs.Target{Address: "127.0.0.1:3031"},
//	    Modifier1: 17,
//	    Payload:   wireformat.Table{}.Add("cmd", "ping"),
//	})
func PerformSendMessage(ctx context.Context, req SendMessageRequest, opts ...MessageOption) SendMessageResponse {
	cfg := defaultMessageConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if req.Timeout <= 0 {
		req.Timeout = cfg.timeout
	}

	resp := perform(ctx, req, cfg)
	if cfg.observer != nil {
		received := 0
		for _, c := range resp.Chunks {
			received += len(c)
		}
		cfg.observer.ObserveMessage(req.Target.String(), received, resp.Error)
	}
	return resp
}

func perform(ctx context.Context, req SendMessageRequest, cfg messageConfig) SendMessageResponse {
	conn := req.Target.Conn
	if conn == nil {
		if req.Target.Address == "" {
			return SendMessageResponse{Error: &errors.NetworkError{Operation: "dial", Err: stdErrors.New("no target address")}}
		}
		var err error
		conn, err = cfg.dialer.Dial(ctx, req.Target.Address, req.Timeout)
		if err != nil {
			return SendMessageResponse{Error: err}
		}
		defer func() { _ = conn.Close() }()
	}

	buf := NewChunkBuffer(cfg.maxResponseSize)
	err := sendAndCollect(ctx, conn, req, cfg, buf)
	return SendMessageResponse{Chunks: buf.Chunks(), Truncated: buf.Truncated, Error: err}
}

// SendAndCollect runs the exchange on an established connection and returns the
// response chunks. The connection is not closed.
func SendAndCollect(ctx context.Context, conn net.Conn, req SendMessageRequest, opts ...MessageOption) ([][]byte, error) {
	cfg := defaultMessageConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if req.Timeout <= 0 {
		req.Timeout = cfg.timeout
	}
	buf := NewChunkBuffer(cfg.maxResponseSize)
	err := sendAndCollect(ctx, conn, req, cfg, buf)
	return buf.Chunks(), err
}

func sendAndCollect(ctx context.Context, conn net.Conn, req SendMessageRequest, cfg messageConfig, buf *ChunkBuffer) error {
	target := req.Target.String()

	// wake blocked I/O when ctx is cancelled
	woken := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
		close(woken)
	})
	// a borrowed conn goes back to its owner without deadlines
	defer func() {
		if !stop() {
			<-woken
		}
		_ = conn.SetDeadline(time.Time{})
	}()

	payload, err := wireformat.EncodeTable(req.Payload)
	if err != nil {
		return err
	}

	if err := conn.SetWriteDeadline(time.Now().Add(req.Timeout)); err != nil {
		return &errors.SendError{Target: target, Err: err}
	}
	if err := wireformat.WriteFrame(conn, req.Modifier1, req.Modifier2, payload); err != nil {
		var frameErr *errors.FrameError
		if stdErrors.As(err, &frameErr) {
			return err
		}
		return &errors.SendError{Target: target, Err: err}
	}
	if req.Input != nil && req.InputSize > 0 {
		if _, err := io.CopyN(conn, req.Input, req.InputSize); err != nil {
			return &errors.SendError{Target: target, Err: fmt.Errorf("streaming input: %w", err)}
		}
	}

	chunk := make([]byte, cfg.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conn.SetReadDeadline(time.Now().Add(req.Timeout)); err != nil {
			return &errors.ReadError{Target: target, Chunks: buf.Count(), Err: err}
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			_, _ = buf.Write(chunk[:n])
		}
		if buf.Full() {
			cfg.logger.Debug("response limit reached, not reading further",
				zap.String("target", target),
				zap.Int("bytes", buf.Len()))
			return nil
		}
		if err == nil {
			continue
		}
		if stdErrors.Is(err, io.EOF) {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if isTimeout(err) {
			if buf.Count() == 0 {
				return &errors.TimeoutError{Operation: "send_message", Target: target, Duration: req.Timeout}
			}
			cfg.logger.Warn("remote request timed out waiting for response",
				zap.String("target", target),
				zap.Int("chunks", buf.Count()))
			return nil
		}
		return &errors.ReadError{Target: target, Chunks: buf.Count(), Err: err}
	}
}

func isTimeout(err error) bool {
	if stdErrors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return stdErrors.As(err, &ne) && ne.Timeout()
}
