// Package server accepts uwsgi connections and feeds them to the execution slots
// of a host.Executor, one worker goroutine per slot.
package server

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reglet-dev/luabridge/host"
	"github.com/reglet-dev/luabridge/wireformat"
)

const (
	// LuaModifier1 is the modifier1 value routed to the Lua bridge.
	LuaModifier1 = 6

	defaultQueueSize   = 64
	defaultReadTimeout = 5 * time.Second
)

// Tracker observes requests entering and leaving a slot.
type Tracker interface {
	RequestStarted(slot int)
	RequestFinished(slot int)
}

type noTracker struct{}

func (noTracker) RequestStarted(int)  {}
func (noTracker) RequestFinished(int) {}

// Server reads inbound uwsgi packets and queues them to slot workers round-robin.
type Server struct {
	exec        *host.Executor
	logger      *zap.Logger
	tracker     Tracker
	workers     []*slotWorker
	next        atomic.Uint64
	fdSeq       atomic.Int64
	readTimeout time.Duration
	queueSize   int
	modifier1   uint8
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracker reports slot occupancy, typically to the metrics collectors.
func WithTracker(t Tracker) Option {
	return func(s *Server) {
		if t != nil {
			s.tracker = t
		}
	}
}

// WithModifier1 changes the modifier1 value the server accepts.
func WithModifier1(m uint8) Option {
	return func(s *Server) {
		s.modifier1 = m
	}
}

// WithQueueSize bounds how many accepted requests may wait for each slot.
func WithQueueSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithReadTimeout bounds how long a client may take to send the packet header and vars.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// New creates a server driving exec. The executor's slots are owned by the
// server's workers once Serve runs.
func New(exec *host.Executor, opts ...Option) (*Server, error) {
	if exec == nil {
		return nil, stdErrors.New("server requires an executor")
	}
	s := &Server{
		exec:        exec,
		logger:      zap.NewNop(),
		tracker:     noTracker{},
		readTimeout: defaultReadTimeout,
		queueSize:   defaultQueueSize,
		modifier1:   LuaModifier1,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.workers = make([]*slotWorker, exec.Slots())
	for i := range s.workers {
		s.workers[i] = &slotWorker{
			id:      i,
			exec:    exec,
			logger:  s.logger.With(zap.Int("slot", i)),
			tracker: s.tracker,
			queue:   make(chan *job, s.queueSize),
			async:   exec.Async(),
		}
	}
	return s, nil
}

// Serve accepts connections on ln until ctx is cancelled or accepting fails.
// The listener is closed on return. Requests still queued or in flight are
// abandoned and their connections closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, w := range s.workers {
		g.Go(func() error { return w.run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		_ = ln.Close()
		return nil
	})
	g.Go(func() error {
		s.logger.Info("accepting uwsgi connections",
			zap.String("addr", ln.Addr().String()),
			zap.Int("slots", len(s.workers)),
			zap.Int("async", s.exec.Async()))
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			g.Go(func() error {
				s.accept(gctx, conn)
				return nil
			})
		}
	})
	return g.Wait()
}

// accept reads the packet header and vars of conn and hands the request to a worker.
func (s *Server) accept(ctx context.Context, conn net.Conn) {
	start := time.Now()
	_ = conn.SetReadDeadline(start.Add(s.readTimeout))
	h, vars, err := wireformat.ReadPacket(conn)
	if err != nil {
		s.logger.Warn("invalid request, skipping",
			zap.String("remoteAddr", conn.RemoteAddr().String()), zap.Error(err))
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	if h.Modifier1 != s.modifier1 {
		s.logger.Warn("no handler for modifier1",
			zap.Uint8("modifier1", h.Modifier1),
			zap.Uint8("modifier2", h.Modifier2),
			zap.String("remoteAddr", conn.RemoteAddr().String()))
		_ = conn.Close()
		return
	}

	w := s.workers[(s.next.Add(1)-1)%uint64(len(s.workers))]
	req := host.NewRequest(conn, int(h.Size), vars,
		host.WithSlot(w.id),
		host.WithDescriptor(s.descriptor(conn)),
		host.WithRemoteAddr(conn.RemoteAddr().String()),
		host.WithStartTime(start))

	select {
	case w.queue <- &job{req: req, conn: conn}:
	case <-ctx.Done():
		_ = conn.Close()
	}
}

// descriptor returns the OS descriptor behind conn, or a synthetic number
// for connections that have none.
func (s *Server) descriptor(conn net.Conn) int {
	if sc, ok := conn.(syscall.Conn); ok {
		if raw, err := sc.SyscallConn(); err == nil {
			fd := -1
			if err := raw.Control(func(u uintptr) { fd = int(u) }); err == nil && fd >= 0 {
				return fd
			}
		}
	}
	return int(1<<20 + s.fdSeq.Add(1))
}

// Executor returns the executor the server drives.
func (s *Server) Executor() *host.Executor { return s.exec }
