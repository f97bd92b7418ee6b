package server

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/reglet-dev/luabridge/host"
)

var errShutdown = stdErrors.New("server shutting down")

type job struct {
	req  *host.Request
	conn net.Conn
}

// slotWorker is the only goroutine that touches its slot's interpreter.
type slotWorker struct {
	exec    *host.Executor
	logger  *zap.Logger
	tracker Tracker
	queue   chan *job
	id      int
	async   int
}

func (w *slotWorker) run(ctx context.Context) error {
	if w.async > 1 {
		return w.multiplex(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case j := <-w.queue:
			w.tracker.RequestStarted(w.id)
			for !w.step(ctx, j) {
			}
		}
	}
}

// multiplex keeps up to async requests open and advances each by one step
// per turn. A request only yields while streaming its body, so a fresh
// request either finishes in its first step or becomes suspended.
func (w *slotWorker) multiplex(ctx context.Context) error {
	active := make([]*job, 0, w.async)
	for {
		if len(active) == 0 {
			select {
			case <-ctx.Done():
				w.drain()
				return nil
			case j := <-w.queue:
				w.tracker.RequestStarted(w.id)
				active = append(active, j)
			}
		}
	intake:
		for len(active) < w.async {
			select {
			case j := <-w.queue:
				w.tracker.RequestStarted(w.id)
				active = append(active, j)
			default:
				break intake
			}
		}

		if ctx.Err() != nil {
			for _, j := range active {
				w.abandon(j)
			}
			w.drain()
			return nil
		}

		kept := active[:0]
		for _, j := range active {
			if !w.step(ctx, j) {
				kept = append(kept, j)
			}
		}
		clear(active[len(kept):])
		active = kept
	}
}

// step advances j once and reports whether it is finished. Finished
// requests are logged and their connection closed.
func (w *slotWorker) step(ctx context.Context, j *job) bool {
	outcome, err := w.handle(ctx, j)
	if outcome == host.OutcomeAgain {
		return false
	}
	w.finish(j, err)
	return true
}

// handle runs one step of the state machine; a panic terminates the request.
func (w *slotWorker) handle(ctx context.Context, j *job) (outcome host.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("request handler panicked",
				zap.String("requestId", j.req.ID()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			outcome = host.OutcomeDone
			err = w.exec.Abort(j.req, fmt.Errorf("panic: %v", r))
		}
	}()
	return w.exec.Handle(ctx, j.req)
}

func (w *slotWorker) finish(j *job, err error) {
	if err != nil {
		w.logger.Debug("request failed", zap.String("requestId", j.req.ID()), zap.Error(err))
	}
	w.exec.AfterRequest(j.req)
	w.tracker.RequestFinished(w.id)
	_ = j.conn.Close()
}

func (w *slotWorker) abandon(j *job) {
	w.logger.Warn("abandoning request on shutdown",
		zap.String("requestId", j.req.ID()),
		zap.Stringer("state", j.req.State()))
	w.finish(j, w.exec.Abort(j.req, errShutdown))
}

// drain closes every request still waiting for this slot.
func (w *slotWorker) drain() {
	for {
		select {
		case j := <-w.queue:
			_ = j.conn.Close()
		default:
			return
		}
	}
}
