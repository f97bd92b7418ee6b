// Package errors provides the error taxonomy of the bridge.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/reglet-dev/luabridge/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// ErrRemoteTimeout is matched by every *TimeoutError raised by the remote message client.
var ErrRemoteTimeout = stdErrors.New("remote peer timed out")

// DetailedError is implemented by error types that can describe themselves
// as a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to a structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// ScriptError is raised when a handler or body continuation fails inside the interpreter.
type ScriptError struct {
	Err   error
	Phase string // "load", "handler", "body"
	Slot  int
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s failed on slot %d: %v", e.Phase, e.Slot, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ScriptError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "script", Code: e.Phase}
}

// ProtocolError represents malformed or absent request metadata.
type ProtocolError struct {
	Reason string
	Offset int
}

func (e *ProtocolError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("invalid request: %s (at byte %d)", e.Reason, e.Offset)
	}
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// ToErrorDetail implements DetailedError.
func (e *ProtocolError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "protocol", Code: "invalid_request"}
}

// IOError represents a failed read or write on the request socket.
type IOError struct {
	Err       error
	Operation string
	Fd        int
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s on fd %d failed: %v", e.Operation, e.Fd, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *IOError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "io", Code: e.Operation}
}

// NetworkError represents a failure to reach a remote peer.
type NetworkError struct {
	Err       error
	Operation string
	Target    string
}

func (e *NetworkError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("network %s failed for %s: %v", e.Operation, e.Target, e.Err)
	}
	return fmt.Sprintf("network %s failed: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Timeout() bool {
	if t, ok := e.Err.(interface{ Timeout() bool }); ok {
		return t.Timeout()
	}
	return false
}

// ToErrorDetail implements DetailedError.
func (e *NetworkError) ToErrorDetail() *entities.ErrorDetail {
	detail := &entities.ErrorDetail{Message: e.Error(), Type: "network", Code: e.Operation}
	if e.Timeout() {
		detail.Type = "timeout"
		detail.IsTimeout = true
	}
	return detail
}

// SendError is returned when the framed request could not be written to a remote peer.
type SendError struct {
	Err    error
	Target string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s failed: %v", e.Target, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *SendError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "network", Code: "send"}
}

// TimeoutError is returned when a remote peer produced no response before the deadline.
type TimeoutError struct {
	Operation string
	Target    string
	Duration  time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s timeout after %v (target: %s)", e.Operation, e.Duration, e.Target)
	}
	return fmt.Sprintf("%s timeout after %v", e.Operation, e.Duration)
}

func (e *TimeoutError) Timeout() bool {
	return true
}

// Is lets errors.Is(err, ErrRemoteTimeout) match.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrRemoteTimeout
}

// ToErrorDetail implements DetailedError.
func (e *TimeoutError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "timeout", Code: e.Operation, IsTimeout: true}
}

// ReadError is returned when reading a remote response fails for a reason other than EOF or timeout.
type ReadError struct {
	Err    error
	Target string
	Chunks int
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read from %s failed after %d chunks: %v", e.Target, e.Chunks, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ReadError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "network", Code: "read"}
}

// FrameError is returned when a payload does not fit the 16-bit frame size field.
type FrameError struct {
	Size int
	Max  int
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame payload of %d bytes exceeds %d", e.Size, e.Max)
}

// ToErrorDetail implements DetailedError.
func (e *FrameError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "protocol", Code: "frame_size"}
}

// AllocationError represents a buffer that could not be obtained for an encoded table.
type AllocationError struct {
	Requested int
	Limit     int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("buffer allocation failed: requested %d bytes, limit %d bytes", e.Requested, e.Limit)
}

// ToErrorDetail implements DetailedError.
func (e *AllocationError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "internal", Code: "allocation"}
}

// ArityError is raised when a script calls a host function with the wrong number of arguments.
type ArityError struct {
	Function string
	Min      int
	Max      int
	Got      int
}

func (e *ArityError) Error() string {
	switch {
	case e.Min == e.Max && e.Min == 1:
		return fmt.Sprintf("uwsgi.%s takes 1 parameter", e.Function)
	case e.Min == e.Max:
		return fmt.Sprintf("uwsgi.%s takes %d parameters", e.Function, e.Min)
	default:
		return fmt.Sprintf("uwsgi.%s takes %d to %d parameters", e.Function, e.Min, e.Max)
	}
}

// ToErrorDetail implements DetailedError.
func (e *ArityError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "validation", Code: "arity"}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}
