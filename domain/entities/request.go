package entities

import (
	"time"
)

// StatusUnset is recorded when a handler answered in raw mode (no status line).
const StatusUnset = -1

// AccessRecord is the summary of one completed request handed to the access logger.
type AccessRecord struct {
	// Start is when the request entered the state machine for the first time.
	Start time.Time `json:"start"`

	// End is when the request reached its terminal state.
	End time.Time `json:"end"`

	// RequestID is a unique id assigned when the request was accepted.
	RequestID string `json:"request_id"`

	Protocol   string `json:"protocol"`
	Method     string `json:"method,omitempty"`
	URI        string `json:"uri,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`

	// Status is the numeric status derived from the status line, or StatusUnset.
	Status int `json:"status"`

	// ResponseSize counts body bytes only.
	ResponseSize int64 `json:"response_size"`

	// Slot is the execution slot that served the request.
	Slot int `json:"slot"`

	// Resumes counts how many times the request was re-entered after suspending.
	Resumes int `json:"resumes,omitempty"`

	// Error is set when the request was abandoned.
	Error *ErrorDetail `json:"error,omitempty"`
}

// Duration returns the wall time spent handling the request.
func (r AccessRecord) Duration() time.Duration {
	return r.End.Sub(r.Start)
}
