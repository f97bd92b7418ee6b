package entities

import "fmt"

// ErrorDetail is the flattened form of a request failure, as written to the
// access log and counted by the metrics collector.
// Types: "script", "protocol", "io", "network", "timeout", "config", "validation", "internal".
type ErrorDetail struct {
	// Message is a human-readable error description.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Code narrows Type down, e.g. the failing operation or script phase.
	Code string `json:"code,omitempty"`

	// IsTimeout is set when a deadline caused the failure.
	IsTimeout bool `json:"is_timeout,omitempty"`
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "internal" {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	return msg
}

// Reason is the label used when counting the error: Code when set, Type otherwise.
func (e *ErrorDetail) Reason() string {
	if e == nil {
		return ""
	}
	if e.IsTimeout {
		return "timeout"
	}
	if e.Code != "" {
		return e.Code
	}
	return e.Type
}
