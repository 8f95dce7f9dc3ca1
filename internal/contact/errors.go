package contact

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInFlight is returned when a submit arrives while another one is
	// still waiting on the relay.
	ErrInFlight = errors.New("contact: submission already in flight")
	// ErrClosed is returned once the form view has been torn down.
	ErrClosed = errors.New("contact: form closed")
	// ErrNotFound is returned by the Registry for unknown or evicted views.
	ErrNotFound = errors.New("contact: form not found")
	// ErrFull is returned by the Registry when no view can be evicted to make
	// room for a new one.
	ErrFull = errors.New("contact: too many open forms")
)

// IncompleteError blocks a submit that is missing required fields. The
// relay is never contacted for it.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("contact: missing required fields: %s", strings.Join(e.Missing, ", "))
}

// FieldError is one structured error returned by the relay.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Rejection is a non-success answer from the relay. Fields is non-nil when
// the relay sent a structured error list, even an empty one.
type Rejection struct {
	StatusCode int
	Fields     []FieldError
	Message    string
}

func (r *Rejection) Error() string {
	if r.Message != "" {
		return fmt.Sprintf("relay rejected submission (%d): %s", r.StatusCode, r.Message)
	}
	if len(r.Fields) > 0 {
		return fmt.Sprintf("relay rejected submission (%d): %d field errors", r.StatusCode, len(r.Fields))
	}
	return fmt.Sprintf("relay rejected submission (%d)", r.StatusCode)
}

// TransportError wraps a failure to reach the relay or to read its answer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }
