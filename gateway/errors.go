package gateway

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or invalid option, an unknown backend
// kind or an unsupported capability. It is always raised before any network
// call.
type ConfigurationError struct {
	Backend string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Backend == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Backend, e.Message)
}

func configErrorf(backend, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Backend: backend, Message: fmt.Sprintf(format, args...)}
}

// ProtocolError reports a transport failure, a non-2xx HTTP status, a
// malformed body or a backend-declared fault.
type ProtocolError struct {
	Backend  string
	Method   string
	Endpoint string
	Code     string
	Message  string
	Err      error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("%s: %s %s", e.Backend, e.Method, e.Endpoint)
	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ResponseError reports an inbound notification missing required fields. It
// is always recoverable by the caller.
type ResponseError struct {
	Backend string
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Backend, e.Message)
}

// AmountError reports an amount outside backend bounds or non-numeric input.
type AmountError struct {
	Value   string
	Message string
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Value, e.Message)
}

// ErrNotSupported marks a capability the selected backend does not offer.
// Wrapped inside a ConfigurationError so callers can distinguish it from
// protocol failures with errors.Is.
var ErrNotSupported = errors.New("operation not supported by backend")

// CapabilityError builds the error returned when validate, cancel or status
// polling is requested from a backend lacking the capability.
type CapabilityError struct {
	Backend   string
	Operation string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Operation, ErrNotSupported)
}

func (e *CapabilityError) Unwrap() error { return ErrNotSupported }
