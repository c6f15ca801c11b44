// Package engerr defines the closed error taxonomy shared by every
// component of the engine: transport, provider, and formatting failures
// are all normalized to one of eight kinds so callers can branch on Kind
// instead of string-matching messages.
package engerr

import "fmt"

// Kind is a closed taxonomy. Do not add values without updating every
// switch that ranges over Kind.
type Kind string

const (
	KindTransport      Kind = "transport"       // stdio/SSE connection lost or never established
	KindTimeout        Kind = "timeout"         // a bounded operation exceeded its deadline
	KindProtocol       Kind = "protocol"        // malformed or unexpected JSON-RPC payload
	KindUnknownTool    Kind = "unknown_tool"    // wire_name does not resolve to a registered tool
	KindServerNotReady Kind = "server_not_ready" // target server has not completed registration
	KindFormat         Kind = "format"          // response_formatter payload failed schema validation
	KindCancelled      Kind = "cancelled"       // context was cancelled by the caller
	KindInternal       Kind = "internal"        // anything else, including tool-reported errors and invalid configuration
)

// Error is the single error type produced by every package in this
// module. Kind drives caller branching; Cause preserves the underlying
// error for logging without leaking it into user-facing Message text.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error that preserves cause for %w-style unwrapping.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind == kind
	}
	return false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
