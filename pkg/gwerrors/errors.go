// Package gwerrors defines the request-scoped error taxonomy of the gateway.
//
// Every failure that reaches the HTTP layer is an *Error carrying a Kind. The
// proxy maps kinds to status codes; the message is what the client sees.
package gwerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway error.
type Kind int

const (
	// KindUnknown is the zero Kind. It is treated like KindConductor.
	KindUnknown Kind = iota

	// KindMalformedHash means the target hash in the path could not be decoded.
	KindMalformedHash

	// KindMalformedIdentifier means an app, zome or function name was invalid.
	KindMalformedIdentifier

	// KindMalformedPayload means the payload was not base64url-encoded JSON.
	KindMalformedPayload

	// KindPayloadTooLarge means the decoded payload exceeds the configured limit.
	KindPayloadTooLarge

	// KindForbidden means the app or function is not allowlisted.
	KindForbidden

	// KindNotFound means no installed app matched the target.
	KindNotFound

	// KindMethodNotAllowed means a non-GET request on a zome call path.
	KindMethodNotAllowed

	// KindConductor covers any failure talking to the conductor.
	KindConductor

	// KindZome means the conductor reported an error raised by the zome itself.
	KindZome
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindMalformedHash:
		return "malformed_hash"
	case KindMalformedIdentifier:
		return "malformed_identifier"
	case KindMalformedPayload:
		return "malformed_payload"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindConductor:
		return "conductor_error"
	case KindZome:
		return "zome_error"
	default:
		return "unknown"
	}
}

// Error is a gateway error.
type Error struct {
	// Kind classifies the error
	Kind Kind

	// Message is the client-facing message
	Message string

	// Cause is the underlying error (if any), never shown to clients
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind with an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Conductor wraps cause as a conductor error.
func Conductor(cause error, format string, args ...any) *Error {
	return Wrap(KindConductor, cause, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
// Errors outside the taxonomy are reported as KindConductor.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != KindUnknown {
		return e.Kind
	}
	return KindConductor
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
