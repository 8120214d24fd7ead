package conductor

import (
	"errors"
	"fmt"
)

// ErrDisconnected is returned when the websocket is closed or broken.
// Requests in flight when the socket drops fail with an error wrapping it.
var ErrDisconnected = errors.New("conductor websocket disconnected")

// IsDisconnect reports whether err means the connection is no longer usable.
func IsDisconnect(err error) bool {
	return errors.Is(err, ErrDisconnected)
}

// Conductor error types.
const (
	ErrorTypeRibosome        = "ribosome_error"
	ErrorTypeInternal        = "internal_error"
	ErrorTypeDeserialization = "deserialization"
)

// APIError is an error response returned by the conductor.
type APIError struct {
	// Type is the error variant, e.g. "ribosome_error"
	Type string

	// Message is the error text reported by the conductor
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("conductor %s: %s", e.Type, e.Message)
}

// IsRibosomeError reports whether err is an error raised while running a
// zome function, as opposed to a failure of the conductor itself.
func IsRibosomeError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeRibosome
}
