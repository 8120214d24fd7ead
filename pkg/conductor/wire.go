package conductor

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Wire message types.
const (
	wireRequest      = "request"
	wireResponse     = "response"
	wireAuthenticate = "authenticate"
	wireSignal       = "signal"
)

// WireMessage is the outer frame of every websocket message.
type WireMessage struct {
	Type string `msgpack:"type"`
	ID   uint64 `msgpack:"id,omitempty"`
	Data []byte `msgpack:"data"`
}

// Envelope is the inner request or response payload.
type Envelope struct {
	Type  string `msgpack:"type"`
	Value any    `msgpack:"value,omitempty"`
}

// RawEnvelope is an Envelope whose value has not been decoded yet.
type RawEnvelope struct {
	Type  string             `msgpack:"type"`
	Value msgpack.RawMessage `msgpack:"value"`
}

// responseError is the value of an {"type":"error"} response.
type responseError struct {
	Type  string `msgpack:"type"`
	Value any    `msgpack:"value"`
}

// ErrorResponseType is the response type the conductor uses for failures.
const ErrorResponseType = "error"

// EncodeWire encodes a wire message.
func EncodeWire(m WireMessage) ([]byte, error) {
	return msgpack.Marshal(&m)
}

// DecodeWire decodes a wire message.
func DecodeWire(b []byte) (WireMessage, error) {
	var m WireMessage
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode wire message: %w", err)
	}
	return m, nil
}

// decodeResponse unpacks a response payload, turning error responses into
// *APIError and checking the response type.
func decodeResponse(data []byte, want string, out any) error {
	var env RawEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if env.Type == ErrorResponseType {
		var re responseError
		if err := msgpack.Unmarshal(env.Value, &re); err != nil {
			return fmt.Errorf("decode error response: %w", err)
		}
		msg, ok := re.Value.(string)
		if !ok {
			msg = fmt.Sprint(re.Value)
		}
		return &APIError{Type: re.Type, Message: msg}
	}

	if env.Type != want {
		return fmt.Errorf("unexpected response type %q, want %q", env.Type, want)
	}
	if out == nil || len(env.Value) == 0 {
		return nil
	}
	if err := msgpack.Unmarshal(env.Value, out); err != nil {
		return fmt.Errorf("decode %s: %w", want, err)
	}
	return nil
}
