// Package transcode converts zome call payloads between JSON and msgpack.
//
// JSON numbers become msgpack integers when they are integral and floats
// otherwise. Map keys are emitted in sorted order so equal inputs encode to
// equal bytes. Going back, msgpack binary values are rendered as arrays of
// byte values. Map keys are stringified: binary keys such as hashes take the
// "u" + base64url form used for hashes in URLs, other non-string keys their
// JSON text.
package transcode

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// JSONToMsgpack encodes a JSON document as msgpack. Empty input encodes nil.
func JSONToMsgpack(data []byte) ([]byte, error) {
	var v any
	if len(bytes.TrimSpace(data)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, fmt.Errorf("decode json: trailing data")
		}
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	nv, err := numberValue(v)
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if err := enc.Encode(nv); err != nil {
		return nil, fmt.Errorf("encode msgpack: %w", err)
	}
	return buf.Bytes(), nil
}

// numberValue replaces json.Number leaves with native numbers. Numbers
// outside the float64 range are rejected.
func numberValue(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		if u, err := strconv.ParseUint(x.String(), 10, 64); err == nil {
			return u, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s out of range", x)
		}
		return f, nil
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			nv, err := numberValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, elem := range x {
			nv, err := numberValue(elem)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	default:
		return v, nil
	}
}

// MsgpackToJSON decodes a msgpack value and renders it as JSON.
func MsgpackToJSON(data []byte) (json.RawMessage, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetMapDecoder(decodeMap)

	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, fmt.Errorf("decode msgpack: %w", err)
	}

	jv, err := jsonValue(v)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(jv)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return out, nil
}

func jsonValue(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		out := make([]int, len(x))
		for i, b := range x {
			out[i] = int(b)
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			jv, err := jsonValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = jv
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, elem := range x {
			jv, err := jsonValue(elem)
			if err != nil {
				return nil, err
			}
			out[k] = jv
		}
		return out, nil
	case float32:
		return floatValue(float64(x))
	case float64:
		return floatValue(x)
	default:
		return v, nil
	}
}

func floatValue(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("encode json: unsupported float %v", f)
	}
	return f, nil
}

// decodeMap decodes a map with keys of any msgpack type into a
// map[string]any, stringifying each key before insertion.
func decodeMap(d *msgpack.Decoder) (any, error) {
	n, err := d.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}

	out := make(map[string]any, n)
	for i := 0; i < n; i++ {
		k, err := d.DecodeInterface()
		if err != nil {
			return nil, err
		}
		key, err := mapKey(k)
		if err != nil {
			return nil, err
		}
		v, err := d.DecodeInterface()
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func mapKey(k any) (string, error) {
	switch x := k.(type) {
	case string:
		return x, nil
	case []byte:
		return "u" + base64.RawURLEncoding.EncodeToString(x), nil
	default:
		jv, err := jsonValue(k)
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(jv)
		if err != nil {
			return "", fmt.Errorf("encode map key: %w", err)
		}
		return string(b), nil
	}
}
