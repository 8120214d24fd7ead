package zomecall

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"hchttp/gateway/pkg/gwerrors"
	"hchttp/gateway/pkg/holohash"
)

// MaxIdentifierLen is the maximum length in bytes of an app id, zome name or
// function name.
const MaxIdentifierLen = 100

// RawRequest is a zome call as extracted from HTTP, before validation.
type RawRequest struct {
	TargetHash string
	AppID      string
	ZomeName   string
	FnName     string

	// Payload is the raw base64url payload. HasPayload distinguishes an
	// absent payload from an empty one.
	Payload    string
	HasPayload bool
}

// Request is a validated zome call.
type Request struct {
	TargetHash holohash.DnaHash
	AppID      string
	ZomeName   string
	FnName     string

	// Payload is the JSON payload; an absent payload is JSON null.
	Payload json.RawMessage
}

var nullPayload = json.RawMessage("null")

// Validate checks raw in order and stops at the first failure. limit is the
// maximum decoded payload size in bytes.
func Validate(raw RawRequest, limit int) (*Request, error) {
	hash, err := holohash.ParseDnaHash(raw.TargetHash)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindMalformedHash, err, "invalid DNA hash %q", raw.TargetHash)
	}

	for _, id := range []struct{ what, value string }{
		{"app id", raw.AppID},
		{"zome name", raw.ZomeName},
		{"function name", raw.FnName},
	} {
		if err := checkIdentifier(id.what, id.value); err != nil {
			return nil, err
		}
	}

	payload := nullPayload
	if raw.HasPayload {
		payload, err = decodePayload(raw.Payload, limit)
		if err != nil {
			return nil, err
		}
	}

	return &Request{
		TargetHash: hash,
		AppID:      raw.AppID,
		ZomeName:   raw.ZomeName,
		FnName:     raw.FnName,
		Payload:    payload,
	}, nil
}

func checkIdentifier(what, value string) error {
	switch {
	case value == "":
		return gwerrors.New(gwerrors.KindMalformedIdentifier, "%s is empty", what)
	case !utf8.ValidString(value):
		return gwerrors.New(gwerrors.KindMalformedIdentifier, "%s is not valid UTF-8", what)
	case len(value) > MaxIdentifierLen:
		return gwerrors.New(gwerrors.KindMalformedIdentifier, "%s is longer than %d bytes", what, MaxIdentifierLen)
	}
	return nil
}

// EstimateDecodedLen returns the decoded size of a base64 string from its
// length, without decoding it.
func EstimateDecodedLen(encoded string) int {
	padding := len(encoded) - len(strings.TrimRight(encoded, "="))
	return (len(encoded) - padding) * 3 / 4
}

func decodePayload(encoded string, limit int) (json.RawMessage, error) {
	if EstimateDecodedLen(encoded) > limit {
		return nil, gwerrors.New(gwerrors.KindPayloadTooLarge, "payload exceeds %d bytes", limit)
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindMalformedPayload, err, "payload is not valid base64url")
	}
	if len(decoded) > limit {
		return nil, gwerrors.New(gwerrors.KindPayloadTooLarge, "payload exceeds %d bytes", limit)
	}
	if !json.Valid(decoded) {
		return nil, gwerrors.New(gwerrors.KindMalformedPayload, "payload is not valid JSON")
	}
	return json.RawMessage(decoded), nil
}
