package holohash

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	// PrefixLen is the length of the type prefix.
	PrefixLen = 3

	// CoreLen is the length of the hash core.
	CoreLen = 32

	// LocationLen is the length of the DHT location suffix.
	LocationLen = 4

	// Len is the full raw length of a hash.
	Len = PrefixLen + CoreLen + LocationLen

	// EncodedLen is the length of the textual form, including the leading "u".
	EncodedLen = 53
)

var (
	dnaPrefix   = [PrefixLen]byte{0x84, 0x2d, 0x24}
	agentPrefix = [PrefixLen]byte{0x84, 0x20, 0x24}
)

// ErrMalformed is returned when a hash cannot be decoded.
var ErrMalformed = errors.New("malformed hash")

var encoding = base64.RawURLEncoding

// DnaHash identifies a DNA, the target of a zome call.
type DnaHash [Len]byte

// AgentPubKey identifies an agent by its ed25519 public key.
type AgentPubKey [Len]byte

// ParseDnaHash decodes the textual form of a DNA hash.
func ParseDnaHash(s string) (DnaHash, error) {
	var h DnaHash
	raw, err := decode(s, dnaPrefix)
	if err != nil {
		return h, err
	}
	copy(h[:], raw)
	return h, nil
}

// ParseAgentPubKey decodes the textual form of an agent public key.
func ParseAgentPubKey(s string) (AgentPubKey, error) {
	var k AgentPubKey
	raw, err := decode(s, agentPrefix)
	if err != nil {
		return k, err
	}
	copy(k[:], raw)
	return k, nil
}

// DnaHashFromBytes validates raw hash bytes received from the conductor.
func DnaHashFromBytes(b []byte) (DnaHash, error) {
	var h DnaHash
	if err := check(b, dnaPrefix); err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

// AgentPubKeyFromBytes validates raw agent key bytes received from the conductor.
func AgentPubKeyFromBytes(b []byte) (AgentPubKey, error) {
	var k AgentPubKey
	if err := check(b, agentPrefix); err != nil {
		return k, err
	}
	copy(k[:], b)
	return k, nil
}

// NewDnaHash builds a DNA hash from a 32-byte core.
func NewDnaHash(core [CoreLen]byte) DnaHash {
	var h DnaHash
	build(h[:], dnaPrefix, core)
	return h
}

// NewAgentPubKey builds an agent key from an ed25519 public key.
func NewAgentPubKey(pub ed25519.PublicKey) AgentPubKey {
	var k AgentPubKey
	var core [CoreLen]byte
	copy(core[:], pub)
	build(k[:], agentPrefix, core)
	return k
}

// String returns the textual form.
func (h DnaHash) String() string { return "u" + encoding.EncodeToString(h[:]) }

// Bytes returns a copy of the raw 39 bytes.
func (h DnaHash) Bytes() []byte { return append([]byte(nil), h[:]...) }

// IsZero reports whether h is the zero value.
func (h DnaHash) IsZero() bool { return h == DnaHash{} }

// String returns the textual form.
func (k AgentPubKey) String() string { return "u" + encoding.EncodeToString(k[:]) }

// Bytes returns a copy of the raw 39 bytes.
func (k AgentPubKey) Bytes() []byte { return append([]byte(nil), k[:]...) }

// PublicKey returns the ed25519 public key held in the core.
func (k AgentPubKey) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(append([]byte(nil), k[PrefixLen:PrefixLen+CoreLen]...))
}

// Location computes the 4-byte DHT location of a core: blake2b-128 folded
// with xor into 4 bytes.
func Location(core []byte) [LocationLen]byte {
	var out [LocationLen]byte
	d, _ := blake2b.New(16, nil)
	d.Write(core)
	sum := d.Sum(nil)
	for i, b := range sum {
		out[i%LocationLen] ^= b
	}
	return out
}

func build(dst []byte, prefix [PrefixLen]byte, core [CoreLen]byte) {
	copy(dst, prefix[:])
	copy(dst[PrefixLen:], core[:])
	loc := Location(core[:])
	copy(dst[PrefixLen+CoreLen:], loc[:])
}

func decode(s string, prefix [PrefixLen]byte) ([]byte, error) {
	// The length check also rules out embedded CR/LF, which the base64
	// decoder would otherwise skip.
	if len(s) != EncodedLen {
		return nil, fmt.Errorf("%w: expected %d characters, got %d", ErrMalformed, EncodedLen, len(s))
	}
	if s[0] != 'u' {
		return nil, fmt.Errorf("%w: missing 'u' prefix", ErrMalformed)
	}
	raw, err := encoding.DecodeString(s[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := check(raw, prefix); err != nil {
		return nil, err
	}
	return raw, nil
}

func check(b []byte, prefix [PrefixLen]byte) error {
	if len(b) != Len {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformed, Len, len(b))
	}
	if !bytes.Equal(b[:PrefixLen], prefix[:]) {
		return fmt.Errorf("%w: unexpected type prefix %x", ErrMalformed, b[:PrefixLen])
	}
	loc := Location(b[PrefixLen : PrefixLen+CoreLen])
	if !bytes.Equal(b[PrefixLen+CoreLen:], loc[:]) {
		return fmt.Errorf("%w: location does not match core", ErrMalformed)
	}
	return nil
}
