package conductortest

import (
	"errors"

	"github.com/vmihailenco/msgpack/v5"

	"hchttp/gateway/pkg/holohash"
)

// DnaHash returns a deterministic DNA hash derived from seed.
func DnaHash(seed byte) holohash.DnaHash {
	var core [holohash.CoreLen]byte
	for i := range core {
		core[i] = seed
	}
	return holohash.NewDnaHash(core)
}

// Returning builds a zome function that always returns v.
func Returning(v any) ZomeFunc {
	return func([]byte) ([]byte, error) {
		return msgpack.Marshal(v)
	}
}

// Echo returns its payload unchanged.
func Echo(payload []byte) ([]byte, error) {
	return payload, nil
}

// Failing builds a zome function that raises msg.
func Failing(msg string) ZomeFunc {
	return func([]byte) ([]byte, error) {
		return nil, errors.New(msg)
	}
}
