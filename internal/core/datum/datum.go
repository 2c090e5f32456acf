// Package datum implements the canonical CBOR encoding used for everything
// that crosses the ledger boundary: inline datums, redeemer payloads,
// transaction bodies and stored outputs.
//
// Encoding is canonical (sorted map keys, shortest integer forms), so equal
// values always encode to equal bytes. That property is load-bearing: datum
// hashes and transaction hashes are computed over these bytes.
package datum

import (
	"errors"

	"github.com/ugorji/go/codec"

	"github.com/halvalla/stabled/internal/crypto"
)

var (
	// ErrEmpty is returned when decoding zero-length datum bytes.
	ErrEmpty = errors.New("empty datum")
)

// handle is the shared CBOR configuration. Structs encode as arrays
// (position-based, like on-ledger constructor data) via per-type
// `codec:",toarray"` tags.
var handle = func() *codec.CborHandle {
	h := new(codec.CborHandle)
	h.Canonical = true
	return h
}()

// Marshal encodes v to canonical CBOR.
func Marshal(v any) ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, handle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

// Unmarshal decodes canonical CBOR into v. Decoding failures are ordinary
// errors; callers that read attached datums treat any failure the same as
// an absent datum.
func Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	dec := codec.NewDecoderBytes(data, handle)
	return dec.Decode(v)
}

// Hash returns the canonical 32-byte digest of raw datum bytes.
func Hash(data []byte) [32]byte {
	return crypto.Sha512Half(data)
}
