package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// OutputRefKeySize is the binary key length of an output reference:
// 32-byte transaction hash plus big-endian 4-byte output index.
const OutputRefKeySize = 36

var errBadRefKey = errors.New("output ref key must be 36 bytes")

// OutputRef points at one output of one transaction.
type OutputRef struct {
	_struct bool `codec:",toarray"`
	TxHash  [32]byte
	Index   uint32
}

// Key returns the 36-byte binary form used as a storage key.
func (r OutputRef) Key() []byte {
	key := make([]byte, OutputRefKeySize)
	copy(key[:32], r.TxHash[:])
	binary.BigEndian.PutUint32(key[32:], r.Index)
	return key
}

// OutputRefFromKey parses the binary form produced by Key.
func OutputRefFromKey(key []byte) (OutputRef, error) {
	if len(key) != OutputRefKeySize {
		return OutputRef{}, errBadRefKey
	}
	var r OutputRef
	copy(r.TxHash[:], key[:32])
	r.Index = binary.BigEndian.Uint32(key[32:])
	return r, nil
}

// String renders "txHashHex:index".
func (r OutputRef) String() string {
	return fmt.Sprintf("%s:%d", hex.EncodeToString(r.TxHash[:]), r.Index)
}

// IsZero reports whether the ref is the zero value. Produced outputs have
// no ref until their transaction is applied; the zero ref marks that.
func (r OutputRef) IsZero() bool {
	return r == OutputRef{}
}

// Output is one ledger output: a value locked at an entity, optionally
// carrying an inline datum. Datum holds the raw canonical CBOR bytes,
// empty when no datum is attached.
type Output struct {
	_struct bool `codec:",toarray"`
	Address EntityID
	Value   Value
	Datum   []byte
}

// HasDatum reports whether an inline datum is attached.
func (o Output) HasDatum() bool {
	return len(o.Datum) > 0
}

// Clone returns an independent copy; the value map and datum bytes are
// not shared with the receiver.
func (o Output) Clone() Output {
	out := Output{Address: o.Address, Value: o.Value.Clone()}
	if len(o.Datum) > 0 {
		out.Datum = make([]byte, len(o.Datum))
		copy(out.Datum, o.Datum)
	}
	return out
}

// Input is a resolved transaction input: the reference being consumed and
// the output it resolves to.
type Input struct {
	_struct bool `codec:",toarray"`
	Ref     OutputRef
	Output  Output
}
