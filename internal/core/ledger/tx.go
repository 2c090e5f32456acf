package ledger

import (
	"github.com/halvalla/stabled/internal/core/datum"
	"github.com/halvalla/stabled/internal/crypto"
)

// Redeemer carries the mode argument presented to one minting policy.
// Data is the raw CBOR of the policy's redeemer value.
type Redeemer struct {
	_struct bool `codec:",toarray"`
	Policy  PolicyID
	Data    []byte
}

// Witness is one signature over the transaction body.
type Witness struct {
	_struct bool `codec:",toarray"`
	Scheme  crypto.Scheme
	PubKey  []byte
	Sig     []byte
}

// TxBody is the signed portion of a transaction. Slice ordering is the
// submitter's ordering and is preserved end to end; nothing downstream
// may sort it.
type TxBody struct {
	_struct bool `codec:",toarray"`

	Inputs          []OutputRef
	ReferenceInputs []OutputRef
	Outputs         []Output
	Mint            Value
	Redeemers       []Redeemer
}

// Tx is a full transaction: body plus witnesses.
type Tx struct {
	_struct bool `codec:",toarray"`

	Body      TxBody
	Witnesses []Witness
}

// SigningBytes returns the canonical CBOR of the body, the exact bytes
// every witness signs.
func (t *Tx) SigningBytes() ([]byte, error) {
	return datum.Marshal(t.Body)
}

// Hash returns the transaction id: the canonical digest of the body.
func (t *Tx) Hash() ([32]byte, error) {
	raw, err := t.SigningBytes()
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Sha512Half(raw), nil
}
