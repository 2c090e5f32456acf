// Package vault locates and decodes collateral positions held at the
// collateral entity.
//
// Each position is one output locked by the vault entity: its native-coin
// value is the locked collateral, and its inline datum records who owns the
// position, how much stablecoin it backs, and which minting policy issued
// that stablecoin.
package vault

import (
	"errors"

	"github.com/halvalla/stabled/internal/core/datum"
	"github.com/halvalla/stabled/internal/core/ledger"
)

// StablecoinTokenName is the token name of the stablecoin asset class.
// The minting policy and every off-chain consumer must agree on these
// bytes exactly; a mint under any other name is simply a different asset.
const StablecoinTokenName ledger.TokenName = "dUSD"

var (
	// ErrNoPositionOutput is returned when no produced output sits at the
	// vault entity.
	ErrNoPositionOutput = errors.New("vault: no collateral output at vault entity")
	// ErrMultiplePositionOutputs is returned when more than one produced
	// output sits at the vault entity.
	ErrMultiplePositionOutputs = errors.New("vault: multiple collateral outputs at vault entity")
	// ErrNoPositionInput is returned when no consumed input sits at the
	// vault entity.
	ErrNoPositionInput = errors.New("vault: no collateral input at vault entity")
	// ErrMultiplePositionInputs is returned when more than one consumed
	// input sits at the vault entity.
	ErrMultiplePositionInputs = errors.New("vault: multiple collateral inputs at vault entity")
)

// PositionDatum is the inline datum of a collateral position. Field order
// is the on-ledger constructor order and is part of the wire format.
type PositionDatum struct {
	_struct bool `codec:",toarray"`

	// Owner may close the position and is the only entity whose
	// signature authorizes minting against it or burning from it.
	Owner ledger.EntityID
	// Amount is the stablecoin debt recorded against the position.
	Amount int64
	// Policy is the minting policy the debt was issued under.
	Policy ledger.PolicyID
}

// Bytes returns the canonical CBOR encoding of the datum.
func (p PositionDatum) Bytes() ([]byte, error) {
	return datum.Marshal(p)
}

// Found is the single output located at the vault entity. Ref is the
// consumed reference on the Burn and Liquidate paths and zero for a
// produced output on the Mint path.
type Found struct {
	Ref    ledger.OutputRef
	Output ledger.Output
}

// Collateral returns the native-coin quantity locked in the position.
func (f Found) Collateral() int64 {
	return f.Output.Value.Native()
}

// Position decodes the position datum. A missing or undecodable datum
// reports false; the caller decides what that means for the rule being
// checked.
func (f Found) Position() (PositionDatum, bool) {
	var pos PositionDatum
	if err := datum.Unmarshal(f.Output.Datum, &pos); err != nil {
		return PositionDatum{}, false
	}
	return pos, true
}

// FindOutput locates the single produced output at the vault entity.
// One linear pass, run to completion regardless of early matches.
func FindOutput(outputs []ledger.Output, vaultEntity ledger.EntityID) (Found, error) {
	var (
		found Found
		count int
	)
	for _, out := range outputs {
		if out.Address == vaultEntity {
			if count == 0 {
				found = Found{Output: out}
			}
			count++
		}
	}

	switch {
	case count == 0:
		return Found{}, ErrNoPositionOutput
	case count > 1:
		return Found{}, ErrMultiplePositionOutputs
	}
	return found, nil
}

// FindInput locates the single consumed input at the vault entity.
// One linear pass, run to completion regardless of early matches.
func FindInput(inputs []ledger.Input, vaultEntity ledger.EntityID) (Found, error) {
	var (
		found Found
		count int
	)
	for _, in := range inputs {
		if in.Output.Address == vaultEntity {
			if count == 0 {
				found = Found{Ref: in.Ref, Output: in.Output}
			}
			count++
		}
	}

	switch {
	case count == 0:
		return Found{}, ErrNoPositionInput
	case count > 1:
		return Found{}, ErrMultiplePositionInputs
	}
	return found, nil
}
