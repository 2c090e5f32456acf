// Package oracle reads the collaborating oracle entity's price publication
// out of a transaction's reference inputs.
//
// The oracle posts the current price as an inline datum on an output locked
// by the oracle entity id. Policies read it through a reference input, so
// the publication is never consumed by the transactions that rely on it.
package oracle

import (
	"errors"

	"github.com/halvalla/stabled/internal/core/datum"
	"github.com/halvalla/stabled/internal/core/ledger"
)

var (
	// ErrNoOracleInput is returned when no reference input sits at the
	// oracle entity.
	ErrNoOracleInput = errors.New("oracle: no reference input at oracle entity")
	// ErrMultipleOracleInputs is returned when more than one reference
	// input sits at the oracle entity.
	ErrMultipleOracleInputs = errors.New("oracle: multiple reference inputs at oracle entity")
	// ErrPriceNotFound is returned when the oracle output carries no
	// decodable price datum.
	ErrPriceNotFound = errors.New("oracle: price datum missing or undecodable")
)

// PriceDatum is the oracle's published price: the value of one native coin
// in hundredths of the reference currency. A rate of 185 means one coin is
// worth 1.85.
type PriceDatum struct {
	_struct bool `codec:",toarray"`
	Rate    int64
}

// Bytes returns the canonical CBOR encoding of the datum.
func (p PriceDatum) Bytes() ([]byte, error) {
	return datum.Marshal(p)
}

// Found is the single reference input located at the oracle entity. The
// datum is decoded lazily so that structural checks and datum checks stay
// separate rules.
type Found struct {
	Ref    ledger.OutputRef
	Output ledger.Output
}

// Price decodes the price datum. A missing or undecodable datum reports
// false.
func (f Found) Price() (PriceDatum, bool) {
	var price PriceDatum
	if err := datum.Unmarshal(f.Output.Datum, &price); err != nil {
		return PriceDatum{}, false
	}
	return price, true
}

// Locate finds the single reference input locked by the oracle entity.
//
// The scan is one linear pass and always runs to completion; a second
// match does not stop it early, so the cost of a malformed transaction is
// the same as a well-formed one. Exactly one qualifying input is required;
// the datum is not inspected here.
func Locate(refInputs []ledger.Input, oracleEntity ledger.EntityID) (Found, error) {
	var (
		found Found
		count int
	)
	for _, in := range refInputs {
		if in.Output.Address == oracleEntity {
			if count == 0 {
				found = Found{Ref: in.Ref, Output: in.Output}
			}
			count++
		}
	}

	switch {
	case count == 0:
		return Found{}, ErrNoOracleInput
	case count > 1:
		return Found{}, ErrMultipleOracleInputs
	}
	return found, nil
}

// Find locates the oracle publication and decodes its price in one call.
func Find(refInputs []ledger.Input, oracleEntity ledger.EntityID) (PriceDatum, error) {
	found, err := Locate(refInputs, oracleEntity)
	if err != nil {
		return PriceDatum{}, err
	}
	price, ok := found.Price()
	if !ok {
		return PriceDatum{}, ErrPriceNotFound
	}
	return price, nil
}
