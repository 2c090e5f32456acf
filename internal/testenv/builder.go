package testenv

import (
	"fmt"

	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/oracle"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/core/vault"
)

// TxBuilder provides a fluent interface for shaping transactions in
// tests. Build panics on encoding failures so that call sites stay free
// of error plumbing.
type TxBuilder struct {
	body    ledger.TxBody
	signers []*Account
}

// NewTx creates an empty transaction builder.
func NewTx() *TxBuilder {
	return &TxBuilder{}
}

// Spend adds inputs to consume.
func (b *TxBuilder) Spend(refs ...ledger.OutputRef) *TxBuilder {
	b.body.Inputs = append(b.body.Inputs, refs...)
	return b
}

// Reference adds read-only reference inputs.
func (b *TxBuilder) Reference(refs ...ledger.OutputRef) *TxBuilder {
	b.body.ReferenceInputs = append(b.body.ReferenceInputs, refs...)
	return b
}

// PayTo adds an output holding value at the address.
func (b *TxBuilder) PayTo(addr ledger.EntityID, value ledger.Value) *TxBuilder {
	b.body.Outputs = append(b.body.Outputs, ledger.Output{Address: addr, Value: value})
	return b
}

// PayToWithDatum adds an output carrying an inline datum.
func (b *TxBuilder) PayToWithDatum(addr ledger.EntityID, value ledger.Value, datum []byte) *TxBuilder {
	b.body.Outputs = append(b.body.Outputs, ledger.Output{Address: addr, Value: value, Datum: datum})
	return b
}

// Mint accumulates amount onto the mint field; negative amounts burn.
func (b *TxBuilder) Mint(asset ledger.AssetID, amount int64) *TxBuilder {
	if b.body.Mint == nil {
		b.body.Mint = ledger.NewValue()
	}
	b.body.Mint.Add(asset, amount)
	return b
}

// Redeem attaches a redeemer invoking the policy in the given mode.
func (b *TxBuilder) Redeem(policyID ledger.PolicyID, mode policy.Mode) *TxBuilder {
	raw, err := mode.Bytes()
	if err != nil {
		panic(fmt.Sprintf("testenv: encode mode %s: %v", mode, err))
	}
	return b.RedeemRaw(policyID, raw)
}

// RedeemRaw attaches a redeemer with an arbitrary payload, for tests
// that exercise undecodable modes.
func (b *TxBuilder) RedeemRaw(policyID ledger.PolicyID, data []byte) *TxBuilder {
	b.body.Redeemers = append(b.body.Redeemers, ledger.Redeemer{Policy: policyID, Data: data})
	return b
}

// SignedBy records the accounts whose witnesses Build attaches.
func (b *TxBuilder) SignedBy(accounts ...*Account) *TxBuilder {
	b.signers = append(b.signers, accounts...)
	return b
}

// Build assembles the transaction and signs it for every recorded signer.
func (b *TxBuilder) Build() *ledger.Tx {
	tx := &ledger.Tx{Body: b.body}
	if len(b.signers) == 0 {
		return tx
	}
	raw, err := tx.SigningBytes()
	if err != nil {
		panic(fmt.Sprintf("testenv: encode signing payload: %v", err))
	}
	for _, acc := range b.signers {
		tx.Witnesses = append(tx.Witnesses, acc.Witness(raw))
	}
	return tx
}

// PriceBytes encodes an oracle price datum.
func PriceBytes(rate int64) []byte {
	raw, err := oracle.PriceDatum{Rate: rate}.Bytes()
	if err != nil {
		panic(fmt.Sprintf("testenv: encode price datum: %v", err))
	}
	return raw
}

// PositionBytes encodes a collateral position datum.
func PositionBytes(owner ledger.EntityID, amount int64, policyID ledger.PolicyID) []byte {
	raw, err := vault.PositionDatum{Owner: owner, Amount: amount, Policy: policyID}.Bytes()
	if err != nil {
		panic(fmt.Sprintf("testenv: encode position datum: %v", err))
	}
	return raw
}
