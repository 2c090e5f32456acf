package testenv

import (
	"bytes"
	"fmt"
	"sort"
	"testing"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/core/vault"
	"github.com/halvalla/stabled/internal/crypto"
	"github.com/halvalla/stabled/internal/index"
	"github.com/halvalla/stabled/internal/storage/kv"
	"github.com/halvalla/stabled/internal/storage/utxostore"
)

// DefaultPolicyID is the minting identity test deployments run under.
var DefaultPolicyID = ledger.PolicyID{0x0F, 0x01}

// DefaultFunding is the genesis funding Fund grants each account.
const DefaultFunding = 1000 * ledger.UnitsPerCoin

// Config selects the deployment a test environment runs.
type Config struct {
	// PolicyID is the minting identity the policy registers under.
	PolicyID ledger.PolicyID

	// MinCollateralPercent is the deployment's collateral floor.
	MinCollateralPercent int64

	// Engine carries the engine switches.
	Engine engine.Config
}

// DefaultConfig returns the stock deployment: a 150 percent collateral
// floor with balance enforcement and full signature verification.
func DefaultConfig() Config {
	return Config{
		PolicyID:             DefaultPolicyID,
		MinCollateralPercent: 150,
		Engine:               engine.Config{EnforceBalance: true},
	}
}

// Env wires one policy deployment over an in-memory UTXO store: engine,
// registered policy, and a position index fed from applied events. It
// provides a simplified interface for funding accounts, publishing
// prices, opening and closing positions, and verifying results.
type Env struct {
	t *testing.T

	store *utxostore.Store
	eng   *engine.Engine
	pol   *policy.Policy
	idx   *index.Index

	params   policy.Params
	policyID ledger.PolicyID

	accounts map[string]*Account
	oracle   *Account

	// priceRef tracks the oracle's current publication output. Before the
	// first PostPrice it is the datumless genesis carrier.
	priceRef    ledger.OutputRef
	pricePosted bool

	genesisSeq uint64
}

// NewEnv creates a test environment with the default deployment.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	return NewEnvWithConfig(t, DefaultConfig())
}

// NewEnvWithConfig creates a test environment with a custom deployment.
// The oracle and vault entities are deterministic accounts named "oracle"
// and "vault".
func NewEnvWithConfig(t *testing.T, cfg Config) *Env {
	t.Helper()

	oracleAcc := NewAccount("oracle")
	vaultAcc := NewAccount("vault")

	params := policy.Params{
		OracleEntity:         oracleAcc.ID,
		VaultEntity:          vaultAcc.ID,
		MinCollateralPercent: cfg.MinCollateralPercent,
	}
	pol, err := policy.New(params, cfg.PolicyID)
	if err != nil {
		t.Fatalf("Failed to construct policy: %v", err)
	}

	store, err := utxostore.New(kv.NewMemory(), 0)
	if err != nil {
		t.Fatalf("Failed to open UTXO store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng := engine.New(store, cfg.Engine)
	if err := eng.Register(pol); err != nil {
		t.Fatalf("Failed to register policy: %v", err)
	}

	idx, err := index.New(params)
	if err != nil {
		t.Fatalf("Failed to build index: %v", err)
	}
	eng.SetEvents(idx)

	env := &Env{
		t:        t,
		store:    store,
		eng:      eng,
		pol:      pol,
		idx:      idx,
		params:   params,
		policyID: cfg.PolicyID,
		accounts: make(map[string]*Account),
		oracle:   oracleAcc,
	}
	env.accounts[oracleAcc.Name] = oracleAcc
	env.accounts[vaultAcc.Name] = vaultAcc

	// The oracle's publication carrier. PostPrice spends and replaces it,
	// the same way a production oracle rolls its publication forward.
	env.priceRef = env.Seed(oracleAcc.ID, ledger.NativeValue(Coins(1)), nil)

	return env
}

// Fund seeds each account with 1000 coins of genesis funding.
func (e *Env) Fund(accounts ...*Account) {
	e.t.Helper()
	for _, acc := range accounts {
		e.FundAmount(acc, DefaultFunding)
	}
}

// FundAmount seeds one genesis output holding the given native amount at
// the account and registers the account in the environment.
func (e *Env) FundAmount(acc *Account, units int64) ledger.OutputRef {
	e.t.Helper()
	e.accounts[acc.Name] = acc
	return e.Seed(acc.ID, ledger.NativeValue(units), nil)
}

// Seed places one genesis output directly into the store, bypassing the
// engine, and returns its ref. The index does not see seeded outputs
// until RebuildIndex.
func (e *Env) Seed(addr ledger.EntityID, value ledger.Value, datum []byte) ledger.OutputRef {
	e.t.Helper()

	e.genesisSeq++
	ref := ledger.OutputRef{
		TxHash: crypto.Sha512Half([]byte(fmt.Sprintf("testenv genesis %d", e.genesisSeq))),
	}
	err := e.store.Seed([]ledger.Input{{
		Ref:    ref,
		Output: ledger.Output{Address: addr, Value: value, Datum: datum},
	}})
	if err != nil {
		e.t.Fatalf("Failed to seed genesis output: %v", err)
	}
	return ref
}

// RebuildIndex rescans the UTXO set into the index. Only needed after
// Seed; outputs produced through Submit reach the index as events.
func (e *Env) RebuildIndex() {
	e.t.Helper()
	if err := e.idx.Rebuild(e.store); err != nil {
		e.t.Fatalf("Failed to rebuild index: %v", err)
	}
}

// PostPrice publishes an oracle price by spending the current publication
// and producing a fresh one carrying the new datum. It returns the ref of
// the new publication, which transactions use as their reference input.
func (e *Env) PostPrice(rate int64) ledger.OutputRef {
	e.t.Helper()

	out, ok, err := e.store.Get(e.priceRef)
	if err != nil {
		e.t.Fatalf("Failed to read oracle publication %s: %v", e.priceRef, err)
	}
	if !ok {
		e.t.Fatalf("Oracle publication %s is not live", e.priceRef)
	}

	tx := NewTx().
		Spend(e.priceRef).
		PayToWithDatum(e.oracle.ID, out.Value, PriceBytes(rate)).
		SignedBy(e.oracle).
		Build()

	res := e.Submit(tx)
	if !res.Applied {
		e.t.Fatalf("Failed to publish price %d: %s", rate, res)
	}
	e.priceRef = ledger.OutputRef{TxHash: res.TxHash, Index: 0}
	e.pricePosted = true
	return e.priceRef
}

// PriceRef returns the ref of the oracle's current publication output.
func (e *Env) PriceRef() ledger.OutputRef {
	return e.priceRef
}

// Submit runs a transaction through the full pipeline and returns the
// result. Engine-level failures (malformed shape, unknown inputs, bad
// witnesses) fail the test; policy rejections come back in the result.
func (e *Env) Submit(tx *ledger.Tx) *engine.ApplyResult {
	e.t.Helper()
	res, err := e.eng.Apply(tx)
	if err != nil {
		e.t.Fatalf("Failed to submit transaction: %v", err)
	}
	return res
}

// TrySubmit is Submit for tests that exercise engine-level failures.
func (e *Env) TrySubmit(tx *ledger.Tx) (*engine.ApplyResult, error) {
	return e.eng.Apply(tx)
}

// Evaluate dry-runs a transaction's policies without writing the store.
func (e *Env) Evaluate(tx *ledger.Tx) *engine.ApplyResult {
	e.t.Helper()
	res, err := e.eng.Evaluate(tx)
	if err != nil {
		e.t.Fatalf("Failed to evaluate transaction: %v", err)
	}
	return res
}

// Mint opens a collateral position: it locks the given native collateral
// at the vault and mints amount stablecoins to the owner, failing the
// test on rejection. Use the builder for mints that should fail. Returns
// the ref of the new position.
func (e *Env) Mint(owner *Account, collateral, amount int64) ledger.OutputRef {
	e.t.Helper()

	if !e.pricePosted {
		e.t.Fatalf("Mint requires an oracle price; call PostPrice first")
	}

	refs, funds := e.SelectFunds(owner, ledger.NativeAssetID, collateral)
	change := funds
	change.Add(ledger.NativeAssetID, -collateral)
	change.Add(e.Stablecoin(), amount)

	tx := NewTx().
		Spend(refs...).
		Reference(e.priceRef).
		PayToWithDatum(e.params.VaultEntity, ledger.NativeValue(collateral), PositionBytes(owner.ID, amount, e.policyID)).
		PayTo(owner.ID, change).
		Mint(e.Stablecoin(), amount).
		Redeem(e.policyID, policy.ModeMint).
		SignedBy(owner).
		Build()

	res := e.Submit(tx)
	if !res.Applied {
		e.t.Fatalf("Failed to mint %d against %s for %s: %s", amount, FormatCoins(collateral), owner.Name, res)
	}
	return ledger.OutputRef{TxHash: res.TxHash, Index: 0}
}

// Burn closes a position: it consumes the position output, burns the
// recorded debt from the owner's holdings, and returns all remaining
// value to the owner. Fails the test on rejection.
func (e *Env) Burn(owner *Account, pos ledger.OutputRef) {
	e.t.Helper()

	position, locked := e.position(pos)
	refs, funds := e.SelectFunds(owner, e.Stablecoin(), position.Amount)

	refund := funds
	refund.Merge(locked)
	refund.Add(e.Stablecoin(), -position.Amount)

	tx := NewTx().
		Spend(pos).
		Spend(refs...).
		PayTo(owner.ID, refund).
		Mint(e.Stablecoin(), -position.Amount).
		Redeem(e.policyID, policy.ModeBurn).
		SignedBy(owner).
		Build()

	res := e.Submit(tx)
	if !res.Applied {
		e.t.Fatalf("Failed to burn position %s as %s: %s", pos, owner.Name, res)
	}
}

// Liquidate seizes a position: the liquidator burns the recorded debt
// from their own holdings and takes the locked collateral. Fails the test
// on rejection; whether the position is actually seizable at the current
// price is the policy's call.
func (e *Env) Liquidate(liquidator *Account, pos ledger.OutputRef) {
	e.t.Helper()

	position, locked := e.position(pos)
	refs, funds := e.SelectFunds(liquidator, e.Stablecoin(), position.Amount)

	proceeds := funds
	proceeds.Merge(locked)
	proceeds.Add(e.Stablecoin(), -position.Amount)

	tx := NewTx().
		Spend(pos).
		Spend(refs...).
		Reference(e.priceRef).
		PayTo(liquidator.ID, proceeds).
		Mint(e.Stablecoin(), -position.Amount).
		Redeem(e.policyID, policy.ModeLiquidate).
		SignedBy(liquidator).
		Build()

	res := e.Submit(tx)
	if !res.Applied {
		e.t.Fatalf("Failed to liquidate position %s as %s: %s", pos, liquidator.Name, res)
	}
}

// position reads and decodes a live position output.
func (e *Env) position(ref ledger.OutputRef) (vault.PositionDatum, ledger.Value) {
	e.t.Helper()

	out, ok, err := e.store.Get(ref)
	if err != nil {
		e.t.Fatalf("Failed to read position %s: %v", ref, err)
	}
	if !ok {
		e.t.Fatalf("Position %s is not live", ref)
	}
	found := vault.Found{Ref: ref, Output: out}
	pos, ok := found.Position()
	if !ok {
		e.t.Fatalf("Output %s carries no position datum", ref)
	}
	return pos, out.Value.Clone()
}

// SelectFunds picks the account's outputs in ref order until they cover
// need of the given asset. It returns the chosen refs and their merged
// value so callers can build balanced change.
func (e *Env) SelectFunds(acc *Account, asset ledger.AssetID, need int64) ([]ledger.OutputRef, ledger.Value) {
	e.t.Helper()

	if need <= 0 {
		return nil, ledger.NewValue()
	}

	var (
		refs    []ledger.OutputRef
		covered int64
	)
	total := ledger.NewValue()
	for _, in := range e.Outputs(acc) {
		if in.Output.Value.AmountOf(asset) == 0 {
			continue
		}
		refs = append(refs, in.Ref)
		total.Merge(in.Output.Value)
		covered += in.Output.Value.AmountOf(asset)
		if covered >= need {
			return refs, total
		}
	}
	e.t.Fatalf("Account %s holds %d of %s, needs %d", acc.Name, covered, asset, need)
	return nil, nil
}

// Outputs returns the account's live outputs in ref order.
func (e *Env) Outputs(acc *Account) []ledger.Input {
	e.t.Helper()

	var outs []ledger.Input
	err := e.store.ForEach(func(in ledger.Input) error {
		if in.Output.Address == acc.ID {
			outs = append(outs, in)
		}
		return nil
	})
	if err != nil {
		e.t.Fatalf("Failed to scan UTXO set: %v", err)
	}
	sort.Slice(outs, func(a, b int) bool {
		return bytes.Compare(outs[a].Ref.Key(), outs[b].Ref.Key()) < 0
	})
	return outs
}

// Balance returns the account's native holdings in base units.
func (e *Env) Balance(acc *Account) int64 {
	e.t.Helper()
	return e.AssetBalance(acc, ledger.NativeAssetID)
}

// AssetBalance returns the account's holdings of one asset.
func (e *Env) AssetBalance(acc *Account, asset ledger.AssetID) int64 {
	e.t.Helper()
	var total int64
	for _, in := range e.Outputs(acc) {
		total += in.Output.Value.AmountOf(asset)
	}
	return total
}

// Engine returns the wired engine.
func (e *Env) Engine() *engine.Engine {
	return e.eng
}

// Store returns the backing UTXO store.
func (e *Env) Store() *utxostore.Store {
	return e.store
}

// Index returns the live position index.
func (e *Env) Index() *index.Index {
	return e.idx
}

// Policy returns the registered policy.
func (e *Env) Policy() *policy.Policy {
	return e.pol
}

// Params returns the deployment configuration.
func (e *Env) Params() policy.Params {
	return e.params
}

// PolicyID returns the deployment's minting identity.
func (e *Env) PolicyID() ledger.PolicyID {
	return e.policyID
}

// Stablecoin returns the asset id the deployment mints.
func (e *Env) Stablecoin() ledger.AssetID {
	return ledger.AssetID{Policy: e.policyID, Name: vault.StablecoinTokenName}
}

// Oracle returns the account that signs price publications.
func (e *Env) Oracle() *Account {
	return e.oracle
}

// VaultEntity returns the entity id collateral is locked under.
func (e *Env) VaultEntity() ledger.EntityID {
	return e.params.VaultEntity
}

// GetAccount returns a registered account by name, nil when unknown.
func (e *Env) GetAccount(name string) *Account {
	return e.accounts[name]
}
