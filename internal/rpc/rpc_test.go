package rpc

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/oracle"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/core/vault"
	"github.com/halvalla/stabled/internal/crypto"
	"github.com/halvalla/stabled/internal/index"
	"github.com/halvalla/stabled/internal/storage/history"
	"github.com/halvalla/stabled/internal/storage/kv"
	"github.com/halvalla/stabled/internal/storage/utxostore"
)

var (
	testPolicyID = ledger.PolicyID{0x0F, 0x01}
	testOracleID = ledger.EntityID{0x0A}
	testVaultID  = ledger.EntityID{0x0C}

	testDusd = ledger.AssetID{Policy: testPolicyID, Name: vault.StablecoinTokenName}
)

const (
	testRate       = int64(100)
	testCollateral = int64(150 * ledger.UnitsPerCoin)
	testFunding    = int64(200 * ledger.UnitsPerCoin)
)

// rig assembles the full service stack over an in-memory store: one
// funding output at the owner and one oracle price output at testRate.
type rig struct {
	t *testing.T

	svc   *Services
	eng   *engine.Engine
	idx   *index.Index
	store *utxostore.Store

	owner   *crypto.Keypair
	ownerID ledger.EntityID

	fundRef   ledger.OutputRef
	oracleRef ledger.OutputRef
}

func newRig(t *testing.T) *rig {
	t.Helper()

	owner, err := crypto.KeypairFromSeed(crypto.SchemeEd25519, []byte("rpc-test-owner-seed"))
	require.NoError(t, err)

	params := policy.Params{
		OracleEntity:         testOracleID,
		VaultEntity:          testVaultID,
		MinCollateralPercent: 150,
	}
	pol, err := policy.New(params, testPolicyID)
	require.NoError(t, err)

	store, err := utxostore.New(kv.NewMemory(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := &rig{
		t:       t,
		store:   store,
		owner:   owner,
		ownerID: ledger.EntityIDFromPublicKey(owner.PublicKey()),

		fundRef:   ledger.OutputRef{TxHash: [32]byte{0x01}, Index: 0},
		oracleRef: ledger.OutputRef{TxHash: [32]byte{0x02}, Index: 0},
	}
	require.NoError(t, store.Seed([]ledger.Input{
		{Ref: r.fundRef, Output: ledger.Output{Address: r.ownerID, Value: ledger.NativeValue(testFunding)}},
		{Ref: r.oracleRef, Output: ledger.Output{Address: testOracleID, Value: ledger.NativeValue(1), Datum: priceBytes(t, testRate)}},
	}))

	r.eng = engine.New(store, engine.Config{EnforceBalance: true})
	require.NoError(t, r.eng.Register(pol))

	r.idx, err = index.New(params)
	require.NoError(t, err)
	require.NoError(t, r.idx.Rebuild(store))
	r.eng.SetEvents(r.idx)

	r.svc = &Services{
		Engine:  r.eng,
		Policy:  pol,
		Index:   r.idx,
		History: history.NoneStore{},
		Info: NodeInfo{
			Version:       "test",
			KVBackend:     "memory",
			HistoryDriver: "none",
			StartedAt:     time.Now().Add(-time.Minute),
		},
	}
	return r
}

func priceBytes(t testing.TB, rate int64) []byte {
	t.Helper()
	raw, err := oracle.PriceDatum{Rate: rate}.Bytes()
	require.NoError(t, err)
	return raw
}

func positionBytes(t testing.TB, owner ledger.EntityID, amount int64) []byte {
	t.Helper()
	raw, err := vault.PositionDatum{Owner: owner, Amount: amount, Policy: testPolicyID}.Bytes()
	require.NoError(t, err)
	return raw
}

// mintTx builds a balanced, signed mint of amount coins.
func (r *rig) mintTx(amount int64) *ledger.Tx {
	r.t.Helper()
	change := ledger.NativeValue(testFunding - testCollateral)
	change.Add(testDusd, amount)

	tx := &ledger.Tx{Body: ledger.TxBody{
		Inputs:          []ledger.OutputRef{r.fundRef},
		ReferenceInputs: []ledger.OutputRef{r.oracleRef},
		Outputs: []ledger.Output{
			{Address: testVaultID, Value: ledger.NativeValue(testCollateral), Datum: positionBytes(r.t, r.ownerID, amount)},
			{Address: r.ownerID, Value: change},
		},
		Mint:      ledger.Value{testDusd: amount},
		Redeemers: []ledger.Redeemer{{Policy: testPolicyID, Data: modeBytes(r.t, policy.ModeMint)}},
	}}
	r.sign(tx)
	return tx
}

func modeBytes(t testing.TB, m policy.Mode) []byte {
	t.Helper()
	raw, err := m.Bytes()
	require.NoError(t, err)
	return raw
}

func (r *rig) sign(tx *ledger.Tx) {
	r.t.Helper()
	raw, err := tx.SigningBytes()
	require.NoError(r.t, err)
	sig, err := r.owner.Sign(raw)
	require.NoError(r.t, err)
	tx.Witnesses = append(tx.Witnesses, ledger.Witness{
		Scheme: r.owner.Scheme(),
		PubKey: r.owner.PublicKey(),
		Sig:    sig,
	})
}

func (r *rig) mustApply(tx *ledger.Tx) *engine.ApplyResult {
	r.t.Helper()
	res, err := r.eng.Apply(tx)
	require.NoError(r.t, err)
	require.True(r.t, res.Applied, "expected transaction to apply: %s", res)
	return res
}

// txJSON converts a transaction into its wire form, redeemers carried
// as raw data.
func txJSON(tx *ledger.Tx) TxJSON {
	var out TxJSON
	for _, ref := range tx.Body.Inputs {
		out.Inputs = append(out.Inputs, encodeRef(ref))
	}
	for _, ref := range tx.Body.ReferenceInputs {
		out.ReferenceInputs = append(out.ReferenceInputs, encodeRef(ref))
	}
	for _, o := range tx.Body.Outputs {
		out.Outputs = append(out.Outputs, encodeOutput(o))
	}
	for id, quantity := range tx.Body.Mint {
		out.Mint = append(out.Mint, AssetJSON{
			PolicyID: id.Policy.String(),
			Token:    string(id.Name),
			Quantity: quantity,
		})
	}
	for _, red := range tx.Body.Redeemers {
		out.Redeemers = append(out.Redeemers, RedeemerJSON{
			PolicyID: red.Policy.String(),
			Data:     hex.EncodeToString(red.Data),
		})
	}
	for _, w := range tx.Witnesses {
		out.Witnesses = append(out.Witnesses, WitnessJSON{
			Scheme:    w.Scheme.String(),
			PubKey:    hex.EncodeToString(w.PubKey),
			Signature: hex.EncodeToString(w.Sig),
		})
	}
	return out
}

func testContext() *Context {
	return &Context{Context: context.Background(), ClientIP: "127.0.0.1"}
}
