package grpc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/oracle"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/core/vault"
	"github.com/halvalla/stabled/internal/crypto"
	"github.com/halvalla/stabled/internal/index"
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

// testRig assembles a server over an in-memory store: one funding
// output at the owner and one oracle price output at testRate.
type testRig struct {
	t *testing.T

	srv   *Server
	eng   *engine.Engine
	idx   *index.Index
	store *utxostore.Store

	owner   *crypto.Keypair
	ownerID ledger.EntityID

	fundRef   ledger.OutputRef
	oracleRef ledger.OutputRef
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	owner, err := crypto.KeypairFromSeed(crypto.SchemeEd25519, []byte("grpc-test-owner-seed"))
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

	r := &testRig{
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

	r.srv, err = NewServer(nil, Services{Engine: r.eng, Policy: pol, Index: r.idx})
	require.NoError(t, err)
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

func modeBytes(t testing.TB, m policy.Mode) []byte {
	t.Helper()
	raw, err := m.Bytes()
	require.NoError(t, err)
	return raw
}

// mintTx builds a balanced, signed mint of amount coins.
func (r *testRig) mintTx(amount int64) *ledger.Tx {
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

func (r *testRig) sign(tx *ledger.Tx) {
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
