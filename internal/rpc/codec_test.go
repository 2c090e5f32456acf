package rpc

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/index"
)

func TestTxJSONRoundTrip(t *testing.T) {
	r := newRig(t)
	tx := r.mintTx(100)

	decoded, err := txJSON(tx).Decode()
	require.NoError(t, err)

	assert.Equal(t, tx.Body.Inputs, decoded.Body.Inputs)
	assert.Equal(t, tx.Body.ReferenceInputs, decoded.Body.ReferenceInputs)
	require.Len(t, decoded.Body.Outputs, 2)
	assert.Equal(t, tx.Body.Outputs[0].Address, decoded.Body.Outputs[0].Address)
	assert.Equal(t, tx.Body.Outputs[0].Datum, decoded.Body.Outputs[0].Datum)
	assert.Equal(t, tx.Body.Outputs[1].Value.Native(), decoded.Body.Outputs[1].Value.Native())
	assert.Equal(t, int64(100), decoded.Body.Mint.AmountOf(testDusd))
	require.Len(t, decoded.Body.Redeemers, 1)
	assert.Equal(t, tx.Body.Redeemers[0].Data, decoded.Body.Redeemers[0].Data)
	require.Len(t, decoded.Witnesses, 1)
	assert.Equal(t, tx.Witnesses[0].PubKey, decoded.Witnesses[0].PubKey)
	assert.Equal(t, tx.Witnesses[0].Sig, decoded.Witnesses[0].Sig)
	assert.Equal(t, tx.Witnesses[0].Scheme, decoded.Witnesses[0].Scheme)
}

func TestRefJSONDecode(t *testing.T) {
	good := strings.Repeat("ab", 32)

	tests := []struct {
		name   string
		txHash string
		ok     bool
	}{
		{"valid", good, true},
		{"short", "abcd", false},
		{"not hex", strings.Repeat("zz", 32), false},
		{"empty", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := RefJSON{TxHash: tc.txHash, Index: 3}.decode()
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint32(3), ref.Index)
			assert.Equal(t, good, hex.EncodeToString(ref.TxHash[:]))
		})
	}
}

func TestRedeemerJSONDecode(t *testing.T) {
	pid := testPolicyID.String()

	t.Run("mode wins over data", func(t *testing.T) {
		red, err := RedeemerJSON{PolicyID: pid, Mode: "burn", Data: "ffff"}.decode()
		require.NoError(t, err)

		want, err := policy.ModeBurn.Bytes()
		require.NoError(t, err)
		assert.Equal(t, want, red.Data)
	})

	t.Run("raw data", func(t *testing.T) {
		want, err := policy.ModeLiquidate.Bytes()
		require.NoError(t, err)

		red, err := RedeemerJSON{PolicyID: pid, Data: hex.EncodeToString(want)}.decode()
		require.NoError(t, err)
		assert.Equal(t, want, red.Data)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := RedeemerJSON{PolicyID: pid, Mode: "borrow"}.decode()
		assert.Error(t, err)
	})

	t.Run("neither mode nor data", func(t *testing.T) {
		_, err := RedeemerJSON{PolicyID: pid}.decode()
		assert.Error(t, err)
	})

	t.Run("bad policy id", func(t *testing.T) {
		_, err := RedeemerJSON{PolicyID: "short", Mode: "mint"}.decode()
		assert.Error(t, err)
	})
}

func TestWitnessJSONDecode(t *testing.T) {
	tests := []struct {
		name    string
		witness WitnessJSON
	}{
		{"unknown scheme", WitnessJSON{Scheme: "rsa", PubKey: "ab", Signature: "cd"}},
		{"bad pub key", WitnessJSON{Scheme: "ed25519", PubKey: "zz", Signature: "cd"}},
		{"bad signature", WitnessJSON{Scheme: "ed25519", PubKey: "ab", Signature: "zz"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.witness.decode()
			assert.Error(t, err)
		})
	}
}

func TestEncodeValue(t *testing.T) {
	other := ledger.AssetID{Policy: ledger.PolicyID{0x0F, 0x02}, Name: "aaa"}
	zeroed := ledger.AssetID{Policy: ledger.PolicyID{0x0F, 0x03}, Name: "gone"}

	v := ledger.NativeValue(5)
	v.Add(testDusd, 3)
	v.Add(other, 7)
	v.Add(zeroed, 0)

	out := encodeValue(v)
	assert.Equal(t, int64(5), out.Native)
	require.Len(t, out.Assets, 2, "native and zero quantities stay out of the asset list")
	assert.Equal(t, testDusd.Policy.String(), out.Assets[0].PolicyID)
	assert.Equal(t, other.Policy.String(), out.Assets[1].PolicyID)
}

func TestValueJSONRoundTrip(t *testing.T) {
	in := ValueJSON{
		Native: 42,
		Assets: []AssetJSON{{PolicyID: testPolicyID.String(), Token: "dUSD", Quantity: 9}},
	}
	v, err := in.decode()
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Native())
	assert.Equal(t, int64(9), v.AmountOf(testDusd))

	_, err = ValueJSON{Assets: []AssetJSON{{PolicyID: "xx", Token: "t", Quantity: 1}}}.decode()
	assert.Error(t, err)
}

func TestEncodeVerdict(t *testing.T) {
	accepted := encodeVerdict(policy.Accept())
	assert.Equal(t, "Accepted", accepted.Result)
	assert.True(t, accepted.Accepted)
	assert.NotEmpty(t, accepted.ResultMessage, "falls back to the code message")

	rejected := encodeVerdict(policy.Reject(policy.CodeAmountViolation, "exceeds issuance cap"))
	assert.Equal(t, "AmountViolation", rejected.Result)
	assert.Equal(t, int(policy.CodeAmountViolation), rejected.ResultCode)
	assert.Equal(t, "exceeds issuance cap", rejected.ResultMessage)
	assert.False(t, rejected.Accepted)
}

func TestEncodePosition(t *testing.T) {
	pos := index.Position{
		Ref:        ledger.OutputRef{TxHash: [32]byte{0x01}, Index: 0},
		Owner:      ledger.EntityID{0xA1},
		Debt:       100,
		Collateral: 150 * ledger.UnitsPerCoin,
		Policy:     testPolicyID,
	}

	withPrice := encodePosition(pos, 100, true)
	assert.Equal(t, "150.00", withPrice.Ratio)

	withoutPrice := encodePosition(pos, 0, false)
	assert.Empty(t, withoutPrice.Ratio, "no ratio without a live price")

	pos.Debt = 0
	cleared := encodePosition(pos, 100, true)
	assert.Empty(t, cleared.Ratio, "no ratio without debt")
}

func TestContextJSONDecodeBadSigner(t *testing.T) {
	_, err := ContextJSON{Signers: []string{"not-hex"}}.Decode()
	assert.Error(t, err)
}
