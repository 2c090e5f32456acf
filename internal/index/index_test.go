package index

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/oracle"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/core/vault"
)

var (
	testOracle = ledger.EntityID{0x0A}
	testVault  = ledger.EntityID{0x0C}
	alice      = ledger.EntityID{0xA1}
	bob        = ledger.EntityID{0xB2}
	testPolicy = ledger.PolicyID{0x0F, 0x01}
)

func testParams() policy.Params {
	return policy.Params{
		OracleEntity:         testOracle,
		VaultEntity:          testVault,
		MinCollateralPercent: 150,
	}
}

func ref(b byte, idx uint32) ledger.OutputRef {
	return ledger.OutputRef{TxHash: [32]byte{b}, Index: idx}
}

func positionInput(t *testing.T, r ledger.OutputRef, owner ledger.EntityID, debt, collateral int64) ledger.Input {
	t.Helper()
	d, err := vault.PositionDatum{Owner: owner, Amount: debt, Policy: testPolicy}.Bytes()
	require.NoError(t, err)
	return ledger.Input{
		Ref:    r,
		Output: ledger.Output{Address: testVault, Value: ledger.NativeValue(collateral), Datum: d},
	}
}

func priceInput(t *testing.T, r ledger.OutputRef, rate int64) ledger.Input {
	t.Helper()
	d, err := oracle.PriceDatum{Rate: rate}.Bytes()
	require.NoError(t, err)
	return ledger.Input{
		Ref:    r,
		Output: ledger.Output{Address: testOracle, Value: ledger.NativeValue(1), Datum: d},
	}
}

type sliceScanner []ledger.Input

func (s sliceScanner) ForEach(fn func(ledger.Input) error) error {
	for _, in := range s {
		if err := fn(in); err != nil {
			return err
		}
	}
	return nil
}

type failingScanner struct{}

func (failingScanner) ForEach(func(ledger.Input) error) error {
	return assert.AnError
}

func rebuilt(t *testing.T, scan sliceScanner) *Index {
	t.Helper()
	idx, err := New(testParams())
	require.NoError(t, err)
	require.NoError(t, idx.Rebuild(scan))
	return idx
}

func TestNewValidatesParams(t *testing.T) {
	_, err := New(policy.Params{})
	require.Error(t, err)

	idx, err := New(testParams())
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
}

func TestRebuild(t *testing.T) {
	stray := ledger.Input{
		Ref:    ref(0x09, 0),
		Output: ledger.Output{Address: alice, Value: ledger.NativeValue(5)},
	}
	vaultNoDatum := ledger.Input{
		Ref:    ref(0x09, 1),
		Output: ledger.Output{Address: testVault, Value: ledger.NativeValue(7)},
	}
	oracleBadDatum := ledger.Input{
		Ref:    ref(0x09, 2),
		Output: ledger.Output{Address: testOracle, Datum: []byte{0xFF}},
	}

	idx := rebuilt(t, sliceScanner{
		positionInput(t, ref(0x01, 0), alice, 100, 150*ledger.UnitsPerCoin),
		positionInput(t, ref(0x02, 0), bob, 50, 90*ledger.UnitsPerCoin),
		priceInput(t, ref(0x03, 0), 100),
		stray,
		vaultNoDatum,
		oracleBadDatum,
	})

	assert.Equal(t, 2, idx.Len())

	positions := idx.Positions()
	require.Len(t, positions, 2)
	assert.Equal(t, ref(0x01, 0), positions[0].Ref)
	assert.Equal(t, alice, positions[0].Owner)
	assert.Equal(t, int64(100), positions[0].Debt)
	assert.Equal(t, 150*ledger.UnitsPerCoin, positions[0].Collateral)
	assert.Equal(t, testPolicy, positions[0].Policy)
	assert.Equal(t, ref(0x02, 0), positions[1].Ref)

	price, ok := idx.Price()
	require.True(t, ok)
	assert.Equal(t, Price{Ref: ref(0x03, 0), Rate: 100}, price)

	pos, ok := idx.Get(ref(0x02, 0))
	require.True(t, ok)
	assert.Equal(t, bob, pos.Owner)

	_, ok = idx.Get(ref(0x09, 1))
	assert.False(t, ok)
}

func TestRebuildKeepsGreatestPriceRef(t *testing.T) {
	older := priceInput(t, ref(0x04, 0), 90)
	newer := priceInput(t, ref(0x05, 0), 110)

	for _, scan := range []sliceScanner{{older, newer}, {newer, older}} {
		idx := rebuilt(t, scan)
		price, ok := idx.Price()
		require.True(t, ok)
		assert.Equal(t, Price{Ref: ref(0x05, 0), Rate: 110}, price)
	}
}

func TestRebuildFailureKeepsState(t *testing.T) {
	idx := rebuilt(t, sliceScanner{
		positionInput(t, ref(0x01, 0), alice, 100, 150*ledger.UnitsPerCoin),
	})

	require.ErrorIs(t, idx.Rebuild(failingScanner{}), assert.AnError)
	assert.Equal(t, 1, idx.Len())
}

func TestApplyEvent(t *testing.T) {
	idx := rebuilt(t, sliceScanner{
		positionInput(t, ref(0x01, 0), alice, 100, 150*ledger.UnitsPerCoin),
		priceInput(t, ref(0x03, 0), 100),
	})

	idx.ApplyEvent(engine.Applied{
		TxHash:   [32]byte{0x07},
		Consumed: []ledger.OutputRef{ref(0x01, 0), ref(0x03, 0)},
		Produced: []ledger.Input{
			positionInput(t, ref(0x07, 0), bob, 60, 95*ledger.UnitsPerCoin),
			priceInput(t, ref(0x07, 1), 99),
		},
	})

	_, ok := idx.Get(ref(0x01, 0))
	assert.False(t, ok)

	pos, ok := idx.Get(ref(0x07, 0))
	require.True(t, ok)
	assert.Equal(t, bob, pos.Owner)
	assert.Equal(t, int64(60), pos.Debt)

	price, ok := idx.Price()
	require.True(t, ok)
	assert.Equal(t, Price{Ref: ref(0x07, 1), Rate: 99}, price)
}

func TestApplyEventPriceConsumedWithoutReplacement(t *testing.T) {
	idx := rebuilt(t, sliceScanner{priceInput(t, ref(0x03, 0), 100)})

	idx.ApplyEvent(engine.Applied{
		TxHash:   [32]byte{0x08},
		Consumed: []ledger.OutputRef{ref(0x03, 0)},
	})

	_, ok := idx.Price()
	assert.False(t, ok)
}

func TestEventsInterface(t *testing.T) {
	idx, err := New(testParams())
	require.NoError(t, err)

	var events engine.Events = idx
	events.PublishEvaluation(engine.Evaluation{})
	events.PublishApplied(engine.Applied{
		Produced: []ledger.Input{
			positionInput(t, ref(0x01, 0), alice, 100, 150*ledger.UnitsPerCoin),
		},
	})

	assert.Equal(t, 1, idx.Len())
}

func TestUpdatesSignal(t *testing.T) {
	idx, err := New(testParams())
	require.NoError(t, err)

	drained := func() bool {
		select {
		case <-idx.Updates():
			return true
		default:
			return false
		}
	}

	// A change arms the signal once.
	idx.ApplyEvent(engine.Applied{
		Produced: []ledger.Input{
			positionInput(t, ref(0x01, 0), alice, 100, 150*ledger.UnitsPerCoin),
		},
	})
	assert.True(t, drained())
	assert.False(t, drained())

	// An event touching nothing tracked leaves it unarmed.
	idx.ApplyEvent(engine.Applied{Consumed: []ledger.OutputRef{ref(0x55, 0)}})
	assert.False(t, drained())
}

func TestPositionsByOwner(t *testing.T) {
	idx := rebuilt(t, sliceScanner{
		positionInput(t, ref(0x02, 0), alice, 100, 150*ledger.UnitsPerCoin),
		positionInput(t, ref(0x01, 0), alice, 40, 70*ledger.UnitsPerCoin),
		positionInput(t, ref(0x03, 0), bob, 50, 90*ledger.UnitsPerCoin),
	})

	mine := idx.PositionsByOwner(alice)
	require.Len(t, mine, 2)
	assert.Equal(t, ref(0x01, 0), mine[0].Ref)
	assert.Equal(t, ref(0x02, 0), mine[1].Ref)

	assert.Empty(t, idx.PositionsByOwner(ledger.EntityID{0xEE}))
}

func TestPositionRatio(t *testing.T) {
	pos := Position{Debt: 100, Collateral: 150 * ledger.UnitsPerCoin}

	tests := []struct {
		name string
		pos  Position
		rate int64
		want decimal.Decimal
	}{
		{name: "at par", pos: pos, rate: 100, want: decimal.NewFromInt(150)},
		{name: "below threshold", pos: pos, rate: 99, want: decimal.RequireFromString("148.5")},
		{name: "price doubled", pos: pos, rate: 200, want: decimal.NewFromInt(300)},
		{name: "zero debt", pos: Position{Collateral: 5}, rate: 100, want: decimal.Zero},
		{name: "zero rate", pos: pos, rate: 0, want: decimal.Zero},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.pos.Ratio(tc.rate)
			assert.True(t, tc.want.Equal(got), "got %s", got)
		})
	}
}
