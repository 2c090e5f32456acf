package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/oracle"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/core/vault"
	"github.com/halvalla/stabled/internal/index"
	"github.com/halvalla/stabled/internal/logging"
	"github.com/halvalla/stabled/internal/testenv"
)

var (
	testOracle = ledger.EntityID{0x0A}
	testVault  = ledger.EntityID{0x0C}
	alice      = ledger.EntityID{0xA1}
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

func positionInput(t *testing.T, r ledger.OutputRef, debt, collateral int64) ledger.Input {
	t.Helper()
	d, err := vault.PositionDatum{Owner: alice, Amount: debt, Policy: testPolicy}.Bytes()
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

type captureSink struct {
	mu         sync.Mutex
	candidates []Candidate
}

func (s *captureSink) PublishLiquidation(c Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append(s.candidates, c)
}

func (s *captureSink) snapshot() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Candidate(nil), s.candidates...)
}

// setPrice replaces the index's live publication with a new one.
func setPrice(t *testing.T, idx *index.Index, old, next ledger.OutputRef, rate int64) {
	t.Helper()
	idx.ApplyEvent(engine.Applied{
		Consumed: []ledger.OutputRef{old},
		Produced: []ledger.Input{priceInput(t, next, rate)},
	})
}

func newMonitor(t *testing.T, idx *index.Index, sink Sink) *Monitor {
	t.Helper()
	mon, err := New(idx, testParams(), sink, time.Minute, logging.Nop{})
	require.NoError(t, err)
	return mon
}

func TestNewValidatesParams(t *testing.T) {
	idx, err := index.New(testParams())
	require.NoError(t, err)

	_, err = New(idx, policy.Params{}, nil, 0, nil)
	require.Error(t, err)

	mon, err := New(idx, testParams(), nil, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, mon.interval)
}

func TestSweepFlagsUndercollateralized(t *testing.T) {
	idx, err := index.New(testParams())
	require.NoError(t, err)
	// Debt 100 against a cap of 99 at rate 99; the second position's cap
	// of 59 comfortably covers its debt of 50.
	idx.ApplyEvent(engine.Applied{Produced: []ledger.Input{
		positionInput(t, ref(0x01, 0), 100, 150*ledger.UnitsPerCoin),
		positionInput(t, ref(0x02, 0), 50, 90*ledger.UnitsPerCoin),
		priceInput(t, ref(0x03, 0), 99),
	}})

	sink := &captureSink{}
	mon := newMonitor(t, idx, sink)
	mon.Sweep()

	candidates := sink.snapshot()
	require.Len(t, candidates, 1)
	assert.Equal(t, ref(0x01, 0), candidates[0].Position.Ref)
	assert.Equal(t, int64(99), candidates[0].Rate)
	assert.Equal(t, int64(99), candidates[0].Cap)
	assert.Equal(t, int64(100), candidates[0].Position.Debt)
}

// TestSweepFlagsEngineMintedPosition drives the full pipeline: a position
// minted through the engine is flagged once the published price drops.
func TestSweepFlagsEngineMintedPosition(t *testing.T) {
	env := testenv.NewEnv(t)
	owner := testenv.NewAccount("owner")
	env.Fund(owner)
	env.PostPrice(100)
	pos := env.Mint(owner, testenv.Coins(150), 100)

	sink := &captureSink{}
	mon, err := New(env.Index(), env.Params(), sink, time.Minute, logging.Nop{})
	require.NoError(t, err)

	mon.Sweep()
	assert.Empty(t, sink.snapshot())

	env.PostPrice(99)
	mon.Sweep()

	candidates := sink.snapshot()
	require.Len(t, candidates, 1)
	assert.Equal(t, pos, candidates[0].Position.Ref)
	assert.Equal(t, int64(99), candidates[0].Rate)
	assert.Equal(t, int64(99), candidates[0].Cap)
}

func TestSweepNoPrice(t *testing.T) {
	idx, err := index.New(testParams())
	require.NoError(t, err)
	idx.ApplyEvent(engine.Applied{Produced: []ledger.Input{
		positionInput(t, ref(0x01, 0), 100, 150*ledger.UnitsPerCoin),
	}})

	sink := &captureSink{}
	newMonitor(t, idx, sink).Sweep()
	assert.Empty(t, sink.snapshot())
}

func TestSweepDeduplicatesUntilPriceChanges(t *testing.T) {
	idx, err := index.New(testParams())
	require.NoError(t, err)
	idx.ApplyEvent(engine.Applied{Produced: []ledger.Input{
		positionInput(t, ref(0x01, 0), 100, 150*ledger.UnitsPerCoin),
		priceInput(t, ref(0x03, 0), 99),
	}})

	sink := &captureSink{}
	mon := newMonitor(t, idx, sink)

	mon.Sweep()
	mon.Sweep()
	require.Len(t, sink.snapshot(), 1)

	// A further drop re-flags at the new rate.
	setPrice(t, idx, ref(0x03, 0), ref(0x04, 0), 98)
	mon.Sweep()

	candidates := sink.snapshot()
	require.Len(t, candidates, 2)
	assert.Equal(t, int64(98), candidates[1].Rate)
	assert.Equal(t, int64(98), candidates[1].Cap)
}

func TestSweepRecoveryOpensFreshEpisode(t *testing.T) {
	idx, err := index.New(testParams())
	require.NoError(t, err)
	idx.ApplyEvent(engine.Applied{Produced: []ledger.Input{
		positionInput(t, ref(0x01, 0), 100, 150*ledger.UnitsPerCoin),
		priceInput(t, ref(0x03, 0), 99),
	}})

	sink := &captureSink{}
	mon := newMonitor(t, idx, sink)
	mon.Sweep()
	require.Len(t, sink.snapshot(), 1)

	// Back to par: cap 100 covers debt 100, the position recovers.
	setPrice(t, idx, ref(0x03, 0), ref(0x04, 0), 100)
	mon.Sweep()
	require.Len(t, sink.snapshot(), 1)

	// Same rate as the first flag, but a fresh episode.
	setPrice(t, idx, ref(0x04, 0), ref(0x05, 0), 99)
	mon.Sweep()
	require.Len(t, sink.snapshot(), 2)
}

func TestSweepIgnoresConsumedPosition(t *testing.T) {
	idx, err := index.New(testParams())
	require.NoError(t, err)
	idx.ApplyEvent(engine.Applied{Produced: []ledger.Input{
		positionInput(t, ref(0x01, 0), 100, 150*ledger.UnitsPerCoin),
		priceInput(t, ref(0x03, 0), 99),
	}})

	sink := &captureSink{}
	mon := newMonitor(t, idx, sink)
	mon.Sweep()
	require.Len(t, sink.snapshot(), 1)

	// Liquidated: the position leaves the index and stays gone.
	idx.ApplyEvent(engine.Applied{Consumed: []ledger.OutputRef{ref(0x01, 0)}})
	mon.Sweep()
	assert.Len(t, sink.snapshot(), 1)
}

func TestRunSweepsOnIndexChanges(t *testing.T) {
	idx, err := index.New(testParams())
	require.NoError(t, err)
	idx.ApplyEvent(engine.Applied{Produced: []ledger.Input{
		priceInput(t, ref(0x03, 0), 99),
	}})
	// Drain the seed signal so the position event below is what Run sees.
	<-idx.Updates()

	sink := &captureSink{}
	mon := newMonitor(t, idx, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx) }()

	idx.ApplyEvent(engine.Applied{Produced: []ledger.Input{
		positionInput(t, ref(0x01, 0), 100, 150*ledger.UnitsPerCoin),
	}})

	assert.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
