// Package monitor watches the position index and flags positions whose
// collateral no longer covers their debt at the current oracle price.
//
// Flagging is advisory. The policy alone decides whether a liquidation
// transaction is admissible; the monitor exists so operators and bots
// hear about candidates without polling the index themselves.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/index"
	"github.com/halvalla/stabled/internal/logging"
)

// DefaultInterval is the sweep period when the configuration names none.
const DefaultInterval = 10 * time.Second

// Candidate is a position whose issuance cap at the current price is
// strictly below its recorded debt, which is exactly the condition the
// liquidation rule enforces.
type Candidate struct {
	Position index.Position
	Rate     int64
	Cap      int64
}

// Sink receives flagged candidates. Implementations must not block; the
// monitor calls them inline from its sweep.
type Sink interface {
	PublishLiquidation(Candidate)
}

// NopSink discards candidates.
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) PublishLiquidation(Candidate) {}

// View is the index surface the monitor reads.
type View interface {
	Positions() []index.Position
	Price() (index.Price, bool)
	Updates() <-chan struct{}
}

var _ View = (*index.Index)(nil)

// Monitor sweeps the view on a ticker and on index change signals,
// deduplicating candidates until the price or the position changes.
type Monitor struct {
	view     View
	params   policy.Params
	sink     Sink
	interval time.Duration
	logger   logging.Logger

	mu   sync.Mutex
	seen map[ledger.OutputRef]int64 // ref -> rate at last flag
}

// New builds a monitor over view for one policy deployment. A nil sink
// discards candidates, a non-positive interval falls back to
// DefaultInterval, and a nil logger falls back to the default logger.
func New(view View, params policy.Params, sink Sink, interval time.Duration, logger logging.Logger) (*Monitor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = NopSink{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.New("monitor")
	}
	return &Monitor{
		view:     view,
		params:   params,
		sink:     sink,
		interval: interval,
		logger:   logger,
		seen:     make(map[ledger.OutputRef]int64),
	}, nil
}

// Run sweeps until ctx is done: once at startup, then on every tick and
// on every index change signal.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("watching positions every %s", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Sweep()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("stopping")
			return ctx.Err()
		case <-ticker.C:
			m.Sweep()
		case <-m.view.Updates():
			m.Sweep()
		}
	}
}

// Sweep runs one pass over the live positions, flagging every position
// whose cap at the current price is below its debt. A position already
// flagged at this rate is not re-flagged; a position that recovers is
// forgotten, so a later price drop opens a fresh episode.
func (m *Monitor) Sweep() {
	price, ok := m.view.Price()
	if !ok {
		return
	}
	positions := m.view.Positions()

	m.mu.Lock()
	defer m.mu.Unlock()

	live := make(map[ledger.OutputRef]struct{}, len(positions))
	for _, pos := range positions {
		live[pos.Ref] = struct{}{}

		limit := policy.MaxMint(pos.Collateral, price.Rate, m.params.MinCollateralPercent)
		if limit >= pos.Debt {
			delete(m.seen, pos.Ref)
			continue
		}
		if m.seen[pos.Ref] == price.Rate {
			continue
		}
		m.seen[pos.Ref] = price.Rate

		m.logger.Info("liquidation candidate %s: debt %d over cap %d at rate %d",
			pos.Ref, pos.Debt, limit, price.Rate)
		m.sink.PublishLiquidation(Candidate{Position: pos, Rate: price.Rate, Cap: limit})
	}

	// Forget consumed positions so the map tracks only live refs.
	for ref := range m.seen {
		if _, ok := live[ref]; !ok {
			delete(m.seen, ref)
		}
	}
}
