// Package index maintains an off-ledger view of the live collateral
// positions and the latest oracle price for one policy deployment.
//
// The index is operational tooling: it serves RPC queries and feeds the
// liquidation monitor. It never participates in validation, so it may
// lag the store briefly without harm. State is rebuilt from a full UTXO
// scan at startup and kept current from the engine's applied events.
package index

import (
	"bytes"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/oracle"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/core/vault"
)

// Position is one live collateral position.
type Position struct {
	Ref        ledger.OutputRef
	Owner      ledger.EntityID
	Debt       int64
	Collateral int64
	Policy     ledger.PolicyID
}

// Ratio returns the collateral-to-debt ratio in percent at the given
// oracle rate. The rate's hundredths cancel against the percent scaling,
// so the result is collateral*rate/(debt*UnitsPerCoin). Display only;
// consensus arithmetic stays in the policy and never leaves int64.
func (p Position) Ratio(rate int64) decimal.Decimal {
	if p.Debt <= 0 || rate <= 0 {
		return decimal.Zero
	}
	value := decimal.NewFromInt(p.Collateral).Mul(decimal.NewFromInt(rate))
	debt := decimal.NewFromInt(p.Debt).Mul(decimal.NewFromInt(ledger.UnitsPerCoin))
	return value.Div(debt)
}

// Price is the latest oracle observation and the output publishing it.
type Price struct {
	Ref  ledger.OutputRef
	Rate int64
}

// Scanner is the UTXO iteration surface Rebuild needs; the UTXO store
// satisfies it.
type Scanner interface {
	ForEach(fn func(ledger.Input) error) error
}

// Index is the mutex-guarded position view. It implements engine.Events
// so it can be wired directly as (or fanned into) the engine's event
// sink.
type Index struct {
	params policy.Params

	mu        sync.RWMutex
	positions map[ledger.OutputRef]Position
	price     Price
	hasPrice  bool

	updates chan struct{}
}

var _ engine.Events = (*Index)(nil)

// New builds an empty index for one policy deployment.
func New(params policy.Params) (*Index, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Index{
		params:    params,
		positions: make(map[ledger.OutputRef]Position),
		updates:   make(chan struct{}, 1),
	}, nil
}

// Rebuild replaces the index state from a full scan of the UTXO set.
//
// Outputs at the vault entity without a decodable position datum are
// skipped: the policy can never accept them, so they are not positions.
// If several oracle publications are live, the one with the greatest ref
// wins, keeping rebuilds deterministic regardless of scan order.
func (i *Index) Rebuild(store Scanner) error {
	positions := make(map[ledger.OutputRef]Position)
	var price Price
	hasPrice := false

	err := store.ForEach(func(in ledger.Input) error {
		if pos, ok := i.positionOf(in); ok {
			positions[in.Ref] = pos
		}
		if p, ok := i.priceOf(in); ok {
			if !hasPrice || bytes.Compare(p.Ref.Key(), price.Ref.Key()) > 0 {
				price = p
				hasPrice = true
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	i.mu.Lock()
	i.positions = positions
	i.price = price
	i.hasPrice = hasPrice
	i.mu.Unlock()
	i.notify()
	return nil
}

// ApplyEvent folds one applied transaction into the view: consumed refs
// drop positions (and the price publication, if spent), produced outputs
// add positions and replace the price.
func (i *Index) ApplyEvent(ev engine.Applied) {
	i.mu.Lock()
	changed := false
	for _, ref := range ev.Consumed {
		if _, ok := i.positions[ref]; ok {
			delete(i.positions, ref)
			changed = true
		}
		if i.hasPrice && i.price.Ref == ref {
			i.hasPrice = false
			changed = true
		}
	}
	for _, in := range ev.Produced {
		if pos, ok := i.positionOf(in); ok {
			i.positions[in.Ref] = pos
			changed = true
		}
		if p, ok := i.priceOf(in); ok {
			i.price = p
			i.hasPrice = true
			changed = true
		}
	}
	i.mu.Unlock()

	if changed {
		i.notify()
	}
}

// PublishApplied implements engine.Events.
func (i *Index) PublishApplied(ev engine.Applied) {
	i.ApplyEvent(ev)
}

// PublishEvaluation implements engine.Events. Verdicts do not change the
// UTXO view, so it is a no-op.
func (i *Index) PublishEvaluation(engine.Evaluation) {}

// Get returns the position at ref.
func (i *Index) Get(ref ledger.OutputRef) (Position, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	pos, ok := i.positions[ref]
	return pos, ok
}

// Positions returns all live positions ordered by ref.
func (i *Index) Positions() []Position {
	i.mu.RLock()
	out := make([]Position, 0, len(i.positions))
	for _, pos := range i.positions {
		out = append(out, pos)
	}
	i.mu.RUnlock()

	sortPositions(out)
	return out
}

// PositionsByOwner returns the owner's live positions ordered by ref.
func (i *Index) PositionsByOwner(owner ledger.EntityID) []Position {
	i.mu.RLock()
	var out []Position
	for _, pos := range i.positions {
		if pos.Owner == owner {
			out = append(out, pos)
		}
	}
	i.mu.RUnlock()

	sortPositions(out)
	return out
}

// Price returns the latest oracle observation, if one is live.
func (i *Index) Price() (Price, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.price, i.hasPrice
}

// Len returns the number of live positions.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.positions)
}

// Updates returns the coalesced change signal: one token is readable
// after any batch of changes since the last receive.
func (i *Index) Updates() <-chan struct{} {
	return i.updates
}

func (i *Index) positionOf(in ledger.Input) (Position, bool) {
	if in.Output.Address != i.params.VaultEntity {
		return Position{}, false
	}
	found := vault.Found{Ref: in.Ref, Output: in.Output}
	pos, ok := found.Position()
	if !ok {
		return Position{}, false
	}
	return Position{
		Ref:        in.Ref,
		Owner:      pos.Owner,
		Debt:       pos.Amount,
		Collateral: found.Collateral(),
		Policy:     pos.Policy,
	}, true
}

func (i *Index) priceOf(in ledger.Input) (Price, bool) {
	if in.Output.Address != i.params.OracleEntity {
		return Price{}, false
	}
	found := oracle.Found{Ref: in.Ref, Output: in.Output}
	price, ok := found.Price()
	if !ok {
		return Price{}, false
	}
	return Price{Ref: in.Ref, Rate: price.Rate}, true
}

func (i *Index) notify() {
	select {
	case i.updates <- struct{}{}:
	default:
	}
}

func sortPositions(positions []Position) {
	sort.Slice(positions, func(a, b int) bool {
		return bytes.Compare(positions[a].Ref.Key(), positions[b].Ref.Key()) < 0
	})
}
