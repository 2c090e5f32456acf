// Package engine hosts the issuance policy: it turns submitted
// transactions into evaluation contexts, runs every named policy, and
// applies accepted transactions to the UTXO store.
//
// Apply is a fixed pipeline. Preflight checks the transaction on its own
// (shape, witnesses), preclaim resolves its inputs against the store, and
// only then do policies run. A transaction is applied or it is not: one
// rejecting redeemer discards the whole transaction.
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/crypto"
)

// Engine-level failures. These mean the transaction never reached a
// policy, or could not be written; policy outcomes travel as verdicts,
// never as errors.
var (
	ErrNilTransaction    = errors.New("malformed: nil transaction")
	ErrNoInputs          = errors.New("malformed: transaction spends no inputs")
	ErrDuplicateInput    = errors.New("malformed: duplicate input reference")
	ErrInputReferenced   = errors.New("malformed: reference input is also spent")
	ErrNegativeOutput    = errors.New("malformed: output carries a negative quantity")
	ErrMintNative        = errors.New("malformed: the native coin cannot be minted")
	ErrDuplicateRedeemer = errors.New("malformed: more than one redeemer for the same policy")
	ErrMissingRedeemer   = errors.New("malformed: minted policy has no redeemer")
	ErrUnbalanced        = errors.New("malformed: transaction does not conserve value")
	ErrBadWitness        = errors.New("bad auth: witness signature does not verify")
	ErrInputNotFound     = errors.New("no entry: input not in the UTXO set")
	ErrReferenceNotFound = errors.New("no entry: reference input not in the UTXO set")
	ErrUnknownPolicy     = errors.New("no entry: no policy registered for redeemer")
	ErrNilPolicy         = errors.New("engine: nil policy")
	ErrPolicyRegistered  = errors.New("engine: policy already registered")
)

// Config carries the engine switches.
type Config struct {
	// SkipSignatureVerification accepts every witness without checking
	// it. Signer identities are still derived from the witness keys, so
	// owner-signature rules still see the claimed signers. Test rigs and
	// standalone mode only.
	SkipSignatureVerification bool

	// AllowUnknownPolicies skips redeemers whose policy id has no
	// registered evaluator instead of failing the transaction.
	AllowUnknownPolicies bool

	// EnforceBalance requires every transaction to conserve value:
	// inputs plus mint must equal outputs, per asset.
	EnforceBalance bool
}

// Engine evaluates and applies transactions against one UTXO store.
// Apply calls are serialized; registration may happen at any time.
type Engine struct {
	store    Store
	cfg      Config
	events   Events
	recorder Recorder

	mu       sync.RWMutex
	policies map[ledger.PolicyID]*policy.Policy

	applyMu sync.Mutex
}

// New builds an engine over the given store. Hooks default to no-ops.
func New(store Store, cfg Config) *Engine {
	return &Engine{
		store:    store,
		cfg:      cfg,
		events:   NoOpEvents{},
		recorder: NoOpRecorder{},
		policies: make(map[ledger.PolicyID]*policy.Policy),
	}
}

// SetEvents installs the event hook. A nil hook restores the no-op.
func (e *Engine) SetEvents(ev Events) {
	if ev == nil {
		e.events = NoOpEvents{}
		return
	}
	e.events = ev
}

// SetRecorder installs the evaluation recorder. A nil hook restores the no-op.
func (e *Engine) SetRecorder(rec Recorder) {
	if rec == nil {
		e.recorder = NoOpRecorder{}
		return
	}
	e.recorder = rec
}

// Store returns the engine's UTXO store.
func (e *Engine) Store() Store {
	return e.store
}

// Config returns the engine switches.
func (e *Engine) Config() Config {
	return e.cfg
}

// Register adds a policy under its own minting identity.
func (e *Engine) Register(p *policy.Policy) error {
	if p == nil {
		return ErrNilPolicy
	}
	id := p.Self()
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.policies[id]; dup {
		return fmt.Errorf("%w: %s", ErrPolicyRegistered, id)
	}
	e.policies[id] = p
	return nil
}

// PolicyFor returns the registered policy for an id.
func (e *Engine) PolicyFor(id ledger.PolicyID) (*policy.Policy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.policies[id]
	return p, ok
}

// Policies lists the registered policy ids in byte order.
func (e *Engine) Policies() []ledger.PolicyID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]ledger.PolicyID, 0, len(e.policies))
	for id := range e.policies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}

// Evaluate runs the policies of a transaction without touching the store
// for writes. It shares Apply's pipeline up to and including policy
// evaluation, so the verdicts are exactly what a submission would get.
func (e *Engine) Evaluate(tx *ledger.Tx) (*ApplyResult, error) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	result, _, _, err := e.run(tx)
	return result, err
}

// Apply submits a transaction: preflight, preclaim, policy evaluation,
// and, when every redeemer accepts, the atomic store update.
func (e *Engine) Apply(tx *ledger.Tx) (*ApplyResult, error) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	result, consumed, produced, err := e.run(tx)
	if err != nil {
		return nil, err
	}
	if !result.Accepted() {
		return result, nil
	}

	if err := e.store.ApplyTx(result.TxHash, consumed, produced); err != nil {
		return nil, fmt.Errorf("apply tx %x: %w", result.TxHash[:8], err)
	}
	result.Applied = true

	applied := Applied{TxHash: result.TxHash, Consumed: consumed}
	applied.Produced = make([]ledger.Input, len(produced))
	for i, out := range produced {
		applied.Produced[i] = ledger.Input{
			Ref:    ledger.OutputRef{TxHash: result.TxHash, Index: uint32(i)},
			Output: out,
		}
	}
	e.events.PublishApplied(applied)

	return result, nil
}

// run drives the shared pipeline and returns the verdicts plus the
// effects an application would write.
func (e *Engine) run(tx *ledger.Tx) (*ApplyResult, []ledger.OutputRef, []ledger.Output, error) {
	signers, err := e.preflight(tx)
	if err != nil {
		return nil, nil, nil, err
	}

	inputs, refInputs, err := e.preclaim(tx)
	if err != nil {
		return nil, nil, nil, err
	}

	txHash, err := tx.Hash()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("malformed: encode transaction body: %w", err)
	}

	ctx := &ledger.Context{
		Inputs:          inputs,
		ReferenceInputs: refInputs,
		Outputs:         tx.Body.Outputs,
		Mint:            tx.Body.Mint,
		Signers:         signers,
	}

	result := &ApplyResult{TxHash: txHash}
	for _, r := range tx.Body.Redeemers {
		pol, ok := e.PolicyFor(r.Policy)
		if !ok {
			if e.cfg.AllowUnknownPolicies {
				continue
			}
			return nil, nil, nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, r.Policy)
		}

		mode, decodeErr := policy.DecodeMode(r.Data)
		var verdict policy.Verdict
		if decodeErr != nil {
			verdict = policy.Reject(policy.CodeInvalidMode, "redeemer payload does not decode as a mode")
		} else {
			verdict = pol.Evaluate(mode, ctx)
		}

		ev := Evaluation{
			TxHash:    txHash,
			Policy:    r.Policy,
			Mode:      mode,
			Verdict:   verdict,
			MintDelta: pol.MintDelta(ctx),
		}
		e.recorder.RecordEvaluation(ev)
		e.events.PublishEvaluation(ev)

		result.Verdicts = append(result.Verdicts, PolicyVerdict{Policy: r.Policy, Mode: mode, Verdict: verdict})
		if !verdict.Accepted() {
			break
		}
	}

	return result, tx.Body.Inputs, tx.Body.Outputs, nil
}

// preflight checks the transaction without state and returns the signer
// set derived from its witnesses.
func (e *Engine) preflight(tx *ledger.Tx) ([]ledger.EntityID, error) {
	if tx == nil {
		return nil, ErrNilTransaction
	}
	if len(tx.Body.Inputs) == 0 {
		return nil, ErrNoInputs
	}

	seen := make(map[ledger.OutputRef]struct{}, len(tx.Body.Inputs))
	for _, ref := range tx.Body.Inputs {
		if _, dup := seen[ref]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInput, ref)
		}
		seen[ref] = struct{}{}
	}
	for _, ref := range tx.Body.ReferenceInputs {
		if _, spent := seen[ref]; spent {
			return nil, fmt.Errorf("%w: %s", ErrInputReferenced, ref)
		}
	}

	for i, out := range tx.Body.Outputs {
		for id, amount := range out.Value {
			if amount < 0 {
				return nil, fmt.Errorf("%w: output %d asset %s", ErrNegativeOutput, i, id)
			}
		}
	}

	if tx.Body.Mint.AmountOf(ledger.NativeAssetID) != 0 {
		return nil, ErrMintNative
	}
	redeemed := make(map[ledger.PolicyID]struct{}, len(tx.Body.Redeemers))
	for _, r := range tx.Body.Redeemers {
		if _, dup := redeemed[r.Policy]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRedeemer, r.Policy)
		}
		redeemed[r.Policy] = struct{}{}
	}
	for id, amount := range tx.Body.Mint {
		if amount == 0 {
			continue
		}
		if _, ok := redeemed[id.Policy]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingRedeemer, id.Policy)
		}
	}

	return e.verifyWitnesses(tx)
}

// verifyWitnesses checks every signature over the signing bytes and maps
// the witness keys to entity ids.
func (e *Engine) verifyWitnesses(tx *ledger.Tx) ([]ledger.EntityID, error) {
	signers := make([]ledger.EntityID, 0, len(tx.Witnesses))
	var signingBytes []byte
	if !e.cfg.SkipSignatureVerification && len(tx.Witnesses) > 0 {
		raw, err := tx.SigningBytes()
		if err != nil {
			return nil, fmt.Errorf("malformed: encode signing payload: %w", err)
		}
		signingBytes = raw
	}

	for i, w := range tx.Witnesses {
		if !e.cfg.SkipSignatureVerification {
			if !crypto.Verify(w.Scheme, w.PubKey, signingBytes, w.Sig) {
				return nil, fmt.Errorf("%w: witness %d", ErrBadWitness, i)
			}
		}
		signers = append(signers, ledger.EntityIDFromPublicKey(w.PubKey))
	}
	return signers, nil
}

// preclaim resolves the transaction's inputs against the store.
func (e *Engine) preclaim(tx *ledger.Tx) (inputs, refInputs []ledger.Input, err error) {
	inputs = make([]ledger.Input, 0, len(tx.Body.Inputs))
	for _, ref := range tx.Body.Inputs {
		out, ok, err := e.store.Get(ref)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve input %s: %w", ref, err)
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrInputNotFound, ref)
		}
		inputs = append(inputs, ledger.Input{Ref: ref, Output: out})
	}

	refInputs = make([]ledger.Input, 0, len(tx.Body.ReferenceInputs))
	for _, ref := range tx.Body.ReferenceInputs {
		out, ok, err := e.store.Get(ref)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve reference input %s: %w", ref, err)
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrReferenceNotFound, ref)
		}
		refInputs = append(refInputs, ledger.Input{Ref: ref, Output: out})
	}

	if e.cfg.EnforceBalance {
		if err := checkBalance(tx, inputs); err != nil {
			return nil, nil, err
		}
	}
	return inputs, refInputs, nil
}

// checkBalance verifies per-asset conservation: inputs plus mint equal
// outputs.
func checkBalance(tx *ledger.Tx, inputs []ledger.Input) error {
	diff := ledger.NewValue()
	for _, in := range inputs {
		diff.Merge(in.Output.Value)
	}
	diff.Merge(tx.Body.Mint)
	for _, out := range tx.Body.Outputs {
		for id, amount := range out.Value {
			diff.Add(id, -amount)
		}
	}
	if !diff.IsZero() {
		return ErrUnbalanced
	}
	return nil
}
