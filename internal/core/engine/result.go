package engine

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/policy"
)

// PolicyVerdict is the outcome of one registered policy for one redeemer.
type PolicyVerdict struct {
	Policy  ledger.PolicyID
	Mode    policy.Mode
	Verdict policy.Verdict
}

func (pv PolicyVerdict) String() string {
	return fmt.Sprintf("%s %s: %s", pv.Policy, pv.Mode, pv.Verdict)
}

// ApplyResult is the outcome of submitting one transaction to the engine.
//
// Verdicts holds one entry per evaluated redeemer, in transaction order.
// Evaluation stops at the first rejection, so a rejected transaction may
// carry fewer verdicts than redeemers. Applied reports whether the
// transaction's effects were written to the UTXO set.
type ApplyResult struct {
	TxHash   [32]byte
	Verdicts []PolicyVerdict
	Applied  bool
}

// Accepted reports whether every evaluated redeemer was accepted.
func (r *ApplyResult) Accepted() bool {
	for _, pv := range r.Verdicts {
		if !pv.Verdict.Accepted() {
			return false
		}
	}
	return true
}

func (r *ApplyResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tx %s applied=%t", hex.EncodeToString(r.TxHash[:8]), r.Applied)
	for _, pv := range r.Verdicts {
		b.WriteString("; ")
		b.WriteString(pv.String())
	}
	return b.String()
}
