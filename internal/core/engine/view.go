package engine

import "github.com/halvalla/stabled/internal/core/ledger"

// View provides read access to the live UTXO set.
type View interface {
	// Get resolves an output reference. The second result reports
	// whether the reference is live.
	Get(ref ledger.OutputRef) (ledger.Output, bool, error)

	// Contains reports whether the reference is live.
	Contains(ref ledger.OutputRef) (bool, error)
}

// Store is a View that can atomically apply one transaction's effects:
// consume the spent references and insert the produced outputs under the
// transaction hash.
type Store interface {
	View

	ApplyTx(txHash [32]byte, consumed []ledger.OutputRef, produced []ledger.Output) error
}
