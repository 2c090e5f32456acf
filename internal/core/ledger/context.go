package ledger

// Context is the fully resolved view of one transaction handed to a
// policy for evaluation. It is a pure value: building it does all the
// I/O, evaluating it does none.
type Context struct {
	// Inputs are the consumed outputs, resolved, in transaction order.
	Inputs []Input
	// ReferenceInputs are read-only outputs, resolved, in transaction
	// order. They are inspected but never consumed.
	ReferenceInputs []Input
	// Outputs are the produced outputs in transaction order.
	Outputs []Output
	// Mint holds the net minted quantity per asset. Negative entries are
	// burns.
	Mint Value
	// Signers are the entity ids whose witnesses verified.
	Signers []EntityID
}

// MintDelta returns the signed net minted quantity of the given asset
// class, zero when the transaction does not touch it.
func (c *Context) MintDelta(policy PolicyID, name TokenName) int64 {
	return c.Mint.AmountOf(AssetID{Policy: policy, Name: name})
}

// SignedBy reports whether entity is among the verified signers.
func (c *Context) SignedBy(entity EntityID) bool {
	for _, s := range c.Signers {
		if s == entity {
			return true
		}
	}
	return false
}
