package ledger

// Value is a multi-asset bag mapping asset ids to signed quantities.
// Positive quantities are holdings or mints; negative quantities appear
// only in mint fields, where they denote burns. Zero entries are pruned
// so that IsZero and equality behave.
type Value map[AssetID]int64

// NewValue returns an empty value.
func NewValue() Value {
	return make(Value)
}

// NativeValue returns a value holding amount base units of the native coin.
func NativeValue(amount int64) Value {
	v := make(Value, 1)
	v.Add(NativeAssetID, amount)
	return v
}

// AmountOf returns the quantity of the given asset, zero when absent.
// Safe on a nil Value.
func (v Value) AmountOf(id AssetID) int64 {
	return v[id]
}

// Native returns the native-coin quantity.
func (v Value) Native() int64 {
	return v[NativeAssetID]
}

// Add accumulates amount onto the asset's quantity, pruning the entry if
// it lands on zero.
func (v Value) Add(id AssetID, amount int64) {
	next := v[id] + amount
	if next == 0 {
		delete(v, id)
		return
	}
	v[id] = next
}

// Merge accumulates every entry of other into v.
func (v Value) Merge(other Value) {
	for id, amount := range other {
		v.Add(id, amount)
	}
}

// Clone returns an independent copy.
func (v Value) Clone() Value {
	out := make(Value, len(v))
	for id, amount := range v {
		out[id] = amount
	}
	return out
}

// IsZero reports whether the value holds no assets.
func (v Value) IsZero() bool {
	return len(v) == 0
}
