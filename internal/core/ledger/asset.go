package ledger

import "fmt"

// UnitsPerCoin is the number of base units in one native coin. All
// on-ledger native quantities are counted in base units.
const UnitsPerCoin int64 = 1_000_000

// MaxTokenNameLen bounds the byte length of a token name.
const MaxTokenNameLen = 32

// TokenName names an asset class under a minting policy. It is a byte
// string; string typing keeps AssetID comparable and map-key safe.
type TokenName string

// Valid reports whether the name fits the on-ledger length bound.
func (n TokenName) Valid() bool {
	return len(n) <= MaxTokenNameLen
}

// AssetID identifies an asset class: the issuing policy plus the token
// name. The zero AssetID denotes the ledger's native coin.
type AssetID struct {
	_struct bool `codec:",toarray"`
	Policy  PolicyID
	Name    TokenName
}

// NativeAssetID is the asset id of the native coin.
var NativeAssetID = AssetID{}

// IsNative reports whether the asset is the native coin.
func (a AssetID) IsNative() bool {
	return a == NativeAssetID
}

// String renders "native" or "policyHex.name".
func (a AssetID) String() string {
	if a.IsNative() {
		return "native"
	}
	return fmt.Sprintf("%s.%s", a.Policy, string(a.Name))
}
