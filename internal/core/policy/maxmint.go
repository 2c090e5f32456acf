package policy

import "github.com/halvalla/stabled/internal/core/ledger"

// MaxMint returns the issuance cap for a collateral amount at the given
// oracle rate and minimum collateral percent:
//
//	step1  = collateral / minCollateralPercent
//	step2  = step1 * rate
//	result = step2 / 1_000_000
//
// The step order is a frozen contract. Both divisions truncate, and
// truncation points depend on the order, so algebraically equivalent
// forms (multiply first, rational arithmetic, floating point) produce
// different caps for some inputs. Do not reorder.
//
// Collateral is counted in native base units, rate in hundredths of the
// reference currency per coin; the percent and cent scalings cancel, so
// the result is in whole stablecoin units.
func MaxMint(collateral, rate, minCollateralPercent int64) int64 {
	step1 := collateral / minCollateralPercent
	step2 := step1 * rate
	return step2 / ledger.UnitsPerCoin
}
