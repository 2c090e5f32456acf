package testenv

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/halvalla/stabled/internal/core/ledger"
)

// Coins converts whole native coins to base units.
func Coins(n int64) int64 {
	return n * ledger.UnitsPerCoin
}

// Units passes base units through unchanged. It exists so that mixed
// amounts read uniformly at call sites.
func Units(n int64) int64 {
	return n
}

// FormatCoins formats base units as a human-readable coin amount.
// For example, 1500000 units becomes "1.5 coins (1500000 units)".
func FormatCoins(units int64) string {
	coins := decimal.New(units, -6)
	return fmt.Sprintf("%s coins (%d units)", coins, units)
}
