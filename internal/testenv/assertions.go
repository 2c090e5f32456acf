package testenv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/policy"
)

// RequireAccepted asserts that every evaluated redeemer accepted.
func RequireAccepted(t *testing.T, res *engine.ApplyResult) {
	t.Helper()
	require.True(t, res.Accepted(),
		"Expected acceptance, got %s", res)
}

// RequireApplied asserts that the transaction was accepted and its
// effects written to the UTXO set.
func RequireApplied(t *testing.T, res *engine.ApplyResult) {
	t.Helper()
	RequireAccepted(t, res)
	require.True(t, res.Applied,
		"Expected the transaction to be applied: %s", res)
}

// RequireRejected asserts that evaluation stopped on a rejection with
// the given outcome code.
func RequireRejected(t *testing.T, res *engine.ApplyResult, code policy.Code) {
	t.Helper()
	require.False(t, res.Accepted(),
		"Expected rejection with %s, got acceptance: %s", code, res)
	require.NotEmpty(t, res.Verdicts,
		"Expected at least one verdict: %s", res)
	last := res.Verdicts[len(res.Verdicts)-1].Verdict
	require.Equal(t, code, last.Code,
		"Expected rejection code %s, got %s", code, last)
	require.False(t, res.Applied,
		"A rejected transaction must not be applied: %s", res)
}

// RequireBalance asserts the account's native holdings in base units.
func RequireBalance(t *testing.T, env *Env, acc *Account, expected int64) {
	t.Helper()
	actual := env.Balance(acc)
	require.Equal(t, expected, actual,
		"Account %s balance mismatch: expected %s, got %s",
		acc.Name, FormatCoins(expected), FormatCoins(actual))
}

// RequireAssetBalance asserts the account's holdings of one asset.
func RequireAssetBalance(t *testing.T, env *Env, acc *Account, asset ledger.AssetID, expected int64) {
	t.Helper()
	actual := env.AssetBalance(acc, asset)
	require.Equal(t, expected, actual,
		"Account %s holds %d of %s, expected %d",
		acc.Name, actual, asset, expected)
}

// RequirePosition asserts that a live position exists at ref with the
// given owner, debt and collateral.
func RequirePosition(t *testing.T, env *Env, ref ledger.OutputRef, owner *Account, debt, collateral int64) {
	t.Helper()
	pos, ok := env.Index().Get(ref)
	require.True(t, ok, "Expected a live position at %s", ref)
	require.Equal(t, owner.ID, pos.Owner,
		"Position %s owner mismatch: expected %s, got %s", ref, owner.ID, pos.Owner)
	require.Equal(t, debt, pos.Debt,
		"Position %s debt mismatch: expected %d, got %d", ref, debt, pos.Debt)
	require.Equal(t, collateral, pos.Collateral,
		"Position %s collateral mismatch: expected %s, got %s",
		ref, FormatCoins(collateral), FormatCoins(pos.Collateral))
}

// RequireNoPosition asserts that no live position exists at ref.
func RequireNoPosition(t *testing.T, env *Env, ref ledger.OutputRef) {
	t.Helper()
	_, ok := env.Index().Get(ref)
	require.False(t, ok, "Expected no live position at %s", ref)
}

// RequirePrice asserts the live oracle rate.
func RequirePrice(t *testing.T, env *Env, rate int64) {
	t.Helper()
	price, ok := env.Index().Price()
	require.True(t, ok, "Expected a live oracle price")
	require.Equal(t, rate, price.Rate,
		"Oracle rate mismatch: expected %d, got %d", rate, price.Rate)
}

// RequireNoPrice asserts that no oracle publication is live.
func RequireNoPrice(t *testing.T, env *Env) {
	t.Helper()
	_, ok := env.Index().Price()
	require.False(t, ok, "Expected no live oracle price")
}
