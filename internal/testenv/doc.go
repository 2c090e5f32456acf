// Package testenv provides test infrastructure for policy and engine
// testing.
//
// It assembles the full submission pipeline over an in-memory UTXO store
// and offers deterministic accounts, transaction builders and assertion
// helpers so that tests read as scenarios rather than plumbing.
//
// # Overview
//
// The testenv package provides:
//   - Env: an engine, policy, store and index wired together
//   - Account: deterministic test accounts with keypairs
//   - Amount helpers: conversion between whole coins and base units
//   - TxBuilder: a fluent builder for hand-shaped transactions
//   - Assertions: helpers for common result and state checks
//
// # Basic Usage
//
//	func TestMint(t *testing.T) {
//	    env := testenv.NewEnv(t)
//
//	    alice := testenv.NewAccount("alice")
//	    env.Fund(alice)
//	    env.PostPrice(100)
//
//	    pos := env.Mint(alice, testenv.Coins(150), 100)
//
//	    testenv.RequirePosition(t, env, pos, alice, 100, testenv.Coins(150))
//	    testenv.RequireAssetBalance(t, env, alice, env.Stablecoin(), 100)
//	}
//
// # Env
//
// Env manages the test deployment. It seeds genesis outputs for funding,
// routes submissions through the engine, and keeps the position index
// current from applied events.
//
//	env := testenv.NewEnv(t)
//	env.Fund(alice)                    // 1000 coins of genesis funding
//	env.FundAmount(bob, Coins(50))     // a specific amount
//	env.PostPrice(185)                 // oracle publishes 1 coin = 1.85
//	env.Balance(alice)                 // native holdings in base units
//	env.Submit(tx)                     // full pipeline, fatal on engine error
//
// The oracle publication is a real transaction signed by the env's oracle
// account, so reposting a price exercises the same spend-and-replace path
// a production oracle uses.
//
// # Accounts
//
// Account derivation is deterministic: the same name always produces the
// same keypair, making tests reproducible.
//
//	alice := testenv.NewAccount("alice")   // ed25519 by default
//	carol := testenv.NewAccountWithScheme("carol", crypto.SchemeSecp256k1)
//
// # Transaction Builders
//
// TxBuilder shapes arbitrary transactions for tests that need more than
// the happy-path helpers:
//
//	tx := testenv.NewTx().
//	    Spend(ref).
//	    Reference(env.PriceRef()).
//	    PayToWithDatum(env.VaultEntity(), ledger.NativeValue(c), datum).
//	    Mint(env.Stablecoin(), amount).
//	    Redeem(env.PolicyID(), policy.ModeMint).
//	    SignedBy(alice).
//	    Build()
//
// # Assertions
//
// Helper functions for common checks:
//
//	testenv.RequireAccepted(t, res)
//	testenv.RequireRejected(t, res, policy.CodeAmountViolation)
//	testenv.RequireBalance(t, env, alice, testenv.Coins(900))
//	testenv.RequirePosition(t, env, ref, alice, 100, testenv.Coins(150))
//	testenv.RequirePrice(t, env, 185)
package testenv
