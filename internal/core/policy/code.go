// Package policy implements the stablecoin issuance policy: a pure,
// deterministic decision over a resolved transaction context. Given a
// fixed configuration and a mode, Evaluate either accepts the proposed
// issuance change or rejects it with a classified reason.
package policy

import "fmt"

// Code classifies the outcome of a policy evaluation.
type Code int

// Outcome codes. Zero is acceptance; rejections are grouped from 100.
const (
	CodeAccepted Code = 0

	// CodeStructuralMismatch: the transaction does not have the required
	// shape: zero or multiple qualifying oracle or collateral matches.
	CodeStructuralMismatch Code = 100
	// CodeMissingDatum: a required datum is absent or undecodable.
	CodeMissingDatum Code = 101
	// CodeAmountViolation: an amount equality or bound failed.
	CodeAmountViolation Code = 102
	// CodeAuthorizationFailure: the required owner signature is absent.
	CodeAuthorizationFailure Code = 103
	// CodeIdentityMismatch: the position was issued under a different
	// minting policy.
	CodeIdentityMismatch Code = 104
	// CodeUndercollateralization: the position is still adequately
	// backed, so it cannot be liquidated.
	CodeUndercollateralization Code = 105
	// CodeInvalidMode: the redeemer mode is not one of Mint, Burn,
	// Liquidate.
	CodeInvalidMode Code = 106
)

// String returns the symbolic name of the code.
func (c Code) String() string {
	switch c {
	case CodeAccepted:
		return "Accepted"
	case CodeStructuralMismatch:
		return "StructuralMismatch"
	case CodeMissingDatum:
		return "MissingDatum"
	case CodeAmountViolation:
		return "AmountViolation"
	case CodeAuthorizationFailure:
		return "AuthorizationFailure"
	case CodeIdentityMismatch:
		return "IdentityMismatch"
	case CodeUndercollateralization:
		return "UndercollateralizationNotReached"
	case CodeInvalidMode:
		return "InvalidMode"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Message returns a human-readable description of the code.
func (c Code) Message() string {
	switch c {
	case CodeAccepted:
		return "The transaction is admissible."
	case CodeStructuralMismatch:
		return "Expected exactly one qualifying oracle or collateral match."
	case CodeMissingDatum:
		return "A required datum is absent or could not be decoded."
	case CodeAmountViolation:
		return "An amount check failed."
	case CodeAuthorizationFailure:
		return "The position owner did not sign the transaction."
	case CodeIdentityMismatch:
		return "The position records a different minting policy."
	case CodeUndercollateralization:
		return "The position is still adequately collateralized."
	case CodeInvalidMode:
		return "Unknown redeemer mode."
	default:
		return "Unknown outcome code."
	}
}

// IsAccepted reports whether the code is the acceptance code.
func (c Code) IsAccepted() bool {
	return c == CodeAccepted
}

// IsRejection reports whether the code classifies a rejection.
func (c Code) IsRejection() bool {
	return c >= CodeStructuralMismatch && c <= CodeInvalidMode
}
