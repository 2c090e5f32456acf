package policy

import (
	"errors"

	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/oracle"
	"github.com/halvalla/stabled/internal/core/vault"
)

// ErrSelfIDZero is returned when constructing a policy without an identity.
var ErrSelfIDZero = errors.New("policy: self policy id must be set")

// Fixed rule details. Each rejecting rule owns exactly one string so that
// verdicts carry no context-dependent formatting.
const (
	detailOracleScan          = "expected exactly one oracle reference input"
	detailVaultOutputScan     = "expected exactly one collateral output at the vault"
	detailVaultInputScan      = "expected exactly one collateral input at the vault"
	detailOracleDatum         = "oracle price not found"
	detailPositionDatum       = "collateral position not found"
	detailMintNotPositive     = "mint amount must be positive"
	detailExceedsCap          = "exceeds issuance cap"
	detailWrongPolicy         = "position issued under a different minting policy"
	detailDebtMismatch        = "recorded debt does not match minted amount"
	detailBurnMismatch        = "burned amount does not match recorded debt"
	detailOwnerUnsigned       = "missing position owner signature"
	detailNotBurning          = "minting instead of burning"
	detailStillCollateralized = "collateral still meets the required ratio"
	detailUnknownMode         = "redeemer mode is not mint, burn or liquidate"
)

// Policy is one deployed instance of the issuance policy: a configuration
// plus its own minting-policy identity. Construction is the only write;
// evaluation is pure and safe for concurrent use.
type Policy struct {
	params Params
	self   ledger.PolicyID
}

// New builds a policy from a validated configuration and its identity.
func New(params Params, self ledger.PolicyID) (*Policy, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if self.IsZero() {
		return nil, ErrSelfIDZero
	}
	return &Policy{params: params, self: self}, nil
}

// Params returns the deployment configuration.
func (p *Policy) Params() Params {
	return p.params
}

// Self returns the policy's minting identity.
func (p *Policy) Self() ledger.PolicyID {
	return p.self
}

// MintDelta returns the net quantity of this policy's stablecoin minted by
// the context, negative for burns.
func (p *Policy) MintDelta(ctx *ledger.Context) int64 {
	return ctx.MintDelta(p.self, vault.StablecoinTokenName)
}

// Evaluate applies the rule set selected by mode to the context.
//
// Rules run in a fixed order and the verdict is the first failing rule's.
// Structural scans always run before any value or datum rule, so a
// transaction with the wrong shape is rejected as StructuralMismatch no
// matter what its amounts, datums or signatures look like. Every scan is
// one linear pass over the slice it inspects.
func (p *Policy) Evaluate(mode Mode, ctx *ledger.Context) Verdict {
	switch mode {
	case ModeMint:
		return p.evalMint(ctx)
	case ModeBurn:
		return p.evalBurn(ctx)
	case ModeLiquidate:
		return p.evalLiquidate(ctx)
	default:
		return Reject(CodeInvalidMode, detailUnknownMode)
	}
}

// evalMint admits creating mintDelta new stablecoins against the single
// collateral output produced at the vault, provided the output covers the
// issuance at the oracle price, its datum records exactly this issuance
// under this policy, and the recorded owner signed.
func (p *Policy) evalMint(ctx *ledger.Context) Verdict {
	oracleAt, err := oracle.Locate(ctx.ReferenceInputs, p.params.OracleEntity)
	if err != nil {
		return Reject(CodeStructuralMismatch, detailOracleScan)
	}
	collateralAt, err := vault.FindOutput(ctx.Outputs, p.params.VaultEntity)
	if err != nil {
		return Reject(CodeStructuralMismatch, detailVaultOutputScan)
	}
	price, ok := oracleAt.Price()
	if !ok {
		return Reject(CodeMissingDatum, detailOracleDatum)
	}

	mintDelta := p.MintDelta(ctx)
	if mintDelta <= 0 {
		return Reject(CodeAmountViolation, detailMintNotPositive)
	}
	if MaxMint(collateralAt.Collateral(), price.Rate, p.params.MinCollateralPercent) < mintDelta {
		return Reject(CodeAmountViolation, detailExceedsCap)
	}

	position, ok := collateralAt.Position()
	if !ok {
		return Reject(CodeMissingDatum, detailPositionDatum)
	}
	if position.Policy != p.self {
		return Reject(CodeIdentityMismatch, detailWrongPolicy)
	}
	if position.Amount != mintDelta {
		return Reject(CodeAmountViolation, detailDebtMismatch)
	}
	if !ctx.SignedBy(position.Owner) {
		return Reject(CodeAuthorizationFailure, detailOwnerUnsigned)
	}
	return Accept()
}

// evalBurn admits retiring stablecoins against the single collateral
// input consumed from the vault. The burn must extinguish the recorded
// debt exactly and carry the owner's signature. The oracle is never
// consulted: closing a position at full debt is allowed at any price.
func (p *Policy) evalBurn(ctx *ledger.Context) Verdict {
	collateralAt, err := vault.FindInput(ctx.Inputs, p.params.VaultEntity)
	if err != nil {
		return Reject(CodeStructuralMismatch, detailVaultInputScan)
	}
	position, ok := collateralAt.Position()
	if !ok {
		return Reject(CodeMissingDatum, detailPositionDatum)
	}

	mintDelta := p.MintDelta(ctx)
	if -position.Amount != mintDelta {
		return Reject(CodeAmountViolation, detailBurnMismatch)
	}
	if !ctx.SignedBy(position.Owner) {
		return Reject(CodeAuthorizationFailure, detailOwnerUnsigned)
	}
	if mintDelta >= 0 {
		return Reject(CodeAmountViolation, detailNotBurning)
	}
	return Accept()
}

// evalLiquidate admits seizing the single collateral input consumed from
// the vault once its collateral no longer covers the recorded debt at the
// oracle price. There is no signature rule on this path: any party may
// liquidate once the threshold is breached.
func (p *Policy) evalLiquidate(ctx *ledger.Context) Verdict {
	oracleAt, err := oracle.Locate(ctx.ReferenceInputs, p.params.OracleEntity)
	if err != nil {
		return Reject(CodeStructuralMismatch, detailOracleScan)
	}
	collateralAt, err := vault.FindInput(ctx.Inputs, p.params.VaultEntity)
	if err != nil {
		return Reject(CodeStructuralMismatch, detailVaultInputScan)
	}
	price, ok := oracleAt.Price()
	if !ok {
		return Reject(CodeMissingDatum, detailOracleDatum)
	}
	position, ok := collateralAt.Position()
	if !ok {
		return Reject(CodeMissingDatum, detailPositionDatum)
	}

	mintDelta := p.MintDelta(ctx)
	if -position.Amount != mintDelta {
		return Reject(CodeAmountViolation, detailBurnMismatch)
	}
	if MaxMint(collateralAt.Collateral(), price.Rate, p.params.MinCollateralPercent) >= -mintDelta {
		return Reject(CodeUndercollateralization, detailStillCollateralized)
	}
	if mintDelta >= 0 {
		return Reject(CodeAmountViolation, detailNotBurning)
	}
	return Accept()
}
