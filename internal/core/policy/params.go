package policy

import (
	"errors"

	"github.com/halvalla/stabled/internal/core/ledger"
)

var (
	// ErrOracleEntityZero is returned when the oracle entity is unset.
	ErrOracleEntityZero = errors.New("params: oracle entity id must be set")
	// ErrVaultEntityZero is returned when the vault entity is unset.
	ErrVaultEntityZero = errors.New("params: vault entity id must be set")
	// ErrEntitiesEqual is returned when oracle and vault share an id.
	ErrEntitiesEqual = errors.New("params: oracle and vault entities must differ")
	// ErrBadCollateralPercent is returned for a non-positive ratio.
	ErrBadCollateralPercent = errors.New("params: min collateral percent must be positive")
)

// Params is the deployment configuration of one policy instance. It is
// bound once at construction and never mutated; a different configuration
// is a different policy with a different identity.
type Params struct {
	// OracleEntity locks the oracle's price publication outputs.
	OracleEntity ledger.EntityID
	// VaultEntity locks collateral position outputs.
	VaultEntity ledger.EntityID
	// MinCollateralPercent is the minimum collateral-to-debt ratio in
	// percent, e.g. 150 for 150%.
	MinCollateralPercent int64
}

// Validate checks the configuration is usable.
func (p Params) Validate() error {
	if p.OracleEntity.IsZero() {
		return ErrOracleEntityZero
	}
	if p.VaultEntity.IsZero() {
		return ErrVaultEntityZero
	}
	if p.OracleEntity == p.VaultEntity {
		return ErrEntitiesEqual
	}
	if p.MinCollateralPercent <= 0 {
		return ErrBadCollateralPercent
	}
	return nil
}
