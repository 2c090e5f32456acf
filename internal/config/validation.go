package config

import (
	"fmt"
	"net"

	"github.com/halvalla/stabled/internal/core/ledger"
)

// Validate performs validation on the complete configuration. It checks
// formats and ranges; whether the policy section is complete is decided
// by the commands that need it, so defaults alone stay valid.
func (c *Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy section: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database section: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history section: %w", err)
	}
	if err := c.RPC.Validate(); err != nil {
		return fmt.Errorf("rpc section: %w", err)
	}
	if err := c.GRPC.Validate(); err != nil {
		return fmt.Errorf("grpc section: %w", err)
	}
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor section: %w", err)
	}

	// The subscription streams ride the RPC listener.
	if c.WebSocket.Enabled && !c.RPC.Enabled {
		return fmt.Errorf("websocket requires rpc to be enabled")
	}
	return nil
}

// Validate checks identity formats and the collateral ratio. Unset
// identities are allowed here; Params and ID reject them when a command
// actually needs the deployment.
func (c PolicyConfig) Validate() error {
	if c.PolicyID != "" {
		if _, err := ledger.PolicyIDFromHex(c.PolicyID); err != nil {
			return fmt.Errorf("policy_id: %w", err)
		}
	}
	if c.OracleEntity != "" {
		if _, err := ledger.EntityIDFromHex(c.OracleEntity); err != nil {
			return fmt.Errorf("oracle_entity: %w", err)
		}
	}
	if c.VaultEntity != "" {
		if _, err := ledger.EntityIDFromHex(c.VaultEntity); err != nil {
			return fmt.Errorf("vault_entity: %w", err)
		}
	}
	if c.OracleEntity != "" && c.OracleEntity == c.VaultEntity {
		return fmt.Errorf("oracle_entity and vault_entity must differ")
	}
	if c.MinCollateralPercent <= 0 {
		return fmt.Errorf("min_collateral_percent must be positive, got %d", c.MinCollateralPercent)
	}
	return nil
}

// Validate checks the backend selection.
func (c DatabaseConfig) Validate() error {
	switch c.Backend {
	case "memory":
	case "pebble", "leveldb":
		if c.Path == "" {
			return fmt.Errorf("backend %q requires a path", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q (supported: memory, pebble, leveldb)", c.Backend)
	}
	switch c.Compression {
	case "", "none", "lz4":
	default:
		return fmt.Errorf("unknown compression %q (supported: none, lz4)", c.Compression)
	}
	if c.CacheMB < 0 {
		return fmt.Errorf("cache_mb cannot be negative, got %d", c.CacheMB)
	}
	if c.UTXOCacheSize < 0 {
		return fmt.Errorf("utxo_cache_size cannot be negative, got %d", c.UTXOCacheSize)
	}
	return nil
}

// Validate checks the driver selection.
func (c HistoryConfig) Validate() error {
	switch c.Driver {
	case "", "none":
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("sqlite driver requires a path")
		}
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("postgres driver requires a dsn")
		}
	default:
		return fmt.Errorf("unknown driver %q (supported: none, sqlite, postgres)", c.Driver)
	}
	return nil
}

// Validate checks the listener settings.
func (c RPCConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := validateAddress(c.Address); err != nil {
		return err
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	return nil
}

// Validate checks the listener settings.
func (c GRPCConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validateAddress(c.Address)
}

// Validate checks the sweep interval.
func (c MonitorConfig) Validate() error {
	if c.Enabled && c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval_seconds must be positive, got %d", c.IntervalSeconds)
	}
	return nil
}

func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}
	return nil
}
