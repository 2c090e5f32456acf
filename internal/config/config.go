// Package config loads the node configuration: built-in defaults, then
// an optional stabled.toml, then STABLED_-prefixed environment
// overrides. Section structs convert themselves into the domain
// configurations the components consume.
package config

import (
	"errors"
	"time"

	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/storage/history"
	"github.com/halvalla/stabled/internal/storage/kv"
)

// Config represents the complete stabled configuration.
type Config struct {
	// 1. Node behaviour
	Node NodeConfig `toml:"node" mapstructure:"node"`

	// 2. Policy deployment
	Policy PolicyConfig `toml:"policy" mapstructure:"policy"`

	// 3. Storage
	Database DatabaseConfig `toml:"database" mapstructure:"database"`
	History  HistoryConfig  `toml:"history" mapstructure:"history"`

	// 4. Serving surfaces
	RPC       RPCConfig       `toml:"rpc" mapstructure:"rpc"`
	WebSocket WebSocketConfig `toml:"websocket" mapstructure:"websocket"`
	GRPC      GRPCConfig      `toml:"grpc" mapstructure:"grpc"`

	// 5. Background jobs
	Monitor MonitorConfig `toml:"monitor" mapstructure:"monitor"`

	// configFile is the file the configuration was loaded from, empty
	// when running on defaults alone.
	configFile string `toml:"-" mapstructure:"-"`
}

// ConfigFile returns the path of the loaded configuration file, empty
// when none was found.
func (c *Config) ConfigFile() string {
	return c.configFile
}

// NodeConfig controls engine behaviour.
type NodeConfig struct {
	// Standalone accepts every witness without verifying signatures.
	// Local development and test harnesses only.
	Standalone bool `toml:"standalone" mapstructure:"standalone"`

	// AllowUnknownPolicies skips redeemers naming unregistered policies
	// instead of rejecting the transaction.
	AllowUnknownPolicies bool `toml:"allow_unknown_policies" mapstructure:"allow_unknown_policies"`

	// EnforceBalance requires submitted transactions to conserve value.
	EnforceBalance bool `toml:"enforce_balance" mapstructure:"enforce_balance"`
}

// PolicyConfig identifies the policy deployment this node serves. The
// identities are 40-character hex strings.
type PolicyConfig struct {
	PolicyID             string `toml:"policy_id" mapstructure:"policy_id"`
	OracleEntity         string `toml:"oracle_entity" mapstructure:"oracle_entity"`
	VaultEntity          string `toml:"vault_entity" mapstructure:"vault_entity"`
	MinCollateralPercent int64  `toml:"min_collateral_percent" mapstructure:"min_collateral_percent"`
}

// ErrPolicyIncomplete is returned when a command needs the policy
// deployment but the configuration does not name it.
var ErrPolicyIncomplete = errors.New("config: policy_id, oracle_entity and vault_entity must be configured")

// ID parses the configured policy identity.
func (c PolicyConfig) ID() (ledger.PolicyID, error) {
	if c.PolicyID == "" {
		return ledger.PolicyID{}, ErrPolicyIncomplete
	}
	return ledger.PolicyIDFromHex(c.PolicyID)
}

// Params converts the section into the policy's deployment parameters.
func (c PolicyConfig) Params() (policy.Params, error) {
	if c.OracleEntity == "" || c.VaultEntity == "" {
		return policy.Params{}, ErrPolicyIncomplete
	}
	oracle, err := ledger.EntityIDFromHex(c.OracleEntity)
	if err != nil {
		return policy.Params{}, err
	}
	vault, err := ledger.EntityIDFromHex(c.VaultEntity)
	if err != nil {
		return policy.Params{}, err
	}
	return policy.Params{
		OracleEntity:         oracle,
		VaultEntity:          vault,
		MinCollateralPercent: c.MinCollateralPercent,
	}, nil
}

// DatabaseConfig selects and tunes the UTXO key-value backend.
type DatabaseConfig struct {
	// Backend is memory, pebble or leveldb.
	Backend string `toml:"backend" mapstructure:"backend"`

	// Path is the on-disk location for persistent backends.
	Path string `toml:"path" mapstructure:"path"`

	// Compression is none or lz4.
	Compression string `toml:"compression" mapstructure:"compression"`

	// CacheMB is the backend block cache budget in megabytes.
	CacheMB int `toml:"cache_mb" mapstructure:"cache_mb"`

	// UTXOCacheSize is the read-through output cache entry count.
	UTXOCacheSize int `toml:"utxo_cache_size" mapstructure:"utxo_cache_size"`
}

// KV converts the section into the key-value store configuration.
func (c DatabaseConfig) KV() kv.Config {
	return kv.Config{
		Backend:     c.Backend,
		Path:        c.Path,
		Compression: c.Compression,
		CacheMB:     c.CacheMB,
	}
}

// HistoryConfig selects the evaluation audit log backend.
type HistoryConfig struct {
	// Driver is none, sqlite or postgres.
	Driver string `toml:"driver" mapstructure:"driver"`

	// Path is the sqlite database file.
	Path string `toml:"path" mapstructure:"path"`

	// DSN is the postgres connection string.
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// Store converts the section into the history store configuration.
func (c HistoryConfig) Store() history.Config {
	return history.Config{Driver: c.Driver, Path: c.Path, DSN: c.DSN}
}

// RPCConfig controls the HTTP JSON-RPC listener.
type RPCConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Address string `toml:"address" mapstructure:"address"`

	// TimeoutSeconds bounds request handling.
	TimeoutSeconds int `toml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (c RPCConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WebSocketConfig controls the subscription streams, served on the RPC
// listener under /ws.
type WebSocketConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
}

// GRPCConfig controls the gRPC listener.
type GRPCConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Address string `toml:"address" mapstructure:"address"`
}

// MonitorConfig controls the liquidation watcher.
type MonitorConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`

	// IntervalSeconds is the sweep period.
	IntervalSeconds int `toml:"interval_seconds" mapstructure:"interval_seconds"`
}

// Interval returns the sweep period as a duration.
func (c MonitorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}
