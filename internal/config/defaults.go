package config

import "github.com/spf13/viper"

// setDefaults sets every default value. A node started with no
// configuration file runs standalone-off, in-memory history disabled,
// serving RPC and gRPC on localhost.
func setDefaults(v *viper.Viper) {
	// 1. Node behaviour defaults
	v.SetDefault("node.standalone", false)
	v.SetDefault("node.allow_unknown_policies", false)
	v.SetDefault("node.enforce_balance", true)

	// 2. Policy defaults. The identities have no defaults; a deployment
	// must name its own.
	v.SetDefault("policy.min_collateral_percent", 150)

	// 3. Storage defaults
	v.SetDefault("database.backend", "pebble")
	v.SetDefault("database.path", "/var/lib/stabled/db")
	v.SetDefault("database.compression", "lz4")
	v.SetDefault("database.cache_mb", 128)
	v.SetDefault("database.utxo_cache_size", 4096)

	v.SetDefault("history.driver", "none")
	v.SetDefault("history.path", "/var/lib/stabled/history.db")

	// 4. Serving defaults
	v.SetDefault("rpc.enabled", true)
	v.SetDefault("rpc.address", "127.0.0.1:5005")
	v.SetDefault("rpc.timeout_seconds", 30)

	v.SetDefault("websocket.enabled", true)

	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.address", "127.0.0.1:50051")

	// 5. Background job defaults
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval_seconds", 10)
}
