// Package cli wires the stabled commands: serve runs the node, while
// evaluate and maxmint answer one-shot policy questions without one.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halvalla/stabled/internal/config"
)

// Version is the build version, overridable at link time.
var Version = "0.1.0-dev"

var (
	// Global flags
	configFile string
	debug      bool
	verbose    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stabled",
	Short: "stabled - collateral-backed stablecoin policy node",
	Long: `stabled validates stablecoin transactions against a deterministic
issuance policy over a UTXO ledger: minting requires locked collateral
priced by an oracle, burning releases it, and undercollateralized
positions become liquidatable. The node keeps the UTXO set, serves
JSON-RPC, WebSocket streams and gRPC, and watches positions for
liquidation candidates.`,
	Version: Version,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable normally suppressed debug logging")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output to console after startup")
}

// loadConfig loads the configuration honoring the --conf flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if !quiet && cfg.ConfigFile() != "" {
		fmt.Printf("Loaded configuration from %s\n", cfg.ConfigFile())
	}
	return cfg, nil
}
