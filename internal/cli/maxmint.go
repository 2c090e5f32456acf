package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/halvalla/stabled/internal/core/policy"
)

var maxmintPercent int64

// maxmintCmd prints the issuance cap for a collateral amount and rate.
var maxmintCmd = &cobra.Command{
	Use:   "maxmint <collateral> <rate>",
	Short: "Print the issuance cap for a collateral amount at a rate",
	Long: `Print the largest stablecoin amount the given collateral supports at
the given oracle rate, under the configured minimum collateral ratio.

Collateral is in base units (1/1000000 coin); the rate is hundredths
of stablecoin per coin, so 100 means one coin buys exactly one unit.

Example:
    stabled maxmint 150000000 100`,
	Args: cobra.ExactArgs(2),
	RunE: runMaxMint,
}

func init() {
	rootCmd.AddCommand(maxmintCmd)

	maxmintCmd.Flags().Int64Var(&maxmintPercent, "percent", 0, "minimum collateral percent (default: configured value)")
}

func runMaxMint(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	collateral, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || collateral < 0 {
		return fmt.Errorf("collateral must be a non-negative integer, got %q", args[0])
	}
	rate, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || rate < 0 {
		return fmt.Errorf("rate must be a non-negative integer, got %q", args[1])
	}

	percent := maxmintPercent
	if percent == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		percent = cfg.Policy.MinCollateralPercent
	}
	if percent <= 0 {
		return fmt.Errorf("minimum collateral percent must be positive, got %d", percent)
	}

	fmt.Println(policy.MaxMint(collateral, rate, percent))
	return nil
}
