package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/rpc"
)

var evaluateMode string

// evaluateCmd runs the policy over a context file without a node.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <context.json>",
	Short: "Evaluate a transaction context against the policy",
	Long: `Evaluate a resolved transaction context against the configured policy
deployment and print the verdict. The context file carries resolved
inputs, reference inputs, outputs, mint and asserted signers in the
same JSON shape the evaluate RPC method accepts.

Evaluation is pure: no store is opened, nothing is verified beyond the
policy's own rules. The exit code is 0 when the verdict accepts and 1
when it rejects.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evaluateMode, "mode", "", "redeemer mode: mint, burn or liquidate (required)")
	evaluateCmd.MarkFlagRequired("mode")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	policyID, err := cfg.Policy.ID()
	if err != nil {
		return err
	}
	params, err := cfg.Policy.Params()
	if err != nil {
		return err
	}
	pol, err := policy.New(params, policyID)
	if err != nil {
		return err
	}

	mode, err := policy.ParseMode(evaluateMode)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read context file: %w", err)
	}
	var contextJSON rpc.ContextJSON
	if err := json.Unmarshal(raw, &contextJSON); err != nil {
		return fmt.Errorf("parse context file: %w", err)
	}
	evalCtx, err := contextJSON.Decode()
	if err != nil {
		return fmt.Errorf("decode context: %w", err)
	}

	verdict := pol.Evaluate(mode, evalCtx)

	fmt.Printf("policy:     %s\n", pol.Self())
	fmt.Printf("mode:       %s\n", mode)
	fmt.Printf("mint delta: %d\n", pol.MintDelta(evalCtx))
	fmt.Printf("verdict:    %s\n", verdict)

	if !verdict.Accepted() {
		os.Exit(1)
	}
	return nil
}
