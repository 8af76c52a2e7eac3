package cmd

import (
	"context"
	"os"

	"golang-ledger-service/cmd/ledger/config"
	"golang-ledger-service/internal/ledger"
	"golang-ledger-service/internal/reporter"

	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply-rules",
	Short: "Run categorization rules against an account",
	Long: `Apply-rules evaluates every categorization rule against the
account's transactions. With --preview the implied changes are reported
but nothing is written; without it the changes are committed atomically.
Preview and commit always compute the same changes for the same data.

Examples:
  ledger apply-rules --account 1 --preview
  ledger apply-rules --account 1`,
	RunE: runApplyRules,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().Int64("account", 0, "target account id (required)")
	applyCmd.Flags().Bool("preview", false, "report changes without persisting them")
	applyCmd.Flags().String("output-format", "console", "output format (console, json)")
	applyCmd.MarkFlagRequired("account")
}

func runApplyRules(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()

	cfg := config.Load()
	if err := cfg.SetupLogging(); err != nil {
		os.Exit(handler.HandleError(err))
	}

	accountID, _ := cmd.Flags().GetInt64("account")
	preview, _ := cmd.Flags().GetBool("preview")
	format, _ := cmd.Flags().GetString("output-format")

	rep, err := reporter.New(reporter.OutputFormat(format), os.Stdout)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	ctx := context.Background()
	st, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer closeStore()

	service := ledger.NewService(st)
	result, err := service.ApplyRules(ctx, accountID, preview)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	if err := rep.WriteRunResult(result); err != nil {
		os.Exit(handler.HandleError(err))
	}
	return nil
}
