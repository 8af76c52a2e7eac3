package cmd

import (
	"context"
	"os"
	"path/filepath"

	"golang-ledger-service/cmd/ledger/config"
	"golang-ledger-service/internal/ledger"
	"golang-ledger-service/internal/reporter"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a bank statement CSV into an account",
	Long: `Import parses a bank statement CSV export and stores its rows as
transactions on the given account. The raw file is kept for audit. Rows
that already exist are skipped as duplicates; malformed rows are reported
but do not fail the import.

Examples:
  ledger import --account 1 statement.csv
  ledger import --account 2 --output-format json export.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Int64("account", 0, "target account id (required)")
	importCmd.Flags().String("output-format", "console", "output format (console, json)")
	importCmd.MarkFlagRequired("account")
}

func runImport(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()

	cfg := config.Load()
	if err := cfg.SetupLogging(); err != nil {
		os.Exit(handler.HandleError(err))
	}

	accountID, _ := cmd.Flags().GetInt64("account")
	format, _ := cmd.Flags().GetString("output-format")

	rep, err := reporter.New(reporter.OutputFormat(format), os.Stdout)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	data, err := os.ReadFile(args[0])
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
	summary, err := service.ImportCSV(ctx, accountID, filepath.Base(args[0]), data)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	if err := rep.WriteImportSummary(summary); err != nil {
		os.Exit(handler.HandleError(err))
	}
	return nil
}
