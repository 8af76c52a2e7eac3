package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang-ledger-service/cmd/ledger/config"
	"golang-ledger-service/internal/ledger"
	"golang-ledger-service/internal/server"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger HTTP API",
	Long: `Serve starts the HTTP API backed by PostgreSQL. Configuration comes
from flags, LEDGER_* environment variables or a .env file in the working
directory.

Examples:
  ledger serve
  ledger serve --addr :9000 --in-memory
  LEDGER_DATABASE_URL=postgres://localhost/ledger ledger serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8000", "listen address")
	serveCmd.Flags().String("allowed-origins", "", "comma-separated CORS origins")
	serveCmd.Flags().Bool("in-memory", false, "use the in-memory store (data is lost on exit)")

	viper.BindPFlag("http_addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("allowed_origins", serveCmd.Flags().Lookup("allowed-origins"))
	viper.BindPFlag("in_memory", serveCmd.Flags().Lookup("in-memory"))
}

func runServe(cmd *cobra.Command, args []string) error {
	// Best effort; absence of a .env file is normal.
	_ = godotenv.Load()

	handler := NewCLIErrorHandler()

	cfg := config.Load()
	if err := cfg.SetupLogging(); err != nil {
		os.Exit(handler.HandleError(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer closeStore()

	srv := server.New(cfg.ServerConfig(), ledger.NewService(st))
	if err := srv.ListenAndServe(ctx); err != nil {
		os.Exit(handler.HandleError(err))
	}
	return nil
}
