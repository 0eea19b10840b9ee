package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/squadops/squadconf/internal/server"
)

var (
	servePort int
	serveMode string
)

// @title squadconf API
// @version 1.0
// @description Privilege lifecycle and config distribution API for Squad servers
// @host localhost:8470
// @BasePath /api/v1
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a squadconf instance",
	Long: `Start squadconf with the API server and/or the periodic jobs.

Examples:
  squadconf serve                    # Run API server and periodic jobs
  squadconf serve --mode server      # Run API server only
  squadconf serve --mode jobs        # Run expiry sweeps and config writers only
  squadconf serve --port 8080        # Override port

Environment variables:
  SQUADCONF_SERVER_PORT            Server port (default: 8470)
  SQUADCONF_DATABASE_DRIVER        Database driver: sqlite, postgres
  SQUADCONF_DATABASE_DSN           Database connection string
  SQUADCONF_NOTIFY_TELEGRAM_TOKEN  Telegram bot token for expiry notifications
  SQUADCONF_NOTIFY_TELEGRAM_CHAT   Telegram chat ID for expiry notifications`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
	serveCmd.Flags().StringVarP(&serveMode, "mode", "m", "both", "Run mode: server, jobs, or both")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := server.Config{
		Port:    servePort,
		Mode:    serveMode,
		Version: Version,
	}

	if err := server.RunWithSignalHandling(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
