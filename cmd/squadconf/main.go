package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "squadconf",
	Short: "squadconf - privilege lifecycle and config distribution for Squad servers",
	Long: `squadconf turns webhook calls from community services into time-limited
admin roles on Squad game servers, and keeps server admin configs and
map rotation configs rendered and distributed.`,
	Example: `  # Run the API server and the periodic jobs together
  squadconf serve

  # Run the API surface only
  squadconf serve --mode server

  # Print the version
  squadconf version`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
