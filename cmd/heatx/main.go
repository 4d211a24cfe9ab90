/*
main.go - HeatX command-line entry point

PURPOSE:
  One binary for the dashboard API server and offline tooling.

COMMANDS:
  serve      Run the HTTP API (sessions, reports, methods, relays)
  allocate   Normalize a weight triple and print or write the bill
  methods    List conversion methods or recommend one for a temperature

CONFIGURATION:
  Environment variables prefixed HEATX_ (and an optional .env file).
  Flags override the environment. See config/config.go.

EXAMPLES:
  # Run with file database
  heatx serve --db ./data/heatx.db

  # Issue a bill to stdout as CSV
  heatx allocate --livelihoods 50 --industries 30 --govt 20 --format csv

  # Recommend a method for 320C exhaust
  heatx methods --at 320

SEE ALSO:
  - api/server.go: Router configuration
  - allocation/engine.go: Normalization engine
*/
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "heatx",
		Short:         "HeatX waste-heat energy allocation engine",
		SilenceUsage:  true,
	}
	root.AddCommand(newServeCmd(), newAllocateCmd(), newMethodsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
