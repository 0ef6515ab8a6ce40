package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay - authenticated LLM request proxy",
	Long: `Relay is an authenticated proxy for LLM requests.

It sits between clients and a downstream model service, providing:
  - Concurrency-bounded admission with per-attempt timeouts and retries
  - Token authentication and per-client rate limiting
  - Request telemetry with automatic CSV failover
  - Aggregate metrics and Prometheus exposition`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
