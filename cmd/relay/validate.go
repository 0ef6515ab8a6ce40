package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dgenlabs/relay/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file without starting the server.

Environment variable overrides (RELAY_SECTION_FIELD) are applied before
validation, so the check covers the effective configuration.

Examples:
  # Validate the default config file
  relay validate

  # Validate a specific file
  relay validate --config /etc/relay/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		fmt.Println("✓ Configuration valid")
		if verbose {
			fmt.Printf("  listen address:      %s\n", cfg.Server.ListenAddress)
			fmt.Printf("  backend:             %s\n", cfg.Backend.BaseURL)
			fmt.Printf("  telemetry backend:   %s\n", cfg.Telemetry.Backend)
			fmt.Printf("  max concurrency:     %d\n", cfg.Proxy.MaxConcurrency)
			fmt.Printf("  requests per minute: %d\n", cfg.Limits.RequestsPerMinute)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
