package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dgenlabs/relay/pkg/config"
	"dgenlabs/relay/pkg/security/auth"
)

var tokenFlags struct {
	soeid   string
	project string
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token",
	Long: `Issue an API token for a client identity, signed with the configured
secret. Clients present the token in the X-API-Token header.

Examples:
  relay token --soeid ab12345 --project team-a`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		secret, err := resolveAuthSecret(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		tm, err := auth.NewTokenManager(secret)
		if err != nil {
			return fmt.Errorf("token signing unavailable: %w", err)
		}

		token, err := tm.Generate(tokenFlags.soeid, tokenFlags.project)
		if err != nil {
			return err
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenFlags.soeid, "soeid", "", "user identity (required)")
	tokenCmd.Flags().StringVar(&tokenFlags.project, "project", "", "project identity (required)")
	_ = tokenCmd.MarkFlagRequired("soeid")
	_ = tokenCmd.MarkFlagRequired("project")
}
