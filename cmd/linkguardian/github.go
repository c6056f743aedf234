package main

import (
	"github.com/spf13/cobra"

	"github.com/nao1215/linkguardian/internal/model"
)

// NewGitHubCmd creates the github command.
func NewGitHubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "github <repository-url>...",
		Short: "Check the links in a GitHub repository README",
		Long: `GitHub downloads README.md of each repository from the main branch, falling
back to master, and checks every absolute http(s) link in it.

A repository without a README produces a warning and no results.

Examples:
  # Check one repository
  linkguardian github https://github.com/nao1215/linkguardian

  # Output JSON
  linkguardian github --json https://github.com/nao1215/linkguardian`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawBaseURL, err := cmd.Flags().GetString("raw-base-url")
			if err != nil {
				return err
			}
			return runCheckCmd(cmd, args, model.ModeGitHub, rawBaseURL)
		},
	}

	addCheckFlags(cmd)
	cmd.Flags().String("raw-base-url", "",
		"Base URL raw files are downloaded from (default: https://raw.githubusercontent.com)")
	_ = cmd.Flags().MarkHidden("raw-base-url") //nolint:errcheck // flag is defined above

	return cmd
}
