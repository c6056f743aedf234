package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	exitOK     = 0
	exitBroken = 1
	exitError  = 2
)

// NewRootCmd creates the root command for linkguardian.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkguardian",
		Short: "Find broken links on websites and in GitHub READMEs",
		Long: `linkguardian crawls a website, or fetches the README of a GitHub repository,
and checks every link it finds.

Links are probed concurrently with HEAD requests and classified as OK,
REDIRECT, BROKEN, TIMEOUT, SSL ERROR, TOO MANY REDIRECTS, DNS ERROR or ERROR.

Exit status: 0 when every link works, 1 when a link is broken, 2 on error.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-file", "",
		"Also write logs to this file (rotated at 5MB)")

	cmd.AddCommand(NewSiteCmd())
	cmd.AddCommand(NewGitHubCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return run(NewRootCmd(), os.Args[1:], os.Stderr)
}

func run(cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil && !errors.Is(err, ErrBrokenLinks) {
		fmt.Fprintln(stderr, err)
	}
	return exitCode(err)
}

// exitCode maps the error returned by a command to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, ErrBrokenLinks):
		return exitBroken
	default:
		return exitError
	}
}
