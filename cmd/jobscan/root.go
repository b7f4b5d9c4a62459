// Package main provides the entry point for the jobscan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for jobscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobscan",
		Short: "Stealthy, resumable crawler for job listings",
		Long: `jobscan crawls job listings through a real browser at a human pace.

Discovered listing IDs and extraction outcomes are appended to a local
ledger, so a run can be interrupted at any point and the next run picks
up exactly where it left off. A sliding-window rate limiter and
randomized interaction timing keep the traffic profile unremarkable.

Log in by exporting your session cookie as JOBSCAN_LI_AT (or putting it
in a .env file); it is injected into the browser and never logged.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewLoopCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewRebuildCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
