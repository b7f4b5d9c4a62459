package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/jobscan/internal/index"
)

// NewRebuildCmd creates the rebuild command.
func NewRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the index from the ledger",
		Long: `Rebuild discards the local index and reconstructs it by replaying
every ledger segment. The index is a disposable projection, so this is
always safe; use it after syncing ledger files from another machine or
if the index file is suspected to be corrupt.`,
		Args: cobra.NoArgs,
		RunE: runRebuildCmd,
	}

	addConfigFlags(cmd)

	return cmd
}

// runRebuildCmd executes the rebuild command.
func runRebuildCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Verbose)
	ctx := cmd.Context()

	ix, err := index.Open(cfg.IndexDir(), logger)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer func() {
		if err := ix.Close(); err != nil {
			logger.Error("failed to close index", "error", err)
		}
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "Rebuilding index from ledger...")

	if err := ix.Rebuild(ctx, cfg.LedgerDir()); err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}

	stats, err := ix.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"Rebuilt index: %d listings (%d scraped, %d unscraped)\n",
		stats.TotalJobs, stats.Scraped, stats.Unscraped)
	return nil
}
