package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/jobscan/internal/index"
	"github.com/nao1215/jobscan/internal/report"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show crawl progress",
		Long: `Stats folds any pending ledger records into the index and reports how
many listings are known, scraped and still queued, broken down by
discovery source and completion outcome.

Examples:
  # Human-readable progress summary
  jobscan stats

  # Detailed breakdowns
  jobscan stats -v

  # Machine-readable output
  jobscan stats --json

  # Markdown report written to a file
  jobscan stats --markdown -o report.md`,
		Args: cobra.NoArgs,
		RunE: runStatsCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to a file instead of stdout")

	addConfigFlags(cmd)

	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOut && markdownOut {
		return fmt.Errorf("--json and --markdown are mutually exclusive")
	}

	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Verbose)

	ctx := cmd.Context()
	ix, err := index.OpenAndSync(ctx, cfg.IndexDir(), cfg.LedgerDir(), logger)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer func() {
		if err := ix.Close(); err != nil {
			logger.Error("failed to close index", "error", err)
		}
	}()

	stats, err := ix.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	output, closeOutput, err := openOutput(cmd.OutOrStdout(), outputPath)
	if err != nil {
		return err
	}
	defer closeOutput()

	summary := &report.Summary{
		GeneratedAt: time.Now().UTC(),
		DataDir:     cfg.DataDir,
		Stats:       stats,
	}

	var writer report.Writer
	switch {
	case jsonOut:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint())
	case markdownOut:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	if _, err := writer.Write(summary); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// openOutput returns the report destination: a created file when path is
// set, fallback otherwise. Files are 0600 because reports can reveal what
// was crawled.
func openOutput(fallback io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
