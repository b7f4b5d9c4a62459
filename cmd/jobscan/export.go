package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/jobscan/internal/storage"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored job records as JSONL",
		Long: `Export streams every stored job record as one JSON object per line,
sorted by listing ID. Corrupt artifacts are skipped rather than
aborting the export.

Examples:
  # Export to stdout for piping into jq
  jobscan export | jq .title

  # Export to a file
  jobscan export -o jobs.jsonl`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	cmd.Flags().StringP("output", "o", "",
		"Write the export to a file instead of stdout")

	addConfigFlags(cmd)

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(cmd.OutOrStdout(), outputPath)
	if err != nil {
		return err
	}
	defer closeOutput()

	store := storage.NewJobStore(cfg.DataDir)
	count, err := store.ExportJSONL(cmd.Context(), output)
	if err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d job record(s)\n", count)
	return nil
}
