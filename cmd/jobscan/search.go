package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/jobscan/internal/crawler"
	"github.com/nao1215/jobscan/internal/model"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Discover job listing IDs for a search query",
		Long: `Search paginates through results for a keyword and records every
listing ID it finds in the ledger. It never opens detail pages; run
"jobscan scrape" afterwards to extract the discovered listings.

Examples:
  # Discover Go jobs in Germany
  jobscan search "go developer" --region germany

  # Limit pagination to 5 result pages
  jobscan search "site reliability engineer" --region uk --pages 5

  # Reuse a logged-in browser via its DevTools URL
  jobscan search "backend engineer" --debugger-url ws://127.0.0.1:9222/...`,
		Args: cobra.ExactArgs(1),
		RunE: runSearchCmd,
	}

	cmd.Flags().StringP("region", "r", "", "Region to search in (country name or ISO code)")
	cmd.Flags().IntP("pages", "p", 0,
		"Maximum result pages to fetch (default: the max_pages_per_session setting)")

	addConfigFlags(cmd)
	addBrowserFlags(cmd)

	return cmd
}

// runSearchCmd executes the search command.
func runSearchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		return err
	}

	pages, err := cmd.Flags().GetInt("pages")
	if err != nil {
		return err
	}
	if pages <= 0 {
		pages = cfg.MaxPagesPerSession
	}

	region, err := cmd.Flags().GetString("region")
	if err != nil {
		return err
	}
	query := model.Query{Keyword: args[0], Region: region}

	logger := setupLogger(cfg.Verbose)

	ctx, cancel := signalContext(logger)
	defer cancel()

	session, err := openCrawlSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Searching %s...\n", query.String())
	startTime := time.Now()

	outcome, runErr := session.crawler.RunSearch(ctx, query, pages)
	printSearchSummary(cmd.OutOrStdout(), time.Since(startTime), outcome, runErr)
	if runErr != nil {
		return fmt.Errorf("search failed: %w", runErr)
	}

	return nil
}

// printSearchSummary reports the phase counts. They are printed even when
// the run ended early on a signal: partial work is still recorded work.
func printSearchSummary(w io.Writer, elapsed time.Duration, outcome *crawler.DiscoveryOutcome, runErr error) {
	if outcome == nil {
		return
	}
	status := "completed"
	if runErr != nil {
		status = "interrupted"
	}
	fmt.Fprintf(w,
		"Search %s after %s: %d listings found (%d new) across %d pages\n",
		status, elapsed.Round(time.Millisecond),
		outcome.TotalFound, len(outcome.NewIDs), outcome.PagesFetched)
}
