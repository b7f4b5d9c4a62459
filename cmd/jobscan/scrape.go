package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/jobscan/internal/crawler"
	"github.com/nao1215/jobscan/internal/model"
)

// defaultScrapeLimit bounds one scrape invocation when --limit is not
// given. Roughly what fits in a session under the default rate limits.
const defaultScrapeLimit = 25

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Extract detail pages for discovered listings",
		Long: `Scrape picks unscraped listing IDs from the index, opens each detail
page, extracts the job record and stores it under the data directory.
Related listings linked from each page are recorded as new discoveries.

Failed listings stay queued: recoverable failures (timeouts, block
pages) are retried on the next invocation, so repeating the command
drains the backlog.

Examples:
  # Scrape up to 25 pending listings
  jobscan scrape

  # Scrape 10, skipping recommendation harvesting
  jobscan scrape --limit 10 --recommendations=false

  # Only scrape listings that came from searches
  jobscan scrape --source search`,
		Args: cobra.NoArgs,
		RunE: runScrapeCmd,
	}

	cmd.Flags().IntP("limit", "l", defaultScrapeLimit,
		"Maximum listings to scrape in this run")
	cmd.Flags().StringP("source", "s", "",
		"Only scrape listings discovered by this source (search or recommendation)")
	cmd.Flags().Bool("recommendations", true,
		"Harvest related listings from each scraped page")

	addConfigFlags(cmd)
	addBrowserFlags(cmd)

	return cmd
}

// runScrapeCmd executes the scrape command.
func runScrapeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		return err
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("invalid --limit %d: must be positive", limit)
	}

	sourceFlag, err := cmd.Flags().GetString("source")
	if err != nil {
		return err
	}
	source := model.Source(sourceFlag)
	if sourceFlag != "" && !source.Valid() {
		return fmt.Errorf("invalid --source %q: must be %q or %q",
			sourceFlag, model.SourceSearch, model.SourceRecommendation)
	}

	recommendations, err := cmd.Flags().GetBool("recommendations")
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Verbose)

	ctx, cancel := signalContext(logger)
	defer cancel()

	session, err := openCrawlSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Scraping up to %d listings...\n", limit)
	startTime := time.Now()

	outcome, runErr := session.crawler.RunDetail(ctx, limit, source, recommendations)
	printScrapeSummary(cmd.OutOrStdout(), time.Since(startTime), outcome, runErr)
	if runErr != nil {
		return fmt.Errorf("scrape failed: %w", runErr)
	}

	return nil
}

// printScrapeSummary reports the phase counts, including the partial
// counts of a run ended early on a signal.
func printScrapeSummary(w io.Writer, elapsed time.Duration, outcome *crawler.DetailOutcome, runErr error) {
	if outcome == nil {
		return
	}
	status := "completed"
	if runErr != nil {
		status = "interrupted"
	}
	fmt.Fprintf(w,
		"Scrape %s after %s: %d attempted, %d succeeded, %d failed, %d related listings found\n",
		status, elapsed.Round(time.Millisecond),
		outcome.Attempted, outcome.Succeeded, outcome.Failed, outcome.RecommendationsFound)
}
