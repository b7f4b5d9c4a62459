package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/jobscan/internal/crawler"
	"github.com/nao1215/jobscan/internal/model"
)

// NewLoopCmd creates the loop command.
func NewLoopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loop <keyword>",
		Short: "Alternate search and scrape cycles",
		Long: `Loop runs search and scrape phases back to back for a number of
cycles. Listings discovered by one cycle (including recommendations
harvested from scraped pages) are extracted by the next, so the crawl
frontier grows beyond the original search results.

The session action budget and the rate limiter span all cycles; when
the budget runs out the loop ends gracefully with partial results.

Examples:
  # Three search+scrape cycles for Go jobs in Germany
  jobscan loop "go developer" --region germany

  # One long cycle with a hard cap of 60 page loads
  jobscan loop "data engineer" --cycles 1 --limit 40 --max-actions 60`,
		Args: cobra.ExactArgs(1),
		RunE: runLoopCmd,
	}

	cmd.Flags().StringP("region", "r", "", "Region to search in (country name or ISO code)")
	cmd.Flags().Int("cycles", 3, "Number of search+scrape cycles")
	cmd.Flags().IntP("pages", "p", 0,
		"Maximum result pages per search phase (default: the max_pages_per_session setting)")
	cmd.Flags().IntP("limit", "l", defaultScrapeLimit,
		"Maximum listings to scrape per cycle")

	addConfigFlags(cmd)
	addBrowserFlags(cmd)

	return cmd
}

// runLoopCmd executes the loop command.
func runLoopCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		return err
	}

	cycles, err := cmd.Flags().GetInt("cycles")
	if err != nil {
		return err
	}
	if cycles <= 0 {
		return fmt.Errorf("invalid --cycles %d: must be positive", cycles)
	}

	pages, err := cmd.Flags().GetInt("pages")
	if err != nil {
		return err
	}
	if pages <= 0 {
		pages = cfg.MaxPagesPerSession
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("invalid --limit %d: must be positive", limit)
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

	fmt.Fprintf(cmd.OutOrStdout(), "Starting %d crawl cycle(s) for %s...\n", cycles, query.String())
	startTime := time.Now()

	outcome, runErr := session.crawler.RunLoop(ctx, query, cycles, pages, limit)
	printLoopSummary(cmd.OutOrStdout(), time.Since(startTime), outcome,
		session.crawler.ActionsUsed(), runErr)
	if runErr != nil {
		return fmt.Errorf("loop failed: %w", runErr)
	}

	return nil
}

// printLoopSummary reports the aggregate counts, including the partial
// counts of a run ended early on a signal.
func printLoopSummary(w io.Writer, elapsed time.Duration, outcome *crawler.LoopOutcome, actionsUsed int, runErr error) {
	if outcome == nil {
		return
	}
	status := "completed"
	if runErr != nil {
		status = "interrupted"
	}
	fmt.Fprintf(w,
		"Loop %s after %s: %d cycle(s), %d found, %d scraped, %d failed, %d related listings\n",
		status, elapsed.Round(time.Millisecond),
		outcome.Cycles, outcome.TotalFound, outcome.Succeeded, outcome.Failed,
		outcome.RecommendationsFound)
	fmt.Fprintf(w, "Actions used: %d\n", actionsUsed)
}
