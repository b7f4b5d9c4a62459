// Package crawler drives the crawl state machine: search pagination,
// detail extraction with bounded retries, and recommendation discovery.
// Every externally visible fetch is gated by the rate limiter, every
// outcome lands in the append-only ledger, and the local index supplies
// the next unit of work.
//
// One Crawler drives one browser session, strictly sequentially. The
// session is a single stateful resource with at most one navigation in
// flight, so the phases deliberately resist internal parallelism.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/jobscan/internal/humanize"
	"github.com/nao1215/jobscan/internal/index"
	"github.com/nao1215/jobscan/internal/ledger"
	"github.com/nao1215/jobscan/internal/model"
	"github.com/nao1215/jobscan/internal/ratelimit"
)

// Defaults for tunables that are policy, not contract.
const (
	// DefaultRetryAttempts bounds detail fetch attempts per listing.
	DefaultRetryAttempts = 3

	// DefaultMaxEmptyPages stops search pagination after this many
	// consecutive pages yielding no new IDs. Guards against infinite
	// loops when the page structure drifts under the selectors.
	DefaultMaxEmptyPages = 3

	// Default bounds for the humanized delay between retry attempts.
	// The delay grows linearly with the attempt number.
	DefaultRetryDelayMin = 2 * time.Second
	DefaultRetryDelayMax = 5 * time.Second
)

// Crawler sequences crawl phases over one browser session.
type Crawler struct {
	driver  Driver
	store   RecordStore
	writer  *ledger.Writer
	index   *index.Index
	limiter *ratelimit.Limiter
	human   *humanize.Humanizer
	logger  *slog.Logger

	// ledgerDir is the ledger root, re-ingested before index queries so
	// a phase sees its own run's appends.
	ledgerDir string

	// maxActions caps gated actions per run. Zero means unlimited.
	maxActions int

	// actions counts gated actions so far in this run.
	actions int

	retryAttempts int
	maxEmptyPages int
	retryDelayMin time.Duration
	retryDelayMax time.Duration

	// now is indirected for tests that pin record timestamps.
	now func() time.Time
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) { c.logger = logger }
}

// WithHumanizer sets the timing generator, e.g. a seeded one in tests.
func WithHumanizer(h *humanize.Humanizer) Option {
	return func(c *Crawler) { c.human = h }
}

// WithMaxActions caps gated actions for the whole run. Zero disables.
func WithMaxActions(n int) Option {
	return func(c *Crawler) { c.maxActions = n }
}

// WithRetryAttempts sets the detail fetch attempt bound.
func WithRetryAttempts(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.retryAttempts = n
		}
	}
}

// WithMaxEmptyPages sets the consecutive-empty-page stop condition.
func WithMaxEmptyPages(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.maxEmptyPages = n
		}
	}
}

// WithRetryDelay sets the bounds of the humanized inter-attempt delay.
func WithRetryDelay(min, max time.Duration) Option {
	return func(c *Crawler) {
		c.retryDelayMin = min
		c.retryDelayMax = max
	}
}

// New creates a Crawler. The ledger writer, index and limiter are owned by
// the caller; ledgerDir must be the root the writer appends under so the
// index can fold in this run's own records.
func New(driver Driver, store RecordStore, writer *ledger.Writer, ix *index.Index,
	limiter *ratelimit.Limiter, ledgerDir string, opts ...Option,
) *Crawler {
	c := &Crawler{
		driver:        driver,
		store:         store,
		writer:        writer,
		index:         ix,
		limiter:       limiter,
		ledgerDir:     ledgerDir,
		retryAttempts: DefaultRetryAttempts,
		maxEmptyPages: DefaultMaxEmptyPages,
		retryDelayMin: DefaultRetryDelayMin,
		retryDelayMax: DefaultRetryDelayMax,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.human == nil {
		c.human = humanize.New()
	}
	return c
}

// DiscoveryOutcome summarizes one search phase.
type DiscoveryOutcome struct {
	// TotalFound is the number of distinct IDs seen during the phase.
	TotalFound int

	// NewIDs are the found IDs that the index had never seen before.
	NewIDs []string

	// PagesFetched is the number of result pages loaded.
	PagesFetched int
}

// DetailOutcome summarizes one detail phase.
type DetailOutcome struct {
	// Attempted is the number of listings the phase worked on.
	Attempted int

	// Succeeded and Failed partition Attempted by completion outcome.
	Succeeded int
	Failed    int

	// RecommendationsFound counts related IDs discovered along the way.
	RecommendationsFound int
}

// LoopOutcome aggregates a multi-cycle run.
type LoopOutcome struct {
	// Cycles is the number of completed search+detail cycles.
	Cycles int

	TotalFound           int
	Attempted            int
	Succeeded            int
	Failed               int
	RecommendationsFound int
}

// RunSearch executes the search phase: paginate through results for query,
// recording a discovery for every ID not already seen in this phase.
// It stops when the page budget is spent, the driver reports no further
// pages, too many consecutive pages yield nothing new, the session budget
// runs out (graceful), or ctx is canceled (partial outcome plus the
// context error).
func (c *Crawler) RunSearch(ctx context.Context, query model.Query, pageBudget int) (*DiscoveryOutcome, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	c.syncIndex(ctx)

	out := &DiscoveryOutcome{}
	seen := make(map[string]bool)
	token := ""
	emptyPages := 0

	for page := 0; page < pageBudget; page++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if err := c.gate(ctx); err != nil {
			if errors.Is(err, ErrSessionBudget) {
				c.logger.Info("session budget reached during search", "pages", out.PagesFetched)
				return out, nil
			}
			return out, err
		}

		result, err := c.driver.FetchSearchPage(ctx, query, token)
		if err != nil {
			// Without a page there is no next token to continue from.
			c.logger.Error("search page fetch failed", "query", query.String(), "error", err)
			return out, nil
		}
		out.PagesFetched++

		newOnPage := 0
		for _, id := range result.IDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			newOnPage++

			if err := c.recordDiscovery(ctx, model.DiscoveryRecord{
				JobID:        id,
				Source:       model.SourceSearch,
				DiscoveredAt: c.now().UTC(),
				Keyword:      query.Keyword,
				Region:       query.Region,
			}, out); err != nil {
				return out, err
			}
		}

		if newOnPage == 0 {
			emptyPages++
			if emptyPages >= c.maxEmptyPages {
				c.logger.Warn("stopping search after consecutive empty pages", "count", emptyPages)
				break
			}
		} else {
			emptyPages = 0
		}

		if result.NextPageToken == "" {
			break
		}
		token = result.NextPageToken
	}

	c.logger.Info("search phase finished",
		"query", query.String(),
		"pages", out.PagesFetched,
		"found", out.TotalFound,
		"new", len(out.NewIDs))
	return out, nil
}

// recordDiscovery appends one discovery to the ledger and updates the
// outcome. Ledger write failures are fatal to the run: proceeding with
// unrecorded state would silently lose work.
func (c *Crawler) recordDiscovery(ctx context.Context, rec model.DiscoveryRecord, out *DiscoveryOutcome) error {
	if err := c.writer.AppendDiscovery(rec); err != nil {
		return fmt.Errorf("crawler: record discovery: %w", err)
	}
	out.TotalFound++

	row, err := c.index.Row(ctx, rec.JobID)
	if err != nil {
		// Index trouble never fails the run; the ID is conservatively
		// counted as new and the index heals on the next sync.
		c.logger.Warn("index lookup failed", "job_id", rec.JobID, "error", err)
		out.NewIDs = append(out.NewIDs, rec.JobID)
		return nil
	}
	if row == nil {
		out.NewIDs = append(out.NewIDs, rec.JobID)
	}
	return nil
}

// RunDetail executes the detail phase: pick up to limit unscraped IDs
// (optionally restricted to one discovery source), fetch and store each,
// and record a completion either way. With recommendations enabled, each
// success is followed by a recommendation harvest whose failures never
// affect the originating completion.
func (c *Crawler) RunDetail(ctx context.Context, limit int, source model.Source, recommendations bool) (*DetailOutcome, error) {
	c.syncIndex(ctx)

	ids, err := c.index.NextUnscraped(ctx, limit, source)
	if err != nil {
		// Treat as corruption: rebuild once, then retry the query.
		c.logger.Warn("unscraped query failed, rebuilding index", "error", err)
		if err := c.index.Rebuild(ctx, c.ledgerDir); err != nil {
			return nil, fmt.Errorf("crawler: rebuild index: %w", err)
		}
		if ids, err = c.index.NextUnscraped(ctx, limit, source); err != nil {
			return nil, fmt.Errorf("crawler: select work: %w", err)
		}
	}

	out := &DetailOutcome{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if err := c.gate(ctx); err != nil {
			if errors.Is(err, ErrSessionBudget) {
				c.logger.Info("session budget reached during detail phase", "attempted", out.Attempted)
				return out, nil
			}
			return out, err
		}

		out.Attempted++

		job, err := c.fetchDetailWithRetry(ctx, id)
		if err != nil {
			kind := model.FailureFatal
			if IsRecoverable(err) {
				kind = model.FailureRecoverable
			}
			c.logger.Warn("detail extraction failed", "job_id", id, "kind", string(kind), "error", err)
			if err := c.recordCompletion(model.CompletionRecord{
				JobID:       id,
				CompletedAt: c.now().UTC(),
				Outcome:     model.OutcomeFailure,
				FailureKind: kind,
			}); err != nil {
				return out, err
			}
			out.Failed++
			continue
		}

		ref, err := c.store.SaveJob(ctx, id, job)
		if err != nil {
			// The extraction worked but the artifact is gone; recording
			// success would claim an artifact that does not exist.
			c.logger.Error("saving extracted record failed", "job_id", id, "error", err)
			if err := c.recordCompletion(model.CompletionRecord{
				JobID:       id,
				CompletedAt: c.now().UTC(),
				Outcome:     model.OutcomeFailure,
				FailureKind: model.FailureRecoverable,
			}); err != nil {
				return out, err
			}
			out.Failed++
			continue
		}

		if err := c.recordCompletion(model.CompletionRecord{
			JobID:       id,
			CompletedAt: c.now().UTC(),
			Outcome:     model.OutcomeSuccess,
			ArtifactRef: ref,
		}); err != nil {
			return out, err
		}
		out.Succeeded++

		if recommendations {
			found, err := c.harvestRecommendations(ctx, id)
			if err != nil {
				if errors.Is(err, ErrSessionBudget) {
					c.logger.Info("session budget reached during recommendation harvest")
					return out, nil
				}
				return out, err
			}
			out.RecommendationsFound += found
		}
	}

	c.logger.Info("detail phase finished",
		"attempted", out.Attempted,
		"succeeded", out.Succeeded,
		"failed", out.Failed,
		"recommendations", out.RecommendationsFound)
	return out, nil
}

// recordCompletion appends one completion to the ledger.
func (c *Crawler) recordCompletion(rec model.CompletionRecord) error {
	if err := c.writer.AppendCompletion(rec); err != nil {
		return fmt.Errorf("crawler: record completion: %w", err)
	}
	return nil
}

// fetchDetailWithRetry fetches one detail page, retrying recoverable
// failures with a linearly growing humanized delay. Fatal errors return
// immediately.
func (c *Crawler) fetchDetailWithRetry(ctx context.Context, id string) (*model.Job, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		job, err := c.driver.FetchDetail(ctx, id)
		if err == nil {
			return job, nil
		}
		if !IsRecoverable(err) {
			return nil, err
		}
		lastErr = err

		if attempt < c.retryAttempts {
			delay := time.Duration(attempt) * c.human.Delay(c.retryDelayMin, c.retryDelayMax)
			c.logger.Debug("retrying detail fetch", "job_id", id, "attempt", attempt, "delay", delay)
			if err := sleepContext(ctx, delay); err != nil {
				// Cancellation lands at the phase boundary; here the
				// attempt simply gives up early.
				break
			}
		}
	}
	return nil, lastErr
}

// harvestRecommendations fetches the related-jobs section of a scraped
// listing and records each related ID. Fetch failures are logged and
// swallowed; only ledger failures and budget exhaustion propagate.
func (c *Crawler) harvestRecommendations(ctx context.Context, originID string) (int, error) {
	if err := c.gate(ctx); err != nil {
		return 0, err
	}

	ids, err := c.driver.FetchRecommendations(ctx, originID)
	if err != nil {
		c.logger.Warn("recommendation fetch failed", "job_id", originID, "error", err)
		return 0, nil
	}

	found := 0
	for _, id := range ids {
		if id == "" || id == originID {
			continue
		}
		rec := model.DiscoveryRecord{
			JobID:        id,
			Source:       model.SourceRecommendation,
			DiscoveredAt: c.now().UTC(),
			OriginJobID:  originID,
		}
		if err := c.writer.AppendDiscovery(rec); err != nil {
			return found, fmt.Errorf("crawler: record recommendation discovery: %w", err)
		}
		found++
	}
	return found, nil
}

// RunLoop alternates search and detail (with recommendations) for the
// given number of cycles. Each cycle re-queries the index, so IDs
// discovered by one cycle are scraped by the next.
func (c *Crawler) RunLoop(ctx context.Context, query model.Query, cycles, pageBudget, detailLimit int) (*LoopOutcome, error) {
	out := &LoopOutcome{}

	for cycle := 1; cycle <= cycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if c.budgetExhausted() {
			c.logger.Info("session budget reached, ending loop", "cycles", out.Cycles)
			return out, nil
		}

		c.logger.Info("starting cycle", "cycle", cycle, "of", cycles)

		search, err := c.RunSearch(ctx, query, pageBudget)
		if search != nil {
			out.TotalFound += search.TotalFound
		}
		if err != nil {
			return out, err
		}

		detail, err := c.RunDetail(ctx, detailLimit, "", true)
		if detail != nil {
			out.Attempted += detail.Attempted
			out.Succeeded += detail.Succeeded
			out.Failed += detail.Failed
			out.RecommendationsFound += detail.RecommendationsFound
		}
		if err != nil {
			return out, err
		}

		out.Cycles++
	}
	return out, nil
}

// Stats folds in any pending ledger data and returns aggregate counts.
func (c *Crawler) Stats(ctx context.Context) (*model.Stats, error) {
	c.syncIndex(ctx)
	return c.index.Stats(ctx)
}

// ActionsUsed returns the number of gated actions this run has spent.
func (c *Crawler) ActionsUsed() int {
	return c.actions
}

// gate enforces the session budget and then blocks on the rate limiter.
// Returns ErrSessionBudget when the budget is spent, or the context error
// if canceled while waiting.
func (c *Crawler) gate(ctx context.Context) error {
	if c.budgetExhausted() {
		return ErrSessionBudget
	}

	waited, err := c.limiter.Acquire(ctx)
	if err != nil {
		return err
	}
	c.actions++

	if waited > 0 {
		c.logger.Debug("rate limiter gate", "waited", waited, "actions", c.actions)
	}
	return nil
}

// budgetExhausted reports whether the session action budget is spent.
func (c *Crawler) budgetExhausted() bool {
	return c.maxActions > 0 && c.actions >= c.maxActions
}

// syncIndex folds new ledger segments into the index. Index trouble is
// never fatal here: a failed ingest falls back to a rebuild, and a failed
// rebuild only logs; queries will surface the problem if it persists.
func (c *Crawler) syncIndex(ctx context.Context) {
	if err := c.index.Ingest(ctx, c.ledgerDir); err != nil {
		c.logger.Warn("index ingest failed, rebuilding", "error", err)
		if err := c.index.Rebuild(ctx, c.ledgerDir); err != nil {
			c.logger.Error("index rebuild failed", "error", err)
		}
	}
}

// sleepContext suspends for d or until ctx is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
