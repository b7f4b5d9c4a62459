package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/jobscan/internal/humanize"
	"github.com/nao1215/jobscan/internal/index"
	"github.com/nao1215/jobscan/internal/ledger"
	"github.com/nao1215/jobscan/internal/model"
	"github.com/nao1215/jobscan/internal/ratelimit"
)

// fakeDriver scripts search pages, detail results and recommendations.
type fakeDriver struct {
	mu sync.Mutex

	// pages are returned in order; the Nth fetch returns pages[N] with a
	// next-page token unless it is the last one.
	pages []SearchPage

	// searchCalls counts FetchSearchPage invocations.
	searchCalls int

	// detail maps an ID to a scripted response; nil error yields a job.
	detail map[string]error

	// detailCalls counts FetchDetail invocations per ID.
	detailCalls map[string]int

	// failFirstN makes the first N FetchDetail calls per ID fail
	// recoverably before the script in detail applies.
	failFirstN int

	// recs maps origin ID to recommended IDs.
	recs map[string][]string

	// recsErr, when set, fails every recommendation fetch.
	recsErr error
}

func (d *fakeDriver) FetchSearchPage(_ context.Context, _ model.Query, _ string) (*SearchPage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.searchCalls >= len(d.pages) {
		return &SearchPage{}, nil
	}
	page := d.pages[d.searchCalls]
	d.searchCalls++

	result := &SearchPage{IDs: page.IDs, NextPageToken: page.NextPageToken}
	if result.NextPageToken == "" && d.searchCalls < len(d.pages) {
		result.NextPageToken = fmt.Sprintf("page-%d", d.searchCalls)
	}
	return result, nil
}

func (d *fakeDriver) FetchDetail(_ context.Context, id string) (*model.Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.detailCalls == nil {
		d.detailCalls = make(map[string]int)
	}
	d.detailCalls[id]++

	if d.detailCalls[id] <= d.failFirstN {
		return nil, Recoverable(errors.New("timeout"))
	}
	if err := d.detail[id]; err != nil {
		return nil, err
	}
	return &model.Job{JobID: id, ScrapedAt: time.Now().UTC(), Title: "Job " + id}, nil
}

func (d *fakeDriver) FetchRecommendations(_ context.Context, id string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.recsErr != nil {
		return nil, d.recsErr
	}
	return d.recs[id], nil
}

// fakeStore records saved jobs in memory.
type fakeStore struct {
	mu    sync.Mutex
	saved map[string]*model.Job

	// err, when set, fails every save.
	err error
}

func (s *fakeStore) SaveJob(_ context.Context, id string, job *model.Job) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}
	if s.saved == nil {
		s.saved = make(map[string]*model.Job)
	}
	s.saved[id] = job
	return "jobs/" + id + ".json", nil
}

// testHarness bundles a Crawler with its backing stores.
type testHarness struct {
	crawler   *Crawler
	index     *index.Index
	ledgerDir string
}

func newHarness(t *testing.T, driver Driver, store RecordStore, opts ...Option) *testHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledgerDir := t.TempDir()

	ix, err := index.Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("index.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })

	writer := ledger.NewWriter(ledgerDir, model.NewRunID(time.Now()))
	t.Cleanup(func() { _ = writer.Close() })

	base := []Option{
		WithLogger(logger),
		WithHumanizer(humanize.New(humanize.WithSeed(1))),
		WithRetryDelay(time.Millisecond, 2*time.Millisecond),
	}

	c := New(driver, store, writer, ix, ratelimit.New(0, 0), ledgerDir, append(base, opts...)...)
	return &testHarness{crawler: c, index: ix, ledgerDir: ledgerDir}
}

// pagesOf builds n scripted pages of perPage sequential IDs.
func pagesOf(n, perPage int) []SearchPage {
	pages := make([]SearchPage, 0, n)
	id := 0
	for range n {
		var ids []string
		for range perPage {
			id++
			ids = append(ids, fmt.Sprintf("%d", 1000+id))
		}
		pages = append(pages, SearchPage{IDs: ids})
	}
	return pages
}

func TestRunSearchThreePages(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{pages: pagesOf(3, 10)}
	h := newHarness(t, driver, &fakeStore{})

	out, err := h.crawler.RunSearch(context.Background(), model.Query{Keyword: "golang", Region: "germany"}, 3)
	if err != nil {
		t.Fatalf("RunSearch() error = %v", err)
	}

	if out.TotalFound != 30 {
		t.Errorf("TotalFound = %d, want 30", out.TotalFound)
	}
	if len(out.NewIDs) != 30 {
		t.Errorf("len(NewIDs) = %d, want 30", len(out.NewIDs))
	}
	if out.PagesFetched != 3 {
		t.Errorf("PagesFetched = %d, want 3", out.PagesFetched)
	}

	// Exactly 30 discovery records landed in the ledger.
	if err := h.index.Ingest(context.Background(), h.ledgerDir); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	stats, err := h.index.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalJobs != 30 {
		t.Errorf("indexed jobs = %d, want 30", stats.TotalJobs)
	}
}

func TestRunSearchDeduplicatesWithinPhase(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{pages: []SearchPage{
		{IDs: []string{"1", "2", "3"}},
		{IDs: []string{"2", "3", "4"}},
	}}
	h := newHarness(t, driver, &fakeStore{})

	out, err := h.crawler.RunSearch(context.Background(), model.Query{Keyword: "go"}, 5)
	if err != nil {
		t.Fatalf("RunSearch() error = %v", err)
	}
	if out.TotalFound != 4 {
		t.Errorf("TotalFound = %d, want 4", out.TotalFound)
	}
}

func TestRunSearchStopsOnConsecutiveEmptyPages(t *testing.T) {
	t.Parallel()

	// Page 1 has content, pages 2..4 repeat the same IDs. With the
	// empty-page bound at 2 the phase must stop before spending the
	// whole budget.
	driver := &fakeDriver{pages: []SearchPage{
		{IDs: []string{"1", "2"}},
		{IDs: []string{"1", "2"}},
		{IDs: []string{"1", "2"}},
		{IDs: []string{"1", "2"}},
	}}
	h := newHarness(t, driver, &fakeStore{}, WithMaxEmptyPages(2))

	out, err := h.crawler.RunSearch(context.Background(), model.Query{Keyword: "go"}, 10)
	if err != nil {
		t.Fatalf("RunSearch() error = %v", err)
	}
	if out.PagesFetched != 3 {
		t.Errorf("PagesFetched = %d, want 3 (1 full + 2 empty)", out.PagesFetched)
	}
	if out.TotalFound != 2 {
		t.Errorf("TotalFound = %d, want 2", out.TotalFound)
	}
}

func TestRunSearchSessionBudgetGraceful(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{pages: pagesOf(5, 3)}
	h := newHarness(t, driver, &fakeStore{}, WithMaxActions(2))

	out, err := h.crawler.RunSearch(context.Background(), model.Query{Keyword: "go"}, 5)
	if err != nil {
		t.Fatalf("RunSearch() error = %v, want graceful stop", err)
	}
	if out.PagesFetched != 2 {
		t.Errorf("PagesFetched = %d, want 2", out.PagesFetched)
	}
	if out.TotalFound != 6 {
		t.Errorf("TotalFound = %d, want 6", out.TotalFound)
	}
}

func TestRunSearchCanceledContext(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{pages: pagesOf(3, 2)}
	h := newHarness(t, driver, &fakeStore{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := h.crawler.RunSearch(ctx, model.Query{Keyword: "go"}, 3)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunSearch() error = %v, want context.Canceled", err)
	}
	if out == nil || out.PagesFetched != 0 {
		t.Errorf("outcome = %+v, want zero pages", out)
	}
}

// discover seeds the harness ledger with search discoveries for ids.
func discover(t *testing.T, h *testHarness, ids ...string) {
	t.Helper()

	driver := &fakeDriver{pages: []SearchPage{{IDs: ids}}}
	seed := New(driver, &fakeStore{}, h.crawler.writer, h.index, ratelimit.New(0, 0), h.ledgerDir,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if _, err := seed.RunSearch(context.Background(), model.Query{Keyword: "seed"}, 1); err != nil {
		t.Fatalf("seeding search error = %v", err)
	}
}

func TestRunDetailScenario(t *testing.T) {
	t.Parallel()

	// Five unscraped IDs; the third fails fatally, the rest succeed.
	driver := &fakeDriver{
		detail: map[string]error{
			"3": Fatal(errors.New("job removed")),
		},
	}
	store := &fakeStore{}
	h := newHarness(t, driver, store)
	discover(t, h, "1", "2", "3", "4", "5")

	out, err := h.crawler.RunDetail(context.Background(), 5, "", false)
	if err != nil {
		t.Fatalf("RunDetail() error = %v", err)
	}

	if out.Attempted != 5 || out.Succeeded != 4 || out.Failed != 1 {
		t.Errorf("outcome = %+v, want attempted 5, succeeded 4, failed 1", out)
	}
	if len(store.saved) != 4 {
		t.Errorf("saved %d jobs, want 4", len(store.saved))
	}

	// Fatal errors are never retried.
	if got := driver.detailCalls["3"]; got != 1 {
		t.Errorf("fatal ID fetched %d times, want 1", got)
	}

	// The index agrees: 4 scraped, 1 not.
	if err := h.index.Ingest(context.Background(), h.ledgerDir); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	for _, id := range []string{"1", "2", "4", "5"} {
		row, err := h.index.Row(context.Background(), id)
		if err != nil {
			t.Fatalf("Row(%s) error = %v", id, err)
		}
		if row == nil || !row.Scraped {
			t.Errorf("row %s = %+v, want scraped", id, row)
		}
	}
	row, err := h.index.Row(context.Background(), "3")
	if err != nil {
		t.Fatalf("Row(3) error = %v", err)
	}
	if row == nil || row.Scraped {
		t.Errorf("row 3 = %+v, want unscraped", row)
	}
}

func TestRunDetailRetriesRecoverable(t *testing.T) {
	t.Parallel()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()

		driver := &fakeDriver{failFirstN: 2}
		h := newHarness(t, driver, &fakeStore{})
		discover(t, h, "1")

		out, err := h.crawler.RunDetail(context.Background(), 1, "", false)
		if err != nil {
			t.Fatalf("RunDetail() error = %v", err)
		}
		if out.Succeeded != 1 || out.Failed != 0 {
			t.Errorf("outcome = %+v, want one success", out)
		}
		if got := driver.detailCalls["1"]; got != 3 {
			t.Errorf("detail fetched %d times, want 3", got)
		}
	})

	t.Run("gives up after the bound", func(t *testing.T) {
		t.Parallel()

		driver := &fakeDriver{failFirstN: 100}
		h := newHarness(t, driver, &fakeStore{}, WithRetryAttempts(3))
		discover(t, h, "1")

		out, err := h.crawler.RunDetail(context.Background(), 1, "", false)
		if err != nil {
			t.Fatalf("RunDetail() error = %v", err)
		}
		if out.Failed != 1 {
			t.Errorf("outcome = %+v, want one failure", out)
		}
		if got := driver.detailCalls["1"]; got != 3 {
			t.Errorf("detail fetched %d times, want 3", got)
		}
	})
}

func TestRunDetailStoreFailureRecordsFailure(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{}
	store := &fakeStore{err: errors.New("disk full")}
	h := newHarness(t, driver, store)
	discover(t, h, "1")

	out, err := h.crawler.RunDetail(context.Background(), 1, "", false)
	if err != nil {
		t.Fatalf("RunDetail() error = %v", err)
	}
	if out.Succeeded != 0 || out.Failed != 1 {
		t.Errorf("outcome = %+v, want one failure", out)
	}
}

func TestRunDetailRecommendations(t *testing.T) {
	t.Parallel()

	t.Run("harvests related ids", func(t *testing.T) {
		t.Parallel()

		driver := &fakeDriver{
			recs: map[string][]string{"1": {"90", "91"}},
		}
		h := newHarness(t, driver, &fakeStore{})
		discover(t, h, "1")

		out, err := h.crawler.RunDetail(context.Background(), 1, "", true)
		if err != nil {
			t.Fatalf("RunDetail() error = %v", err)
		}
		if out.RecommendationsFound != 2 {
			t.Errorf("RecommendationsFound = %d, want 2", out.RecommendationsFound)
		}

		// The related IDs became recommendation discoveries.
		if err := h.index.Ingest(context.Background(), h.ledgerDir); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		ids, err := h.index.NextUnscraped(context.Background(), 10, model.SourceRecommendation)
		if err != nil {
			t.Fatalf("NextUnscraped() error = %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("recommendation ids = %v, want 2", ids)
		}
	})

	t.Run("harvest failure does not affect completion", func(t *testing.T) {
		t.Parallel()

		driver := &fakeDriver{recsErr: errors.New("section missing")}
		h := newHarness(t, driver, &fakeStore{})
		discover(t, h, "1")

		out, err := h.crawler.RunDetail(context.Background(), 1, "", true)
		if err != nil {
			t.Fatalf("RunDetail() error = %v", err)
		}
		if out.Succeeded != 1 {
			t.Errorf("Succeeded = %d, want 1 despite harvest failure", out.Succeeded)
		}
	})
}

func TestRunDetailSourceFilter(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{}
	h := newHarness(t, driver, &fakeStore{})
	discover(t, h, "1", "2")

	// Only search discoveries exist; filtering to recommendations
	// selects nothing.
	out, err := h.crawler.RunDetail(context.Background(), 10, model.SourceRecommendation, false)
	if err != nil {
		t.Fatalf("RunDetail() error = %v", err)
	}
	if out.Attempted != 0 {
		t.Errorf("Attempted = %d, want 0", out.Attempted)
	}
}

func TestRunLoopCyclesPickUpNewWork(t *testing.T) {
	t.Parallel()

	// Each search returns the same two IDs; the first cycle scrapes
	// them, the second finds nothing new to do.
	driver := &fakeDriver{pages: []SearchPage{
		{IDs: []string{"1", "2"}},
		{IDs: []string{"1", "2"}},
	}}
	h := newHarness(t, driver, &fakeStore{})

	out, err := h.crawler.RunLoop(context.Background(), model.Query{Keyword: "go"}, 2, 1, 10)
	if err != nil {
		t.Fatalf("RunLoop() error = %v", err)
	}

	if out.Cycles != 2 {
		t.Errorf("Cycles = %d, want 2", out.Cycles)
	}
	if out.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2 (each ID scraped exactly once)", out.Succeeded)
	}

	// No ID was scraped twice.
	for id, calls := range driver.detailCalls {
		if calls != 1 {
			t.Errorf("ID %s fetched %d times, want 1", id, calls)
		}
	}
}

func TestStatsAfterRun(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{pages: pagesOf(1, 3)}
	h := newHarness(t, driver, &fakeStore{})

	if _, err := h.crawler.RunSearch(context.Background(), model.Query{Keyword: "go"}, 1); err != nil {
		t.Fatalf("RunSearch() error = %v", err)
	}
	if _, err := h.crawler.RunDetail(context.Background(), 2, "", false); err != nil {
		t.Fatalf("RunDetail() error = %v", err)
	}

	stats, err := h.crawler.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalJobs != 3 {
		t.Errorf("TotalJobs = %d, want 3", stats.TotalJobs)
	}
	if stats.Scraped != 2 {
		t.Errorf("Scraped = %d, want 2", stats.Scraped)
	}
}

func TestActionsUsedCountsGatedActions(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{pages: pagesOf(2, 2)}
	h := newHarness(t, driver, &fakeStore{})

	if _, err := h.crawler.RunSearch(context.Background(), model.Query{Keyword: "go"}, 2); err != nil {
		t.Fatalf("RunSearch() error = %v", err)
	}
	if got := h.crawler.ActionsUsed(); got != 2 {
		t.Errorf("ActionsUsed() = %d, want 2", got)
	}
}

// TestRecordDiscoveryHonorsContext verifies the new-ID index lookup runs
// under the phase context: with a canceled context the lookup fails, the
// discovery still lands in the ledger, and the ID is conservatively
// counted as new.
func TestRecordDiscoveryHonorsContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeDriver{}, &fakeStore{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := &DiscoveryOutcome{}
	rec := model.DiscoveryRecord{
		JobID:        "4242",
		Source:       model.SourceSearch,
		DiscoveredAt: time.Now().UTC(),
		Keyword:      "go",
	}
	if err := h.crawler.recordDiscovery(ctx, rec, out); err != nil {
		t.Fatalf("recordDiscovery() error = %v", err)
	}

	if out.TotalFound != 1 {
		t.Errorf("TotalFound = %d, want 1", out.TotalFound)
	}
	if len(out.NewIDs) != 1 || out.NewIDs[0] != "4242" {
		t.Errorf("NewIDs = %v, want [4242]", out.NewIDs)
	}

	// The append is ctx-independent: the record must be replayable.
	if err := h.index.Ingest(context.Background(), h.ledgerDir); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	stats, err := h.index.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalJobs != 1 {
		t.Errorf("indexed jobs = %d, want 1", stats.TotalJobs)
	}
}
