package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nao1215/jobscan/internal/crawler"
	"github.com/nao1215/jobscan/internal/humanize"
	"github.com/nao1215/jobscan/internal/model"
)

// Driver fetches listing and detail pages through a managed Chrome
// instance. It implements crawler.Driver.
//
// Navigation failures and authentication walls are classified as
// recoverable; a detail page that loads but yields no parseable content
// is fatal, since retrying a removed listing cannot succeed.
type Driver struct {
	manager     *Manager
	pace        pacing
	pageTimeout time.Duration
	logger      *slog.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithDriverLogger sets the logger. Defaults to slog.Default().
func WithDriverLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDriverHumanizer sets the randomness source for pacing. Defaults to
// a fresh non-deterministic Humanizer.
func WithDriverHumanizer(h *humanize.Humanizer) DriverOption {
	return func(d *Driver) {
		if h != nil {
			d.pace.human = h
		}
	}
}

// WithActionDelays sets the think-time range between page actions.
func WithActionDelays(min, max time.Duration) DriverOption {
	return func(d *Driver) {
		d.pace.minDelay = min
		d.pace.maxDelay = max
	}
}

// WithTypingDelay sets the base per-keystroke delay.
func WithTypingDelay(delay time.Duration) DriverOption {
	return func(d *Driver) {
		if delay > 0 {
			d.pace.typingDelay = delay
		}
	}
}

// WithMouseSteps sets the number of points on a pointer movement path.
func WithMouseSteps(steps int) DriverOption {
	return func(d *Driver) {
		if steps > 0 {
			d.pace.mouseSteps = steps
		}
	}
}

// WithPageTimeout bounds each navigation.
func WithPageTimeout(timeout time.Duration) DriverOption {
	return func(d *Driver) {
		if timeout > 0 {
			d.pageTimeout = timeout
		}
	}
}

// NewDriver creates a Driver on top of a started Manager.
func NewDriver(manager *Manager, opts ...DriverOption) *Driver {
	d := &Driver{
		manager: manager,
		pace: pacing{
			minDelay:    800 * time.Millisecond,
			maxDelay:    3 * time.Second,
			typingDelay: 80 * time.Millisecond,
			mouseSteps:  25,
		},
		pageTimeout: 30 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pace.human == nil {
		d.pace.human = humanize.New()
	}
	return d
}

// FetchSearchPage loads one page of search results. Page tokens are the
// result offset of the next page; an empty token means offset zero.
func (d *Driver) FetchSearchPage(ctx context.Context, query model.Query, pageToken string) (*crawler.SearchPage, error) {
	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, fmt.Errorf("browser: malformed page token %q: %w", pageToken, err)
		}
		start = n
	}

	searchURL := buildSearchURL(query.Keyword, query.Region, start)
	d.logger.Debug("fetching search page", "query", query.String(), "start", start)

	page, err := d.openPage(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = page.Close() }()

	if start == 0 && d.pace.human.Chance(0.25) {
		d.retypeSearch(ctx, page, query.Keyword)
	}

	// Results below the fold only render after scrolling.
	if err := d.pace.scrollPage(ctx, page); err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := d.pace.dwell(ctx); err != nil {
		return nil, err
	}

	html, err := page.HTML()
	if err != nil {
		return nil, crawler.Recoverable(fmt.Errorf("read search page: %w", err))
	}
	if isAuthWall(page, html) {
		return nil, crawler.Recoverable(errors.New("authentication wall on search page"))
	}

	ids := extractJobIDs(html)
	if len(ids) == 0 {
		return &crawler.SearchPage{}, nil
	}

	return &crawler.SearchPage{
		IDs:           ids,
		NextPageToken: strconv.Itoa(start + resultsPerPage),
	}, nil
}

// FetchDetail loads and parses one job detail page.
func (d *Driver) FetchDetail(ctx context.Context, id string) (*model.Job, error) {
	d.logger.Debug("fetching job detail", "job_id", id)

	page, err := d.openPage(ctx, buildJobURL(id))
	if err != nil {
		return nil, err
	}
	defer func() { _ = page.Close() }()

	if err := d.pace.dwell(ctx); err != nil {
		return nil, err
	}
	if err := d.pace.scrollPage(ctx, page); err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Occasionally wander the pointer, as a reader skimming the page
	// would. Failures here are cosmetic.
	if d.pace.human.Chance(0.3) {
		from := humanize.Point{X: 200, Y: 300}
		to := humanize.Point{X: 600, Y: 500}
		_ = d.pace.movePointer(page, from, to)
	}

	expandDescription(page)

	html, err := page.HTML()
	if err != nil {
		return nil, crawler.Recoverable(fmt.Errorf("read detail page: %w", err))
	}
	if isAuthWall(page, html) {
		return nil, crawler.Recoverable(errors.New("authentication wall on detail page"))
	}

	job, err := parseJob(id, html, time.Now().UTC())
	if err != nil {
		return nil, crawler.Fatal(fmt.Errorf("parse detail page: %w", err))
	}
	if job.Title == "" {
		return nil, crawler.Fatal(errors.New("detail page has no job content"))
	}

	return job, nil
}

// FetchRecommendations returns job IDs related to an already scraped
// listing, collected from the detail page's sidebar and similar-jobs
// sections.
func (d *Driver) FetchRecommendations(ctx context.Context, id string) ([]string, error) {
	d.logger.Debug("fetching recommendations", "job_id", id)

	page, err := d.openPage(ctx, buildJobURL(id))
	if err != nil {
		return nil, err
	}
	defer func() { _ = page.Close() }()

	// Recommendation sections sit at the bottom of the page and render
	// lazily.
	if err := d.pace.scrollPage(ctx, page); err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := d.pace.dwell(ctx); err != nil {
		return nil, err
	}

	html, err := page.HTML()
	if err != nil {
		return nil, crawler.Recoverable(fmt.Errorf("read detail page: %w", err))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, crawler.Recoverable(fmt.Errorf("parse detail page: %w", err))
	}

	return extractRecommendedIDs(doc, id), nil
}

// openPage creates a fresh stealth page and navigates it. Navigation and
// load errors are recoverable.
func (d *Driver) openPage(ctx context.Context, pageURL string) (*rod.Page, error) {
	page, err := d.manager.NewPage(ctx)
	if err != nil {
		return nil, err
	}

	navCtx, cancel := context.WithTimeout(ctx, d.pageTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		_ = page.Close()
		return nil, crawler.Recoverable(fmt.Errorf("navigate %s: %w", pageURL, err))
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		_ = page.Close()
		return nil, crawler.Recoverable(fmt.Errorf("load %s: %w", pageURL, err))
	}

	return page, nil
}

// retypeSearch focuses the keyword box, selects its contents, and
// retypes the query rune by rune, the way a person refining a search
// does. Best effort: pages without the box skip it.
func (d *Driver) retypeSearch(ctx context.Context, page *rod.Page, keyword string) {
	selectors := []string{
		`input[id*="jobs-search-box-keyword"]`,
		".jobs-search-box__text-input",
		`input[aria-label*="Search by title"]`,
	}
	for _, selector := range selectors {
		el, err := page.Timeout(2 * time.Second).Element(selector)
		if err != nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return
		}
		if err := el.SelectAllText(); err != nil {
			return
		}
		// The first inserted rune replaces the selection.
		_ = d.pace.typeText(ctx, page, keyword)
		return
	}
}

// expandDescription clicks the "see more" toggle so the full description
// is in the DOM. Best effort: markup generations without the toggle just
// skip it.
func expandDescription(page *rod.Page) {
	selectors := []string{
		`button[aria-label*="see more"]`,
		`button[aria-label*="Show more"]`,
		".show-more-less-html__button--more",
	}
	for _, selector := range selectors {
		el, err := page.Timeout(2 * time.Second).Element(selector)
		if err != nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			return
		}
	}
}

// isAuthWall reports whether the served page is a login or authentication
// wall instead of the requested content.
func isAuthWall(page *rod.Page, html string) bool {
	if info, err := page.Info(); err == nil {
		if strings.Contains(info.URL, "/authwall") || strings.Contains(info.URL, "/checkpoint/") ||
			strings.Contains(info.URL, "/login") || strings.Contains(info.URL, "/uas/") {
			return true
		}
	}
	return strings.Contains(html, "authwall") && !strings.Contains(html, "data-job-id")
}
