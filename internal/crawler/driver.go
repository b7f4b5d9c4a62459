package crawler

import (
	"context"

	"github.com/nao1215/jobscan/internal/model"
)

// SearchPage is one page of search results.
type SearchPage struct {
	// IDs are the job IDs visible on this page, in page order.
	IDs []string

	// NextPageToken requests the following page. Empty means this was
	// the last page.
	NextPageToken string
}

// Driver is the external browser-automation collaborator. The orchestrator
// never touches pages directly: it sequences gated fetches through this
// interface, which keeps the state machine testable with a fake and the
// browser stack swappable.
//
// FetchDetail errors should be classified with Recoverable or Fatal so the
// retry policy can distinguish transient failures from permanent ones; an
// unclassified error is treated as fatal.
type Driver interface {
	// FetchSearchPage loads one page of search results for query.
	// An empty pageToken requests the first page.
	FetchSearchPage(ctx context.Context, query model.Query, pageToken string) (*SearchPage, error)

	// FetchDetail loads and parses one job detail page.
	FetchDetail(ctx context.Context, id string) (*model.Job, error)

	// FetchRecommendations returns job IDs related to an already
	// scraped listing.
	FetchRecommendations(ctx context.Context, id string) ([]string, error)
}

// RecordStore is the external storage collaborator for extracted records.
// SaveJob must be idempotent: saving the same ID twice overwrites.
type RecordStore interface {
	// SaveJob persists the extracted record and returns a reference to
	// the stored artifact for the completion ledger.
	SaveJob(ctx context.Context, id string, job *model.Job) (ref string, err error)
}
