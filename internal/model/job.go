// Package model defines the core data types shared across jobscan:
// discovery/completion ledger records, extracted job details, and the
// derived index row shape.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source describes how a job ID entered the system.
type Source string

const (
	// SourceSearch marks IDs harvested from a paginated search results page.
	SourceSearch Source = "search"

	// SourceRecommendation marks IDs harvested from the "similar jobs"
	// section of an already-scraped job page.
	SourceRecommendation Source = "recommendation"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceSearch || s == SourceRecommendation
}

// Outcome is the result of one detail-extraction attempt.
type Outcome string

const (
	// OutcomeSuccess means the job page was fetched and parsed.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure means the attempt gave up, either after exhausting
	// retries or immediately on a fatal fetch error.
	OutcomeFailure Outcome = "failure"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

// FailureKind classifies why a detail-extraction attempt failed.
type FailureKind string

const (
	// FailureRecoverable marks transient failures (timeouts, temporary
	// block pages) that were retried before giving up.
	FailureRecoverable FailureKind = "recoverable"

	// FailureFatal marks permanent failures (job removed, page
	// irreparably malformed) that were not retried.
	FailureFatal FailureKind = "fatal"
)

// Query identifies one job search: a keyword plus a region filter.
// Region may be a country name or a short code ("germany", "de").
type Query struct {
	Keyword string
	Region  string
}

// String returns a compact human-readable form for logging.
func (q Query) String() string {
	if q.Region == "" {
		return q.Keyword
	}
	return q.Keyword + " (" + q.Region + ")"
}

// Validate checks that the query is usable for a search.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Keyword) == "" {
		return fmt.Errorf("query: keyword must not be empty")
	}
	return nil
}

// DiscoveryRecord is one observation of a job ID. The discovery ledger is
// append-only and intentionally not deduplicated at write time: the same
// (id, source) pair may be recorded by many runs. Deduplication is a
// read-time concern of the local index.
type DiscoveryRecord struct {
	// JobID is the opaque, stable identifier of the listing.
	JobID string `json:"job_id"`

	// Source records how the ID was observed.
	Source Source `json:"source"`

	// DiscoveredAt is the observation time in UTC.
	DiscoveredAt time.Time `json:"discovered_at"`

	// Keyword and Region carry the originating query.
	// Set only when Source is SourceSearch.
	Keyword string `json:"keyword,omitempty"`
	Region  string `json:"region,omitempty"`

	// OriginJobID is the ID of the job page whose recommendation section
	// yielded this ID. Set only when Source is SourceRecommendation.
	OriginJobID string `json:"origin_job_id,omitempty"`
}

// Validate checks structural integrity of the record.
// Ledger readers skip records that fail validation rather than abort.
func (r DiscoveryRecord) Validate() error {
	if r.JobID == "" {
		return fmt.Errorf("discovery record: job_id must not be empty")
	}
	if !r.Source.Valid() {
		return fmt.Errorf("discovery record: unknown source %q", r.Source)
	}
	if r.DiscoveredAt.IsZero() {
		return fmt.Errorf("discovery record: discovered_at must be set")
	}
	return nil
}

// CompletionRecord is one finished detail-extraction attempt, successful
// or not. Like discovery records, completions are append-only.
type CompletionRecord struct {
	// JobID is the listing the attempt targeted.
	JobID string `json:"job_id"`

	// CompletedAt is the attempt completion time in UTC.
	CompletedAt time.Time `json:"completed_at"`

	// Outcome is success or failure.
	Outcome Outcome `json:"outcome"`

	// FailureKind is set iff Outcome is OutcomeFailure.
	FailureKind FailureKind `json:"failure_kind,omitempty"`

	// ArtifactRef points at the externally stored extracted record.
	// Set iff Outcome is OutcomeSuccess.
	ArtifactRef string `json:"artifact_ref,omitempty"`
}

// Validate checks structural integrity of the record.
func (r CompletionRecord) Validate() error {
	if r.JobID == "" {
		return fmt.Errorf("completion record: job_id must not be empty")
	}
	if !r.Outcome.Valid() {
		return fmt.Errorf("completion record: unknown outcome %q", r.Outcome)
	}
	if r.CompletedAt.IsZero() {
		return fmt.Errorf("completion record: completed_at must be set")
	}
	if r.Outcome == OutcomeFailure && r.FailureKind == "" {
		return fmt.Errorf("completion record: failure_kind required for failures")
	}
	return nil
}

// Job holds the fields extracted from a single job detail page.
// All fields except JobID are best-effort: selectors drift, and a partially
// extracted job is still worth keeping.
type Job struct {
	JobID     string    `json:"job_id"`
	ScrapedAt time.Time `json:"scraped_at"`

	Title         string `json:"title,omitempty"`
	Company       string `json:"company,omitempty"`
	Location      string `json:"location,omitempty"`
	WorkplaceType string `json:"workplace_type,omitempty"`

	EmploymentType string `json:"employment_type,omitempty"`
	SeniorityLevel string `json:"seniority_level,omitempty"`
	Industry       string `json:"industry,omitempty"`
	JobFunction    string `json:"job_function,omitempty"`

	Description string `json:"description,omitempty"`

	PostedDate     string `json:"posted_date,omitempty"`
	ApplicantCount string `json:"applicant_count,omitempty"`
	SalaryRange    string `json:"salary_range,omitempty"`

	Skills []string `json:"skills,omitempty"`
}

// IndexRow is the derived per-ID projection built by folding all ledger
// segments. It is disposable state: deleting the index and replaying the
// ledger reproduces it exactly.
type IndexRow struct {
	// JobID is the distinct listing identifier.
	JobID string

	// FirstDiscoveredAt is the earliest discovery timestamp seen.
	FirstDiscoveredAt time.Time

	// DiscoveryCount is how many discovery records mention this ID.
	DiscoveryCount int

	// Scraped latches true on the first successful completion and is
	// never reset by later failures.
	Scraped bool

	// LastOutcome is the outcome of the most recent completion, empty if
	// the ID was never attempted.
	LastOutcome Outcome
}

// Stats aggregates index counts for reporting.
type Stats struct {
	// TotalJobs is the number of distinct job IDs known.
	TotalJobs int

	// Scraped and Unscraped partition TotalJobs by scrape status.
	Scraped   int
	Unscraped int

	// BySource counts distinct IDs per discovery source. An ID observed
	// through both search and recommendations counts once per source.
	BySource map[Source]int

	// ByOutcome counts completion records per outcome.
	ByOutcome map[Outcome]int
}

// NewRunID returns a globally unique run identifier: a UTC timestamp for
// human-sortable ledger file names plus a random suffix so concurrent runs
// on different machines never collide.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.UTC().Format("20060102-150405") + "-" + suffix
}
