// Package index maintains the local, disposable SQLite projection of the
// ledger. It answers "what is unscraped" and "what are the totals" quickly
// so the orchestrator never has to replay JSONL segments on the hot path.
//
// The index is never a source of truth: it can be deleted at any time and
// reconstructed from the ledger, and it is deliberately excluded from any
// cross-machine synchronization.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/jobscan/internal/model"
)

// dbFileName is the index database file name inside the index directory.
const dbFileName = "jobs.db"

// timeLayout is a fixed-width UTC timestamp format. Fixed width matters:
// the fold compares timestamps lexicographically inside SQL, which is only
// correct when every value has identical shape.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Index is the SQLite-backed projection of all ledger segments.
//
// Design decision: one jobs row per distinct ID plus a (id, source) table,
// rather than the ledger's event granularity. The fold that maintains these
// rows is order-insensitive and monotone (earliest discovery wins, scraped
// latches true, latest completion wins), so segments may be ingested in any
// order and re-ingestion is harmless.
type Index struct {
	// db is the underlying SQL connection.
	db *sql.DB

	// path is the database file location, kept for corruption recovery.
	path string

	// logger receives ingest warnings for skipped ledger lines.
	logger *slog.Logger
}

// Open opens or creates the index database under dir.
func Open(dir string, logger *slog.Logger) (*Index, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("index: create directory: %w", err)
	}

	path := filepath.Join(dir, dbFileName)
	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("index: open database: %w", err)
	}

	// SQLite supports one writer; funneling everything through a single
	// connection avoids SQLITE_BUSY churn during ingest.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ix := &Index{db: db, path: path, logger: logger}

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=30000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("index: %s: %w", pragma, err)
		}
	}

	if err := ix.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("index: create tables: %w", err)
	}

	return ix, nil
}

// Close closes the database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Path returns the database file path.
func (ix *Index) Path() string {
	return ix.path
}

// createTables creates the schema if it does not exist.
func (ix *Index) createTables(ctx context.Context) error {
	schema := `
	-- One row per distinct job ID, folded from all ledger segments.
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		first_discovered_at TEXT NOT NULL DEFAULT '',
		discovery_count INTEGER NOT NULL DEFAULT 0,
		scraped INTEGER NOT NULL DEFAULT 0,
		last_outcome TEXT NOT NULL DEFAULT '',
		last_completed_at TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_scraped ON jobs(scraped, first_discovered_at);

	-- Distinct (id, source) observations for per-source stats and filters.
	CREATE TABLE IF NOT EXISTS job_sources (
		id TEXT NOT NULL,
		source TEXT NOT NULL,
		PRIMARY KEY (id, source)
	);

	-- Completion event counters by outcome.
	CREATE TABLE IF NOT EXISTS outcome_counts (
		outcome TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0
	);

	-- Bytes folded in per segment file. Re-ingesting a fully folded
	-- segment is a no-op because its offset already equals its size.
	CREATE TABLE IF NOT EXISTS segments (
		path TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		bytes_processed INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := ix.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	_, err := ix.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', '1')")
	return err
}

// NextUnscraped returns up to limit job IDs that have never had a
// successful completion, oldest discovery first. An empty source returns
// IDs regardless of how they were discovered.
func (ix *Index) NextUnscraped(ctx context.Context, limit int, source model.Source) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	builder := sq.Select("jobs.id").
		From("jobs").
		Where(sq.Eq{"jobs.scraped": 0}).
		OrderBy("jobs.first_discovered_at ASC", "jobs.id ASC").
		Limit(uint64(limit))

	if source != "" {
		builder = builder.
			Join("job_sources ON job_sources.id = jobs.id").
			Where(sq.Eq{"job_sources.source": string(source)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("index: build next-unscraped query: %w", err)
	}

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query unscraped: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("index: scan unscraped row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterate unscraped rows: %w", err)
	}
	return ids, nil
}

// Row returns the folded projection of one job ID, or nil if unknown.
func (ix *Index) Row(ctx context.Context, id string) (*model.IndexRow, error) {
	query, args, err := sq.Select("id", "first_discovered_at", "discovery_count", "scraped", "last_outcome").
		From("jobs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("index: build row query: %w", err)
	}

	var (
		row         model.IndexRow
		firstSeen   string
		scrapedInt  int
		lastOutcome string
	)
	err = ix.db.QueryRowContext(ctx, query, args...).
		Scan(&row.JobID, &firstSeen, &row.DiscoveryCount, &scrapedInt, &lastOutcome)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: query row %s: %w", id, err)
	}

	if firstSeen != "" {
		t, err := time.Parse(timeLayout, firstSeen)
		if err != nil {
			return nil, fmt.Errorf("index: parse first_discovered_at for %s: %w", id, err)
		}
		row.FirstDiscoveredAt = t
	}
	row.Scraped = scrapedInt != 0
	row.LastOutcome = model.Outcome(lastOutcome)
	return &row, nil
}

// Stats aggregates the index into reportable counts.
func (ix *Index) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{
		BySource:  make(map[model.Source]int),
		ByOutcome: make(map[model.Outcome]int),
	}

	query, args, err := sq.Select("COUNT(*)", "COALESCE(SUM(scraped), 0)").From("jobs").ToSql()
	if err != nil {
		return nil, fmt.Errorf("index: build totals query: %w", err)
	}
	if err := ix.db.QueryRowContext(ctx, query, args...).Scan(&stats.TotalJobs, &stats.Scraped); err != nil {
		return nil, fmt.Errorf("index: query totals: %w", err)
	}
	stats.Unscraped = stats.TotalJobs - stats.Scraped

	query, args, err = sq.Select("source", "COUNT(*)").From("job_sources").GroupBy("source").ToSql()
	if err != nil {
		return nil, fmt.Errorf("index: build source counts query: %w", err)
	}
	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query source counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			source string
			count  int
		)
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("index: scan source count: %w", err)
		}
		stats.BySource[model.Source(source)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterate source counts: %w", err)
	}

	query, args, err = sq.Select("outcome", "count").From("outcome_counts").ToSql()
	if err != nil {
		return nil, fmt.Errorf("index: build outcome counts query: %w", err)
	}
	outcomeRows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query outcome counts: %w", err)
	}
	defer outcomeRows.Close()
	for outcomeRows.Next() {
		var (
			outcome string
			count   int
		)
		if err := outcomeRows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("index: scan outcome count: %w", err)
		}
		stats.ByOutcome[model.Outcome(outcome)] = count
	}
	if err := outcomeRows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterate outcome counts: %w", err)
	}

	return stats, nil
}
