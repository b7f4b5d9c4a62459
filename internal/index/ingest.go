package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/jobscan/internal/ledger"
	"github.com/nao1215/jobscan/internal/model"
)

// decodeConcurrency bounds parallel segment decoding during ingest.
// Decoding is CPU-bound JSON work; the database apply stays single-writer.
const decodeConcurrency = 4

// segmentPayload carries one segment's decoded records to the apply phase.
type segmentPayload struct {
	segment     ledger.Segment
	relPath     string
	discoveries []model.DiscoveryRecord
	completions []model.CompletionRecord
	newOffset   int64
}

// Ingest folds every ledger segment under ledgerRoot into the index,
// reading only bytes beyond each segment's stored offset. Segments already
// fully folded are no-ops, so Ingest is cheap to call before every phase
// and safe to call while other runs append to their own segments.
func (ix *Index) Ingest(ctx context.Context, ledgerRoot string) error {
	segments, err := ledger.Segments(ledgerRoot)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return nil
	}

	offsets, err := ix.segmentOffsets(ctx)
	if err != nil {
		return err
	}

	// Decode in parallel, apply serially. SQLite has a single writer
	// anyway, so parallelism only helps the read-and-decode half.
	payloads := make([]*segmentPayload, len(segments))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(decodeConcurrency)

	for i, seg := range segments {
		g.Go(func() error {
			rel, err := filepath.Rel(ledgerRoot, seg.Path)
			if err != nil {
				rel = seg.Path
			}

			lines, newOffset, err := ledger.ReadNewLines(seg.Path, offsets[rel])
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				return nil
			}

			p := &segmentPayload{segment: seg, relPath: rel, newOffset: newOffset}
			switch seg.Kind {
			case ledger.KindDiscovery:
				p.discoveries = ledger.DecodeDiscovery(lines, ix.logger)
			case ledger.KindCompletion:
				p.completions = ledger.DecodeCompletion(lines, ix.logger)
			}
			payloads[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range payloads {
		if p == nil {
			continue
		}
		if err := ix.applySegment(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild discards all derived state and folds every segment from scratch.
// Rebuilding from the same segments always yields the same rows: the fold
// is order-insensitive, and offsets reset with everything else.
func (ix *Index) Rebuild(ctx context.Context, ledgerRoot string) error {
	for _, table := range []string{"jobs", "job_sources", "outcome_counts", "segments"} {
		if _, err := ix.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("index: reset %s: %w", table, err)
		}
	}
	return ix.Ingest(ctx, ledgerRoot)
}

// applySegment folds one segment's new records in a single transaction,
// advancing the stored offset in the same transaction so a crash between
// fold and offset update cannot happen.
func (ix *Index) applySegment(ctx context.Context, p *segmentPayload) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin ingest transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range p.discoveries {
		if err := applyDiscovery(ctx, tx, rec); err != nil {
			return fmt.Errorf("index: fold discovery %s: %w", rec.JobID, err)
		}
	}
	for _, rec := range p.completions {
		if err := applyCompletion(ctx, tx, rec); err != nil {
			return fmt.Errorf("index: fold completion %s: %w", rec.JobID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO segments (path, kind, bytes_processed, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			kind = excluded.kind,
			bytes_processed = excluded.bytes_processed,
			updated_at = excluded.updated_at`,
		p.relPath, string(p.segment.Kind), p.newOffset, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("index: record segment offset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit ingest transaction: %w", err)
	}
	return nil
}

// applyDiscovery folds one discovery record: earliest timestamp wins,
// the per-ID counter grows, and the (id, source) pair is remembered once.
func applyDiscovery(ctx context.Context, tx *sql.Tx, rec model.DiscoveryRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (id, first_discovered_at, discovery_count)
		VALUES (?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			first_discovered_at = CASE
				WHEN jobs.first_discovered_at = '' THEN excluded.first_discovered_at
				WHEN excluded.first_discovered_at < jobs.first_discovered_at THEN excluded.first_discovered_at
				ELSE jobs.first_discovered_at
			END,
			discovery_count = jobs.discovery_count + 1`,
		rec.JobID, rec.DiscoveredAt.UTC().Format(timeLayout))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO job_sources (id, source) VALUES (?, ?)",
		rec.JobID, string(rec.Source))
	return err
}

// applyCompletion folds one completion record: scraped latches true on any
// success, and last_outcome tracks the most recent completion timestamp.
func applyCompletion(ctx context.Context, tx *sql.Tx, rec model.CompletionRecord) error {
	scraped := 0
	if rec.Outcome == model.OutcomeSuccess {
		scraped = 1
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (id, scraped, last_outcome, last_completed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			scraped = MAX(jobs.scraped, excluded.scraped),
			last_outcome = CASE
				WHEN excluded.last_completed_at >= jobs.last_completed_at THEN excluded.last_outcome
				ELSE jobs.last_outcome
			END,
			last_completed_at = CASE
				WHEN excluded.last_completed_at >= jobs.last_completed_at THEN excluded.last_completed_at
				ELSE jobs.last_completed_at
			END`,
		rec.JobID, scraped, string(rec.Outcome), rec.CompletedAt.UTC().Format(timeLayout))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outcome_counts (outcome, count) VALUES (?, 1)
		ON CONFLICT(outcome) DO UPDATE SET count = outcome_counts.count + 1`,
		string(rec.Outcome))
	return err
}

// segmentOffsets loads all stored per-segment byte offsets.
func (ix *Index) segmentOffsets(ctx context.Context) (map[string]int64, error) {
	rows, err := ix.db.QueryContext(ctx, "SELECT path, bytes_processed FROM segments")
	if err != nil {
		return nil, fmt.Errorf("index: load segment offsets: %w", err)
	}
	defer rows.Close()

	offsets := make(map[string]int64)
	for rows.Next() {
		var (
			path   string
			offset int64
		)
		if err := rows.Scan(&path, &offset); err != nil {
			return nil, fmt.Errorf("index: scan segment offset: %w", err)
		}
		offsets[path] = offset
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterate segment offsets: %w", err)
	}
	return offsets, nil
}

// OpenAndSync opens the index under dir and folds in any new ledger data.
// Index corruption is never fatal: on any open or ingest failure the
// database file is deleted and rebuilt from the ledger, which loses
// nothing because the ledger is the source of truth.
func OpenAndSync(ctx context.Context, dir, ledgerRoot string, logger *slog.Logger) (*Index, error) {
	ix, err := Open(dir, logger)
	if err != nil {
		logger.Warn("index open failed, rebuilding from ledger", "error", err)
	} else {
		ingestErr := ix.Ingest(ctx, ledgerRoot)
		if ingestErr == nil {
			return ix, nil
		}
		logger.Warn("index ingest failed, rebuilding from ledger", "error", ingestErr)
		_ = ix.Close()
	}

	// Drop the damaged database including WAL side files.
	base := filepath.Join(dir, dbFileName)
	for _, path := range []string{base, base + "-wal", base + "-shm"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("index: remove damaged database: %w", err)
		}
	}

	ix, err = Open(dir, logger)
	if err != nil {
		return nil, err
	}
	if err := ix.Rebuild(ctx, ledgerRoot); err != nil {
		_ = ix.Close()
		return nil, err
	}
	return ix, nil
}
