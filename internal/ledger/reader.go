package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nao1215/jobscan/internal/model"
)

// Segment identifies one ledger segment file on disk.
type Segment struct {
	// Path is the absolute or root-relative file path.
	Path string

	// Kind is the record kind stored in the file.
	Kind Kind
}

// Segments lists all segment files under root, both kinds, sorted by path.
// Run IDs start with a UTC timestamp, so path order is also rough
// chronological order. A missing kind directory is not an error: a fresh
// data directory simply has no segments yet.
func Segments(root string) ([]Segment, error) {
	var segments []Segment

	for _, kind := range []Kind{KindDiscovery, KindCompletion} {
		dir := filepath.Join(root, string(kind))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("ledger: list %s segments: %w", kind, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), segmentExt) {
				continue
			}
			segments = append(segments, Segment{
				Path: filepath.Join(dir, e.Name()),
				Kind: kind,
			})
		}
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].Path < segments[j].Path })
	return segments, nil
}

// ReadNewLines returns the complete lines appended to path since offset,
// plus the offset just past the last complete line. A trailing partial
// line, the worst a crash can leave, is not returned and not consumed,
// so it is retried once the writer finishes it or skipped forever if the
// writer died.
//
// Reading a segment that another run is still appending to is safe: the
// file is append-only, so bytes before newOffset never change.
func ReadNewLines(path string, offset int64) (lines [][]byte, newOffset int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, offset, nil
		}
		return nil, offset, fmt.Errorf("ledger: open segment %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("ledger: stat segment %s: %w", path, err)
	}

	// A bad persisted offset (e.g. the segment was restored from a
	// different machine) falls back to a full re-read; folding is
	// idempotent, so re-reading is safe.
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if offset == info.Size() {
		return nil, offset, nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("ledger: seek segment %s: %w", path, err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, offset, fmt.Errorf("ledger: read segment %s: %w", path, err)
	}

	lastNL := bytes.LastIndexByte(data, '\n')
	if lastNL < 0 {
		return nil, offset, nil
	}

	complete := data[:lastNL]
	newOffset = offset + int64(lastNL) + 1

	for _, line := range bytes.Split(complete, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	return lines, newOffset, nil
}

// DecodeDiscovery decodes discovery records from raw JSONL lines.
// Malformed or invalid lines are logged and skipped: one corrupt line must
// never block replaying the rest of the ledger.
func DecodeDiscovery(lines [][]byte, logger *slog.Logger) []model.DiscoveryRecord {
	records := make([]model.DiscoveryRecord, 0, len(lines))
	for _, line := range lines {
		var rec model.DiscoveryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn("skipping malformed discovery line", "error", err)
			continue
		}
		if err := rec.Validate(); err != nil {
			logger.Warn("skipping invalid discovery record", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// DecodeCompletion decodes completion records from raw JSONL lines,
// skipping malformed or invalid lines.
func DecodeCompletion(lines [][]byte, logger *slog.Logger) []model.CompletionRecord {
	records := make([]model.CompletionRecord, 0, len(lines))
	for _, line := range lines {
		var rec model.CompletionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn("skipping malformed completion line", "error", err)
			continue
		}
		if err := rec.Validate(); err != nil {
			logger.Warn("skipping invalid completion record", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}
