// Package ledger persists crawl events as append-only JSONL segments.
//
// The ledger is the source of truth for crawl state. Each run owns exactly
// one segment file per record kind, named by run ID; once a run ends its
// segments are never touched again. Because concurrent runs write disjoint
// files, the ledger directory can be synchronized between machines by any
// file-sync mechanism without merge conflicts. The queryable SQLite index
// is derived from these segments and is always disposable.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nao1215/jobscan/internal/model"
)

// Kind names one record kind and its segment subdirectory.
type Kind string

const (
	// KindDiscovery holds model.DiscoveryRecord segments.
	KindDiscovery Kind = "discovery"

	// KindCompletion holds model.CompletionRecord segments.
	KindCompletion Kind = "completion"
)

// segmentExt is the file extension for ledger segments.
const segmentExt = ".jsonl"

// Writer appends records to the current run's segments. One Writer per run;
// segments are created lazily on first append so an idle run leaves no
// empty files behind.
//
// Every append is flushed with fsync before returning. A process killed
// mid-write can leave at most one incomplete trailing line, which readers
// skip; an acknowledged append is never lost.
type Writer struct {
	// root is the ledger directory containing the per-kind subdirectories.
	root string

	// runID names this run's segment files.
	runID string

	// mu serializes appends. The orchestrator is sequential, but the
	// recommendation harvest and tests may append from helper goroutines.
	mu sync.Mutex

	// files holds lazily opened segment files by kind.
	files map[Kind]*os.File
}

// NewWriter creates a Writer rooted at dir for the given run ID.
func NewWriter(dir, runID string) *Writer {
	return &Writer{
		root:  dir,
		runID: runID,
		files: make(map[Kind]*os.File),
	}
}

// RunID returns the run this writer belongs to.
func (w *Writer) RunID() string {
	return w.runID
}

// SegmentPath returns the path of this run's segment for kind.
func (w *Writer) SegmentPath(kind Kind) string {
	return filepath.Join(w.root, string(kind), w.runID+segmentExt)
}

// AppendDiscovery appends one discovery record to the run's discovery
// segment and flushes it durably.
func (w *Writer) AppendDiscovery(rec model.DiscoveryRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("ledger: refusing to append: %w", err)
	}
	return w.append(KindDiscovery, rec)
}

// AppendCompletion appends one completion record to the run's completion
// segment and flushes it durably.
func (w *Writer) AppendCompletion(rec model.CompletionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("ledger: refusing to append: %w", err)
	}
	return w.append(KindCompletion, rec)
}

// append encodes v as one JSONL line and writes it to the segment for kind.
func (w *Writer) append(kind Kind, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.file(kind)
	if err != nil {
		return err
	}

	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ledger: encode %s record: %w", kind, err)
	}
	line = append(line, '\n')

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("ledger: append to %s: %w", f.Name(), err)
	}

	// Durability boundary: the record must survive a kill -9 as soon as
	// this method returns, because the orchestrator treats it as recorded.
	if err := f.Sync(); err != nil {
		return fmt.Errorf("ledger: sync %s: %w", f.Name(), err)
	}

	return nil
}

// file returns the open segment file for kind, creating it on first use.
func (w *Writer) file(kind Kind) (*os.File, error) {
	if f, ok := w.files[kind]; ok {
		return f, nil
	}

	path := w.SegmentPath(kind)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("ledger: create segment directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("ledger: open segment %s: %w", path, err)
	}

	w.files[kind] = f
	return f, nil
}

// Close closes all open segment files. The run's segments are immutable
// from this point on.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for kind, f := range w.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("ledger: close %s segment: %w", kind, err)
		}
		delete(w.files, kind)
	}
	return firstErr
}
