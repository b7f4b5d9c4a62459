// Package storage persists extracted job records as JSON artifacts on the
// local filesystem and exports them in bulk.
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nao1215/jobscan/internal/model"
)

// jobsSubdir is the directory under the store root holding one file per job.
const jobsSubdir = "jobs"

// JobStore writes one JSON file per job under <root>/jobs/<id>.json.
//
// Design decision: We store one file per job rather than rows in the index
// database. The index is disposable and rebuilt from the ledger at any time;
// the extracted records are the actual product and must survive an index
// wipe. Flat files also make the data trivially greppable and rsyncable.
type JobStore struct {
	// root is the store's base directory.
	root string
}

// NewJobStore creates a JobStore rooted at dir. The jobs directory is
// created on first save, not here, so constructing a store is side-effect
// free.
func NewJobStore(dir string) *JobStore {
	return &JobStore{root: dir}
}

// SaveJob writes the record to <root>/jobs/<id>.json and returns the
// store-relative path as the artifact reference. Saving an existing ID
// overwrites the previous artifact.
//
// The write goes through a temp file in the same directory followed by a
// rename, so a crash mid-write never leaves a truncated artifact behind.
func (s *JobStore) SaveJob(ctx context.Context, id string, job *model.Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("storage: empty job ID")
	}
	if job == nil {
		return "", fmt.Errorf("storage: nil job for ID %s", id)
	}

	dir := filepath.Join(s.root, jobsSubdir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("storage: create jobs directory: %w", err)
	}

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", fmt.Errorf("storage: marshal job %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(dir, "."+id+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("storage: write job %s: %w", id, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("storage: sync job %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("storage: close temp file: %w", err)
	}

	final := filepath.Join(dir, id+".json")
	if err := os.Rename(tmpPath, final); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("storage: finalize job %s: %w", id, err)
	}

	return filepath.ToSlash(filepath.Join(jobsSubdir, id+".json")), nil
}

// Load reads one stored job by ID. Returns os.ErrNotExist (wrapped) when no
// artifact exists for the ID.
func (s *JobStore) Load(id string) (*model.Job, error) {
	data, err := os.ReadFile(filepath.Join(s.root, jobsSubdir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("storage: read job %s: %w", id, err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("storage: decode job %s: %w", id, err)
	}
	return &job, nil
}

// IDs returns the IDs of all stored jobs, sorted. A missing jobs directory
// yields an empty slice, not an error.
func (s *JobStore) IDs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, jobsSubdir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: list jobs: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// ExportJSONL streams every stored job to w as one JSON object per line,
// in ID order, and returns the number of records written. Artifacts that
// fail to decode are skipped so one corrupt file cannot block a full
// export.
func (s *JobStore) ExportJSONL(ctx context.Context, w io.Writer) (int, error) {
	ids, err := s.IDs()
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	written := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		job, err := s.Load(id)
		if err != nil {
			continue
		}

		line, err := json.Marshal(job)
		if err != nil {
			continue
		}
		if _, err := bw.Write(append(line, '\n')); err != nil {
			return written, fmt.Errorf("storage: export: %w", err)
		}
		written++
	}

	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("storage: export: %w", err)
	}
	return written, nil
}
