package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/jobscan/internal/model"
)

// JSONWriter outputs summaries in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. It provides consistent behavior across Go versions
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = ""
		w.indentString = "  "
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// jsonSummary is the wire shape of a summary. A dedicated type keeps the
// JSON field names stable regardless of how Summary and Stats evolve.
type jsonSummary struct {
	GeneratedAt string               `json:"generated_at"`
	DataDir     string               `json:"data_dir,omitempty"`
	TotalJobs   int                  `json:"total_jobs"`
	Scraped     int                  `json:"scraped"`
	Unscraped   int                  `json:"unscraped"`
	BySource    map[model.Source]int `json:"by_source,omitempty"`
	ByOutcome   map[string]int       `json:"by_outcome,omitempty"`
}

// Write outputs the summary in JSON format.
func (w *JSONWriter) Write(summary *Summary) (int, error) {
	out := jsonSummary{
		GeneratedAt: summary.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		DataDir:     summary.DataDir,
	}
	if s := summary.Stats; s != nil {
		out.TotalJobs = s.TotalJobs
		out.Scraped = s.Scraped
		out.Unscraped = s.Unscraped
		out.BySource = s.BySource
		if len(s.ByOutcome) > 0 {
			out.ByOutcome = make(map[string]int, len(s.ByOutcome))
			for outcome, n := range s.ByOutcome {
				out.ByOutcome[string(outcome)] = n
			}
		}
	}

	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(out, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
