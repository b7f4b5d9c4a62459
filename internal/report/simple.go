package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/jobscan/internal/model"
)

// SimpleWriter outputs human-readable text summaries.
// This format is designed for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose enables the per-source and per-outcome breakdowns.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary as plain text.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var b strings.Builder
	stats := summary.Stats

	fmt.Fprintf(&b, "Crawl status as of %s\n", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if summary.DataDir != "" {
		fmt.Fprintf(&b, "Data directory: %s\n", summary.DataDir)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "  Known listings: %d\n", stats.TotalJobs)
	fmt.Fprintf(&b, "  Scraped:        %d\n", stats.Scraped)
	fmt.Fprintf(&b, "  Remaining:      %d\n", stats.Unscraped)

	if w.verbose {
		if len(stats.BySource) > 0 {
			b.WriteString("\nDiscovery sources:\n")
			for _, source := range []model.Source{model.SourceSearch, model.SourceRecommendation} {
				if n, ok := stats.BySource[source]; ok {
					fmt.Fprintf(&b, "  %-14s %d\n", string(source)+":", n)
				}
			}
		}
		if len(stats.ByOutcome) > 0 {
			b.WriteString("\nCompletion outcomes:\n")
			for _, outcome := range []model.Outcome{model.OutcomeSuccess, model.OutcomeFailure} {
				if n, ok := stats.ByOutcome[outcome]; ok {
					fmt.Fprintf(&b, "  %-14s %d\n", string(outcome)+":", n)
				}
			}
		}
	}

	return io.WriteString(w.output, b.String())
}
