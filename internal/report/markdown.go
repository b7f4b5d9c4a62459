package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/jobscan/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeProgress(md, summary)
	w.writeSources(md, summary)
	w.writeOutcomes(md, summary)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *Summary) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Generated", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if summary.DataDir != "" {
		rows = append(rows, []string{"Data Directory", "`" + summary.DataDir + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeProgress writes the scrape progress section.
func (w *MarkdownWriter) writeProgress(md *markdown.Markdown, summary *Summary) {
	stats := summary.Stats

	md.H2("Progress")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Known Listings", strconv.Itoa(stats.TotalJobs)},
			{"Scraped", strconv.Itoa(stats.Scraped)},
			{"Remaining", strconv.Itoa(stats.Unscraped)},
		},
	})
	md.PlainText("")

	if stats.TotalJobs > 0 {
		w.writeProgressChart(md, stats)
	}

	switch {
	case stats.TotalJobs == 0:
		md.Note("No listings discovered yet. Run a search first.")
	case stats.Unscraped == 0:
		md.Tip("All discovered listings have been scraped.")
	default:
		md.Notef("%d listing(s) remain to be scraped.", stats.Unscraped)
	}
	md.PlainText("")
}

// writeProgressChart writes a mermaid pie chart of scraped vs. remaining.
func (w *MarkdownWriter) writeProgressChart(md *markdown.Markdown, stats *model.Stats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Scrape Progress"),
		piechart.WithShowData(true),
	)

	if stats.Scraped > 0 {
		chart.LabelAndIntValue("Scraped", uint64(stats.Scraped))
	}
	if stats.Unscraped > 0 {
		chart.LabelAndIntValue("Remaining", uint64(stats.Unscraped))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeSources writes the discovery source breakdown.
func (w *MarkdownWriter) writeSources(md *markdown.Markdown, summary *Summary) {
	md.H2("Discovery Sources")
	md.PlainText("")

	stats := summary.Stats
	if len(stats.BySource) == 0 {
		md.PlainText("No discoveries recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, 2)
	for _, source := range []model.Source{model.SourceSearch, model.SourceRecommendation} {
		if n, ok := stats.BySource[source]; ok {
			rows = append(rows, []string{string(source), strconv.Itoa(n)})
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Source", "Listings"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeOutcomes writes the completion outcome breakdown.
func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, summary *Summary) {
	md.H2("Completion Outcomes")
	md.PlainText("")

	stats := summary.Stats
	if len(stats.ByOutcome) == 0 {
		md.PlainText("No scrape attempts recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, 2)
	for _, outcome := range []model.Outcome{model.OutcomeSuccess, model.OutcomeFailure} {
		if n, ok := stats.ByOutcome[outcome]; ok {
			rows = append(rows, []string{string(outcome), strconv.Itoa(n)})
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Attempts"},
		Rows:   rows,
	})
	md.PlainText("")

	if failures := stats.ByOutcome[model.OutcomeFailure]; failures > 0 {
		md.Warningf("%d scrape attempt(s) failed. Failed listings stay queued for retry.", failures)
		md.PlainText("")
	}
}
