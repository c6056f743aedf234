package report

import (
	"bytes"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/linkguardian/internal/model"
)

// MarkdownWriter renders reports as a Markdown document, for example to
// post as a pull request comment.
type MarkdownWriter struct {
	baseWriter

	version string
	showAll bool
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownVersion sets the version shown in the footer.
func WithMarkdownVersion(version string) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.version = version
	}
}

// WithMarkdownShowAll lists every result instead of only the broken ones.
func WithMarkdownShowAll(show bool) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.showAll = show
	}
}

// NewMarkdownWriter creates a MarkdownWriter writing to output.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders one report.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	return w.WriteAll([]*model.ScanReport{report})
}

// WriteAll renders every report as a section of one document.
func (w *MarkdownWriter) WriteAll(reports []*model.ScanReport) (int, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H1("Link Check Report")
	md.PlainText("")
	for _, report := range reports {
		if report == nil {
			continue
		}
		w.writeReport(md, report)
	}
	w.writeFooter(md)

	if err := md.Build(); err != nil {
		return 0, err
	}
	return w.flush(&buf)
}

func (w *MarkdownWriter) writeReport(md *markdown.Markdown, report *model.ScanReport) {
	md.H2(report.Target)
	md.PlainText("")

	sourceLabel, sourceCount := "Pages Crawled", len(report.Pages)
	if report.Mode == model.ModeGitHub {
		sourceLabel, sourceCount = "Files Fetched", len(report.Documents)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Mode", string(report.Mode)},
			{"Scan Date", report.DateScanned.Format("2006-01-02 15:04:05 MST")},
			{sourceLabel, strconv.Itoa(sourceCount)},
			{"Links Found", strconv.Itoa(report.LinksFound)},
			{"Links Checked", strconv.Itoa(report.Summary.Total)},
			{"Links Skipped", strconv.Itoa(len(report.Skipped))},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")

	w.writeSummary(md, report.Summary)
	w.writeResults(md, report)
}

func statusText(report *model.ScanReport) string {
	if report.TimedOut {
		return "⚠️ Interrupted (partial results)"
	}
	if report.Error != "" {
		return "❌ Error - " + report.Error
	}
	return "✅ Complete"
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s model.Summary) {
	md.H3("Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(model.AllStatusKinds)+1)
	for _, kind := range model.AllStatusKinds {
		if n := s.Count(kind); n > 0 {
			rows = append(rows, []string{kind.Label(), strconv.Itoa(n)})
		}
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(s.Total) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Total > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Link Status Distribution"),
			piechart.WithShowData(true),
		)
		for _, kind := range model.AllStatusKinds {
			if n := s.Count(kind); n > 0 {
				chart.LabelAndIntValue(kind.Label(), uint64(n)) //nolint:gosec // counts are never negative
			}
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case s.Broken > 0:
		md.Cautionf("%d of %d link(s) are broken.", s.Broken, s.Total)
	case s.Total == 0:
		md.Note("No links were found.")
	default:
		md.Tip("All links are working.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, report *model.ScanReport) {
	rows := rowsToShow(report, w.showAll)
	if len(rows) == 0 {
		return
	}

	title := "Broken Links"
	if w.showAll {
		title = "Results"
	}
	md.H3(title)
	md.PlainText("")

	tableRows := make([][]string, len(rows))
	for i, r := range rows {
		message := r.Message
		if message == "" {
			message = "-"
		}
		tableRows[i] = []string{r.URL, r.Status.String(), message}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Message"},
		Rows:   tableRows,
	})
	md.PlainText("")

	if len(report.Skipped) > 0 {
		md.Details("Skipped links", joinLines(report.Skipped))
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	name := "linkguardian"
	if w.version != "" {
		name += " " + w.version
	}
	md.PlainTextf("*Report generated by [%s](https://github.com/nao1215/linkguardian)*", name)
}

func joinLines(lines []string) string {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString("- " + l + "\n")
	}
	return buf.String()
}
