package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rodaine/table"

	"github.com/nao1215/linkguardian/internal/model"
)

// maxURLWidth keeps the text table readable in a normal terminal.
const maxURLWidth = 80

// SimpleWriter renders human-readable text for the terminal.
type SimpleWriter struct {
	baseWriter

	// showAll lists OK results as well.
	showAll bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowAll lists every result instead of only the broken ones.
func WithShowAll(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showAll = show
	}
}

// NewSimpleWriter creates a SimpleWriter writing to output.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders one report.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var buf bytes.Buffer
	w.writeReport(&buf, report)
	return w.flush(&buf)
}

// WriteAll renders every report followed by a grand total when there is
// more than one.
func (w *SimpleWriter) WriteAll(reports []*model.ScanReport) (int, error) {
	var buf bytes.Buffer
	var ok, broken, total int
	for i, report := range reports {
		if report == nil {
			continue
		}
		if i > 0 {
			buf.WriteString(strings.Repeat("-", 60) + "\n\n")
		}
		w.writeReport(&buf, report)
		ok += report.Summary.OK
		broken += report.Summary.Broken
		total += report.Summary.Total
	}
	if len(reports) > 1 {
		fmt.Fprintf(&buf, "Total: %d target(s), %d OK, %d broken, %d checked\n", len(reports), ok, broken, total)
	}
	return w.flush(&buf)
}

func (w *SimpleWriter) writeReport(buf *bytes.Buffer, report *model.ScanReport) {
	fmt.Fprintf(buf, "Target:  %s (%s)\n", report.Target, report.Mode)
	switch report.Mode {
	case model.ModeGitHub:
		fmt.Fprintf(buf, "Files:   %d fetched\n", len(report.Documents))
	default:
		fmt.Fprintf(buf, "Pages:   %d crawled\n", len(report.Pages))
	}
	fmt.Fprintf(buf, "Links:   %d found, %d checked, %d skipped\n", report.LinksFound, report.Summary.Total, len(report.Skipped))
	fmt.Fprintf(buf, "Time:    %s\n", report.Duration.Round(time.Millisecond))
	if report.TimedOut {
		buf.WriteString("Status:  interrupted, results are partial\n")
	}
	if report.Error != "" {
		fmt.Fprintf(buf, "Error:   %s\n", report.Error)
	}
	buf.WriteString("\n")

	if rows := rowsToShow(report, w.showAll); len(rows) > 0 {
		tbl := table.New("URL", "STATUS", "MESSAGE").WithWriter(buf)
		for _, r := range rows {
			tbl.AddRow(truncateString(r.URL, maxURLWidth), r.Status.String(), r.Message)
		}
		tbl.Print()
		buf.WriteString("\n")
	}

	s := report.Summary
	fmt.Fprintf(buf, "Summary: %d OK, %d broken, %d total\n", s.OK, s.Broken, s.Total)
	if s.Broken > 0 {
		parts := make([]string, 0, len(model.AllStatusKinds))
		for _, kind := range model.AllStatusKinds {
			if kind == model.StatusOK || kind == model.StatusRedirect {
				continue
			}
			if n := s.Count(kind); n > 0 {
				parts = append(parts, fmt.Sprintf("%s: %d", strings.ToLower(kind.Label()), n))
			}
		}
		fmt.Fprintf(buf, "         %s\n", strings.Join(parts, ", "))
	} else if s.Total > 0 {
		buf.WriteString("         all links are working\n")
	}
	buf.WriteString("\n")
}
