package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/nao1215/linkguardian/internal/model"
)

// Writer renders scan reports to an output.
type Writer interface {
	// Write renders one report. It returns the number of bytes written.
	Write(report *model.ScanReport) (int, error)

	// WriteAll renders the reports of several targets as one document.
	WriteAll(reports []*model.ScanReport) (int, error)
}

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// Options are the settings shared by NewWriter.
type Options struct {
	// Version is embedded in JSON output and the Markdown footer.
	Version string
	// ShowAll lists every result in text and Markdown output, not only
	// the broken ones.
	ShowAll bool
}

// NewWriter returns the Writer for format.
func NewWriter(format Format, output io.Writer, opts Options) (Writer, error) {
	switch format {
	case FormatText, "":
		return NewSimpleWriter(output, WithShowAll(opts.ShowAll)), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(opts.Version)), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output, WithMarkdownVersion(opts.Version), WithMarkdownShowAll(opts.ShowAll)), nil
	case FormatCSV:
		return NewCSVWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// MultiWriter writes to several Writers, for example the terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all writers in order.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders report with every writer and stops at the first error.
func (m *MultiWriter) Write(report *model.ScanReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteAll renders reports with every writer and stops at the first error.
func (m *MultiWriter) WriteAll(reports []*model.ScanReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteAll(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter renders into a buffer and flushes it in one write, so a
// failing renderer never leaves half a report on the output.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

func (b baseWriter) flush(buf *bytes.Buffer) (int, error) {
	return b.output.Write(buf.Bytes())
}

// truncateString shortens s to maxLen bytes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// rowsToShow returns every result when all is set, otherwise only the
// results that are not OK.
func rowsToShow(report *model.ScanReport, all bool) []model.LinkCheckResult {
	if all {
		return report.Results
	}
	return model.BrokenResults(report.Results)
}
