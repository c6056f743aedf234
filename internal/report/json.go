package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/linkguardian/internal/model"
)

// JSONWriter renders reports as JSON.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
	version      string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion sets the version recorded by WriteAll.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter writing compact JSON to output.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders a single report object.
func (w *JSONWriter) Write(report *model.ScanReport) (int, error) {
	return w.writeJSON(report)
}

// WriteAll renders a JSONReport holding every report.
func (w *JSONWriter) WriteAll(reports []*model.ScanReport) (int, error) {
	return w.writeJSON(NewJSONReport(reports, w.version))
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	buf := bytes.NewBuffer(data)
	buf.WriteByte('\n')
	return w.flush(buf)
}

// JSONReport is the document written by JSONWriter.WriteAll.
type JSONReport struct {
	// Version is the linkguardian version that produced the document.
	Version string `json:"version,omitempty"`

	// Summary aggregates the results of every report.
	Summary model.Summary `json:"summary"`

	// Reports holds one report per target, in command line order.
	Reports []*model.ScanReport `json:"reports"`
}

// NewJSONReport wraps reports. Nil reports (targets never started) are dropped.
func NewJSONReport(reports []*model.ScanReport, version string) *JSONReport {
	kept := make([]*model.ScanReport, 0, len(reports))
	var all []model.LinkCheckResult
	for _, r := range reports {
		if r == nil {
			continue
		}
		kept = append(kept, r)
		all = append(all, r.Results...)
	}
	return &JSONReport{
		Version: version,
		Summary: model.Summarize(all),
		Reports: kept,
	}
}
