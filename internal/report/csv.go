package report

import (
	"bytes"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/nao1215/linkguardian/internal/model"
)

// csvRow is one checked link.
type csvRow struct {
	Source         string `csv:"source"`
	URL            string `csv:"url"`
	Status         string `csv:"status"`
	RedirectTarget string `csv:"redirect_target"`
	Message        string `csv:"message"`
}

// CSVWriter renders one row per checked link.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter writing to output.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write renders the results of one report.
func (w *CSVWriter) Write(report *model.ScanReport) (int, error) {
	return w.WriteAll([]*model.ScanReport{report})
}

// WriteAll renders the results of every report under a single header.
func (w *CSVWriter) WriteAll(reports []*model.ScanReport) (int, error) {
	rows := make([]*csvRow, 0)
	for _, report := range reports {
		if report == nil {
			continue
		}
		for _, r := range report.Results {
			rows = append(rows, &csvRow{
				Source:         report.Target,
				URL:            r.URL,
				Status:         string(r.Status.Kind),
				RedirectTarget: r.Status.Target,
				Message:        r.Message,
			})
		}
	}

	var buf bytes.Buffer
	if err := gocsv.Marshal(&rows, &buf); err != nil {
		return 0, err
	}
	return w.flush(&buf)
}
