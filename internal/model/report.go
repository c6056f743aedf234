package model

import (
	"time"

	"github.com/google/uuid"
)

// ScanMode identifies how links were discovered.
type ScanMode string

const (
	// ModeSite crawls a website and checks every link found on its pages.
	ModeSite ScanMode = "site"
	// ModeGitHub fetches a repository README and checks its links.
	ModeGitHub ScanMode = "github"
)

// ScanReport is the result of checking one target.
//
// A report is filled step by step by the pipeline: the source step adds
// pages or documents, the extract step adds the discovered links and the
// verify step adds the results.
type ScanReport struct {
	// ID uniquely identifies the scan. It is the primary key in the history.
	ID string `json:"id"`

	// Target is the start URL or repository URL given by the user.
	Target string `json:"target"`

	// Mode tells whether Target was crawled or treated as a repository.
	Mode ScanMode `json:"mode"`

	// DateScanned is when the scan started.
	DateScanned time.Time `json:"date_scanned"`

	// Duration is the wall time of the whole scan.
	Duration time.Duration `json:"duration"`

	// Pages are the crawled pages (site mode).
	Pages []*Page `json:"pages,omitempty"`

	// Documents are the fetched repository files (github mode).
	Documents []*Document `json:"documents,omitempty"`

	// LinksFound is the number of links extracted before deduplication.
	LinksFound int `json:"links_found"`

	// Links are the unique links that were submitted for verification.
	Links []string `json:"-"`

	// Skipped lists links excluded from verification by configuration.
	Skipped []string `json:"skipped,omitempty"`

	// Results holds one entry per verified link.
	Results []LinkCheckResult `json:"results"`

	// Summary counts the results by status.
	Summary Summary `json:"summary"`

	// PerformedSteps records which pipeline steps ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error records a fatal error that stopped the scan early.
	Error string `json:"error,omitempty"`

	// TimedOut is true if the scan was cut short by a deadline.
	TimedOut bool `json:"timed_out,omitempty"`
}

// NewScanReport creates a report for target with a fresh ID and timestamp.
func NewScanReport(target string, mode ScanMode) *ScanReport {
	return &ScanReport{
		ID:          uuid.NewString(),
		Target:      target,
		Mode:        mode,
		DateScanned: time.Now(),
		Results:     make([]LinkCheckResult, 0),
	}
}

// AddPage appends a crawled page.
func (r *ScanReport) AddPage(page *Page) {
	r.Pages = append(r.Pages, page)
}

// AddDocument appends a fetched document.
func (r *ScanReport) AddDocument(doc *Document) {
	r.Documents = append(r.Documents, doc)
}

// SetResults stores the verification results sorted by URL and refreshes
// the summary.
func (r *ScanReport) SetResults(results []LinkCheckResult) {
	sorted := make([]LinkCheckResult, len(results))
	copy(sorted, results)
	SortResults(sorted)
	r.Results = sorted
	r.Summary = Summarize(sorted)
}

// HasBroken reports whether any verified link is not OK.
func (r *ScanReport) HasBroken() bool {
	return r.Summary.HasBroken()
}

// Summary aggregates results by status.
type Summary struct {
	// Total is the number of results.
	Total int `json:"total"`

	// OK counts working links, including redirects.
	OK int `json:"ok"`

	// Broken counts every result that is not OK.
	Broken int `json:"broken"`

	// ByStatus counts results per status kind.
	ByStatus map[StatusKind]int `json:"by_status"`
}

// Summarize counts results by status.
func Summarize(results []LinkCheckResult) Summary {
	s := Summary{ByStatus: make(map[StatusKind]int)}
	for _, r := range results {
		s.Total++
		s.ByStatus[r.Status.Kind]++
		if r.IsOK() {
			s.OK++
		} else {
			s.Broken++
		}
	}
	return s
}

// HasBroken reports whether any result is not OK.
func (s Summary) HasBroken() bool {
	return s.Broken > 0
}

// Count returns the number of results with the given kind.
func (s Summary) Count(kind StatusKind) int {
	return s.ByStatus[kind]
}
