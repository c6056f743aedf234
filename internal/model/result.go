package model

import (
	"encoding/json"
	"sort"
)

// LinkCheckResult is the outcome of verifying one URL.
// It is produced exactly once per URL handed to the verifier and is never
// modified afterwards.
type LinkCheckResult struct {
	// URL is the probed URL exactly as it was submitted.
	URL string

	// Status is the classified outcome.
	Status LinkStatus

	// Message is a short human-readable explanation such as "HTTP 200"
	// or "Request timed out". It may be empty.
	Message string
}

// NewLinkCheckResult creates a result for url.
func NewLinkCheckResult(url string, status LinkStatus, message string) LinkCheckResult {
	return LinkCheckResult{URL: url, Status: status, Message: message}
}

// IsOK reports whether the link works. Redirects count as working.
func (r LinkCheckResult) IsOK() bool {
	return r.Status.IsOK()
}

// linkCheckResultJSON is the flat wire form of LinkCheckResult.
type linkCheckResultJSON struct {
	URL     string     `json:"url"`
	Status  StatusKind `json:"status"`
	Target  string     `json:"target,omitempty"`
	Message string     `json:"message,omitempty"`
}

// MarshalJSON encodes the result as {"url", "status", "target", "message"}.
func (r LinkCheckResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(linkCheckResultJSON{
		URL:     r.URL,
		Status:  r.Status.Kind,
		Target:  r.Status.Target,
		Message: r.Message,
	})
}

// UnmarshalJSON decodes the flat wire form produced by MarshalJSON.
func (r *LinkCheckResult) UnmarshalJSON(data []byte) error {
	var w linkCheckResultJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var status LinkStatus
	raw, err := json.Marshal(LinkStatus{Kind: w.Status, Target: w.Target})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return err
	}
	*r = LinkCheckResult{URL: w.URL, Status: status, Message: w.Message}
	return nil
}

// SortResults sorts results by URL in place. Results for the same URL keep
// their relative order.
func SortResults(results []LinkCheckResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].URL < results[j].URL
	})
}

// BrokenResults returns the results that are not OK, preserving order.
func BrokenResults(results []LinkCheckResult) []LinkCheckResult {
	var broken []LinkCheckResult
	for _, r := range results {
		if !r.IsOK() {
			broken = append(broken, r)
		}
	}
	return broken
}
