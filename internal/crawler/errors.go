package crawler

import (
	"errors"
	"fmt"
)

// ErrInvalidStartURL is returned when the start URL is not an absolute
// http(s) URL with a host. Nothing is fetched in that case.
var ErrInvalidStartURL = errors.New("invalid start URL")

// FetchError describes a page that could not be fetched.
type FetchError struct {
	// URL is the page URL.
	URL string

	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int

	// Err is the underlying transport error, nil for HTTP status failures.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}
