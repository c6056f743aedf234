package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/net/html/charset"
)

// FetchResult is a successfully downloaded page.
type FetchResult struct {
	// StatusCode is the HTTP status code (always 2xx).
	StatusCode int

	// ContentType is the Content-Type header.
	ContentType string

	// Content is the body decoded to UTF-8.
	Content string
}

// Fetcher downloads a page. A non-2xx answer is an error.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*FetchResult, error)
}

// HTTPFetcher fetches pages with a GET request.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// NewHTTPFetcher creates a fetcher using client.
func NewHTTPFetcher(client *http.Client, userAgent string, maxBodySize int64) *HTTPFetcher {
	return &HTTPFetcher{
		client:      client,
		userAgent:   userAgent,
		maxBodySize: maxBodySize,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := readDecoded(io.LimitReader(resp.Body, f.maxBodySize), contentType)
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}

	return &FetchResult{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Content:     body,
	}, nil
}

// readDecoded reads r and converts it to UTF-8 using the charset declared in
// contentType or sniffed from the first bytes of the body.
func readDecoded(r io.Reader, contentType string) (string, error) {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		// The preview bytes are already consumed, so r cannot be re-read.
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	body, err := io.ReadAll(decoded)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(body), nil
}
