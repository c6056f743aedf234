package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/linkguardian/internal/extract"
	"github.com/nao1215/linkguardian/internal/model"
)

// Defaults for a Spider.
const (
	DefaultMaxDepth    = 1
	DefaultDelay       = 100 * time.Millisecond
	DefaultUserAgent   = "linkguardian/1.0 (+https://github.com/nao1215/linkguardian)"
	DefaultMaxBodySize = int64(model.MaxContentSize)
)

// Extractor finds the links of a page. Returned links are absolute.
type Extractor interface {
	Extract(content, baseURL string) []string
}

// Observer is notified about crawl progress, typically by a metrics recorder.
type Observer interface {
	PageFetched(depth int)
	PageFailed()
}

// Spider crawls one website breadth first.
//
// A Spider holds configuration only; each Crawl call owns its own queue and
// visited set, so a Spider can be reused and is safe for sequential use.
type Spider struct {
	// fetcher downloads pages.
	fetcher Fetcher

	// extractor finds links in downloaded pages.
	extractor Extractor

	// maxDepth is the deepest level that is fetched; the start page is level 1.
	maxDepth int

	// maxPages limits the number of pages returned. Zero means no limit.
	maxPages int

	// delay is waited after each successful fetch when more work is queued.
	delay time.Duration

	// ignorePatterns are URL path globs that are never crawled.
	ignorePatterns []string

	// followPatterns, when set, restrict crawling to matching URL paths.
	followPatterns []string

	logger   *slog.Logger
	observer Observer
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth. 1 fetches only the start page.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to fetch. Zero means no limit.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets the politeness delay between fetches.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled. The start
// URL is always fetched.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithFetcher replaces the page fetcher.
func WithFetcher(f Fetcher) SpiderOption {
	return func(s *Spider) {
		s.fetcher = f
	}
}

// WithExtractor replaces the default HTML link extractor.
func WithExtractor(e Extractor) SpiderOption {
	return func(s *Spider) {
		s.extractor = e
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithObserver registers a crawl observer.
func WithObserver(o Observer) SpiderOption {
	return func(s *Spider) {
		s.observer = o
	}
}

// NewSpider creates a Spider that fetches pages with client.
// The client carries the transport settings (proxy, timeout, headers).
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:   NewHTTPFetcher(client, DefaultUserAgent, DefaultMaxBodySize),
		extractor: extract.NewHTML(),
		maxDepth:  DefaultMaxDepth,
		delay:     DefaultDelay,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// queueItem is a URL waiting to be fetched.
type queueItem struct {
	url   string
	depth int
}

// Crawl fetches the start URL and, breadth first, every same-host page
// reachable from it within maxDepth. Pages are returned in fetch order.
//
// Pages that fail to load are logged and skipped. If ctx is cancelled the
// pages fetched so far are returned together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, startURL string) ([]*model.Page, error) {
	start, err := parseStartURL(startURL)
	if err != nil {
		return nil, err
	}
	baseDomain := start.Hostname()

	pages := make([]*model.Page, 0)
	visited := make(map[string]bool)
	queue := []queueItem{{url: start.String(), depth: 1}}

	for len(queue) > 0 {
		if s.maxPages > 0 && len(pages) >= s.maxPages {
			break
		}

		select {
		case <-ctx.Done():
			return pages, ctx.Err()
		default:
		}

		item := queue[0]
		queue = queue[1:]

		if visited[item.url] {
			continue
		}
		visited[item.url] = true

		s.logger.Info("crawling", slog.Int("depth", item.depth), slog.String("url", item.url))

		result, err := s.fetcher.Fetch(ctx, item.url)
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			s.logger.Warn("failed to fetch page", slog.String("url", item.url), slog.String("error", err.Error()))
			if s.observer != nil {
				s.observer.PageFailed()
			}
			continue
		}

		page := &model.Page{
			URL:         item.url,
			Depth:       item.depth,
			StatusCode:  result.StatusCode,
			ContentType: result.ContentType,
			Content:     result.Content,
		}
		page.TruncateContent()
		page.ComputeHash()
		pages = append(pages, page)
		if s.observer != nil {
			s.observer.PageFetched(item.depth)
		}

		if item.depth < s.maxDepth && s.extractor != nil {
			for _, link := range s.extractor.Extract(page.Content, page.URL) {
				link = normalizeURL(link)
				if visited[link] || !isSameDomain(baseDomain, link) || !s.shouldCrawl(link) {
					continue
				}
				queue = append(queue, queueItem{url: link, depth: item.depth + 1})
			}
		}

		if s.delay > 0 && len(queue) > 0 {
			select {
			case <-ctx.Done():
				return pages, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}

	return pages, nil
}

// parseStartURL validates the start URL and normalizes its host to lower case.
func parseStartURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidStartURL, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s: scheme must be http or https", ErrInvalidStartURL, raw)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %s: missing host", ErrInvalidStartURL, raw)
	}
	return normalize(u), nil
}

// Hostname returns the lower-cased host name of a start URL, the domain a
// crawl of that URL stays on.
func Hostname(startURL string) (string, error) {
	u, err := parseStartURL(startURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

// normalizeURL normalizes a URL for the visited set: the fragment is
// dropped, scheme and host are lower-cased and an empty path becomes "/".
// Unparsable input is returned unchanged.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return normalize(u).String()
}

func normalize(u *url.URL) *url.URL {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u
}

// isSameDomain reports whether link is an http(s) URL whose host name is
// exactly baseDomain. Subdomains do not match; the port is ignored.
func isSameDomain(baseDomain, link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Hostname(), baseDomain)
}

// shouldCrawl applies the ignore and follow patterns to the URL path.
// Ignore patterns win over follow patterns.
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
//
// Examples:
//   - "/admin/*" matches "/admin", "/admin/dashboard" and "/admin/users/edit"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, "*?/") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Patterns without a slash also match the last path element.
	if !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
