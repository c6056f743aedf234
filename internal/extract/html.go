package extract

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// assetSelectors lists the elements checked in addition to anchors when
// assets are enabled, with the attribute holding the URL.
var assetSelectors = []struct {
	selector string
	attr     string
}{
	{"img[src]", "src"},
	{"script[src]", "src"},
	{"link[href]", "href"},
	{"source[src]", "src"},
	{"iframe[src]", "src"},
}

// HTML extracts links from HTML documents.
type HTML struct {
	assets bool
	logger *slog.Logger
}

// HTMLOption configures an HTML extractor.
type HTMLOption func(*HTML)

// WithAssets also extracts images, scripts, stylesheets, media sources and iframes.
func WithAssets() HTMLOption {
	return func(h *HTML) {
		h.assets = true
	}
}

// WithHTMLLogger sets the logger used to report unparsable documents.
func WithHTMLLogger(logger *slog.Logger) HTMLOption {
	return func(h *HTML) {
		h.logger = logger
	}
}

// NewHTML creates an HTML extractor.
func NewHTML(opts ...HTMLOption) *HTML {
	h := &HTML{logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Extract returns the absolute http(s) links of content in document order.
// Relative links are resolved against baseURL, or against the document's
// <base href> when present. Duplicates are kept.
func (h *HTML) Extract(content, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		h.logger.Debug("invalid base URL", slog.String("url", baseURL), slog.String("error", err.Error()))
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		h.logger.Debug("failed to parse HTML", slog.String("url", baseURL), slog.String("error", err.Error()))
		return nil
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(b)
		}
	}

	links := make([]string, 0)
	collect := func(selector, attr string) {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			value, ok := s.Attr(attr)
			if !ok {
				return
			}
			if link, ok := Resolve(base, value); ok {
				links = append(links, link)
			}
		})
	}

	collect("a[href]", "href")
	if h.assets {
		for _, a := range assetSelectors {
			collect(a.selector, a.attr)
		}
	}

	return links
}
