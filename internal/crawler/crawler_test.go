package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/linkguardian/internal/extract"
)

// fakeFetcher serves pages from a map and records every fetch.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) (*FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetched = append(f.fetched, pageURL)
	content, ok := f.pages[pageURL]
	if !ok {
		return nil, &FetchError{URL: pageURL, StatusCode: http.StatusNotFound}
	}
	return &FetchResult{StatusCode: http.StatusOK, ContentType: "text/html", Content: content}, nil
}

func (f *fakeFetcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.fetched)
}

func newFakeSpider(f *fakeFetcher, opts ...SpiderOption) *Spider {
	base := []SpiderOption{WithFetcher(f), WithExtractor(extract.NewHTML()), WithDelay(0)}
	return NewSpider(http.DefaultClient, append(base, opts...)...)
}

func pageURLs(t *testing.T, s *Spider, start string) []string {
	t.Helper()

	pages, err := s.Crawl(context.Background(), start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	urls := make([]string, 0, len(pages))
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	return urls
}

func TestCrawlInvalidStartURL(t *testing.T) {
	t.Parallel()

	for _, start := range []string{"", "not a url", "ftp://example.com/", "http://", "mailto:a@example.com", "http://[::1"} {
		t.Run(start, func(t *testing.T) {
			t.Parallel()

			f := &fakeFetcher{}
			_, err := newFakeSpider(f).Crawl(context.Background(), start)
			if !errors.Is(err, ErrInvalidStartURL) {
				t.Errorf("Crawl(%q) error = %v, want ErrInvalidStartURL", start, err)
			}
			if len(f.calls()) != 0 {
				t.Errorf("expected no fetches, got %v", f.calls())
			}
		})
	}
}

func TestCrawlDepth(t *testing.T) {
	t.Parallel()

	site := map[string]string{
		"https://example.com/":       `<a href="/page">p</a><a href="/docs">d</a><a href="https://other.com/">o</a>`,
		"https://example.com/page":   `<a href="/deep">deep</a>`,
		"https://example.com/docs":   `<a href="/">home</a>`,
		"https://example.com/deep":   `nothing here`,
		"https://other.com/":         `<a href="https://example.com/secret">s</a>`,
		"https://example.com/secret": `secret`,
	}

	t.Run("depth 1 fetches only the start page", func(t *testing.T) {
		t.Parallel()

		f := &fakeFetcher{pages: site}
		got := pageURLs(t, newFakeSpider(f, WithMaxDepth(1)), "https://example.com/")
		if !slices.Equal(got, []string{"https://example.com/"}) {
			t.Errorf("unexpected pages %v", got)
		}
		if len(f.calls()) != 1 {
			t.Errorf("expected exactly one fetch, got %v", f.calls())
		}
	})

	t.Run("depth 2 follows same-domain links breadth first", func(t *testing.T) {
		t.Parallel()

		f := &fakeFetcher{pages: site}
		got := pageURLs(t, newFakeSpider(f, WithMaxDepth(2)), "https://example.com/")
		want := []string{"https://example.com/", "https://example.com/page", "https://example.com/docs"}
		if !slices.Equal(got, want) {
			t.Errorf("pages = %v, want %v", got, want)
		}
		if slices.Contains(f.calls(), "https://other.com/") {
			t.Error("cross-domain page must never be fetched")
		}
	})

	t.Run("depth 3 reaches the third level", func(t *testing.T) {
		t.Parallel()

		f := &fakeFetcher{pages: site}
		got := pageURLs(t, newFakeSpider(f, WithMaxDepth(3)), "https://example.com")
		if !slices.Contains(got, "https://example.com/deep") {
			t.Errorf("expected /deep in %v", got)
		}
		if len(got) != 4 {
			t.Errorf("expected 4 pages, got %v", got)
		}
	})
}

func TestCrawlPageDepthAndOrder(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://example.com/":  `<a href="/a">a</a><a href="/b">b</a>`,
		"https://example.com/a": `<a href="/c">c</a>`,
		"https://example.com/b": ``,
		"https://example.com/c": ``,
	}}

	pages, err := newFakeSpider(f, WithMaxDepth(5)).Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := 0
	for _, p := range pages {
		if p.Depth < last {
			t.Errorf("depth decreased at %s: %d after %d", p.URL, p.Depth, last)
		}
		last = p.Depth
		if p.Hash == "" {
			t.Errorf("expected hash for %s", p.URL)
		}
	}
	if pages[0].Depth != 1 {
		t.Errorf("start page depth = %d, want 1", pages[0].Depth)
	}
	if pages[len(pages)-1].URL != "https://example.com/c" || pages[len(pages)-1].Depth != 3 {
		t.Errorf("unexpected last page %s at depth %d", pages[len(pages)-1].URL, pages[len(pages)-1].Depth)
	}
}

func TestCrawlSameDomainOnly(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://example.com/": `
			<a href="https://sub.example.com/">sub</a>
			<a href="http://example.com/plain">plain http</a>
			<a href="https://example.com:8443/port">other port</a>
			<a href="https://example.org/">other tld</a>
			<a href="mailto:x@example.com">mail</a>
			<a href="#frag">frag</a>`,
		"http://example.com/plain":      ``,
		"https://example.com:8443/port": ``,
	}}

	got := pageURLs(t, newFakeSpider(f, WithMaxDepth(2)), "https://example.com/")
	want := []string{"https://example.com/", "http://example.com/plain", "https://example.com:8443/port"}
	if !slices.Equal(got, want) {
		t.Errorf("pages = %v, want %v", got, want)
	}
	for _, u := range f.calls() {
		if u == "https://sub.example.com/" || u == "https://example.org/" {
			t.Errorf("fetched foreign URL %s", u)
		}
	}
}

func TestCrawlSkipsFailures(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://example.com/":   `<a href="/missing">m</a><a href="/ok">ok</a>`,
		"https://example.com/ok": `fine`,
	}}

	got := pageURLs(t, newFakeSpider(f, WithMaxDepth(2)), "https://example.com/")
	want := []string{"https://example.com/", "https://example.com/ok"}
	if !slices.Equal(got, want) {
		t.Errorf("pages = %v, want %v", got, want)
	}
}

func TestCrawlStartPageFailure(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	pages, err := newFakeSpider(f).Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("a failed start page is not an error: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("expected no pages, got %d", len(pages))
	}
}

func TestCrawlVisitsEachURLOnce(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://example.com/":  `<a href="/">self</a><a href="/a">a</a><a href="/a#x">a again</a><a href="https://EXAMPLE.com/a">a upper</a>`,
		"https://example.com/a": `<a href="/">back</a><a href="/a">self</a>`,
	}}

	newFakeSpider(f, WithMaxDepth(4)).Crawl(context.Background(), "https://example.com") //nolint:errcheck // counted below

	counts := make(map[string]int)
	for _, u := range f.calls() {
		counts[u]++
	}
	for u, n := range counts {
		if n != 1 {
			t.Errorf("%s fetched %d times", u, n)
		}
	}
	if len(counts) != 2 {
		t.Errorf("expected 2 distinct fetches, got %v", counts)
	}
}

func TestCrawlMaxPages(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://example.com/":  `<a href="/1">1</a><a href="/2">2</a><a href="/3">3</a>`,
		"https://example.com/1": ``,
		"https://example.com/2": ``,
		"https://example.com/3": ``,
	}}

	got := pageURLs(t, newFakeSpider(f, WithMaxDepth(2), WithMaxPages(2)), "https://example.com/")
	if len(got) != 2 {
		t.Errorf("expected 2 pages, got %v", got)
	}
}

func TestCrawlPoliteness(t *testing.T) {
	t.Parallel()

	t.Run("waits between fetches", func(t *testing.T) {
		t.Parallel()

		f := &fakeFetcher{pages: map[string]string{
			"https://example.com/":  `<a href="/a">a</a><a href="/b">b</a>`,
			"https://example.com/a": ``,
			"https://example.com/b": ``,
		}}

		start := time.Now()
		got := pageURLs(t, newFakeSpider(f, WithMaxDepth(2), WithDelay(50*time.Millisecond)), "https://example.com/")
		if len(got) != 3 {
			t.Fatalf("expected 3 pages, got %v", got)
		}
		// Two waits: after "/" and after "/a". None after the last page.
		if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
			t.Errorf("crawl finished in %v, expected at least 100ms of delay", elapsed)
		}
	})

	t.Run("cancellation interrupts the delay", func(t *testing.T) {
		t.Parallel()

		f := &fakeFetcher{pages: map[string]string{
			"https://example.com/":  `<a href="/a">a</a>`,
			"https://example.com/a": ``,
		}}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		pages, err := newFakeSpider(f, WithMaxDepth(2), WithDelay(10*time.Second)).Crawl(ctx, "https://example.com/")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if len(pages) != 1 {
			t.Errorf("expected the start page to be returned, got %d pages", len(pages))
		}
		if time.Since(start) > 5*time.Second {
			t.Error("crawler did not stop waiting on cancellation")
		}
	})
}

func TestCrawlPatterns(t *testing.T) {
	t.Parallel()

	site := map[string]string{
		"https://example.com/":            `<a href="/admin/panel">a</a><a href="/blog/post">b</a><a href="/file.pdf">f</a>`,
		"https://example.com/admin/panel": ``,
		"https://example.com/blog/post":   ``,
		"https://example.com/file.pdf":    ``,
	}

	t.Run("ignore patterns", func(t *testing.T) {
		t.Parallel()

		f := &fakeFetcher{pages: site}
		got := pageURLs(t, newFakeSpider(f, WithMaxDepth(2), WithIgnorePatterns([]string{"/admin/*", "*.pdf"})), "https://example.com/")
		want := []string{"https://example.com/", "https://example.com/blog/post"}
		if !slices.Equal(got, want) {
			t.Errorf("pages = %v, want %v", got, want)
		}
	})

	t.Run("follow patterns", func(t *testing.T) {
		t.Parallel()

		f := &fakeFetcher{pages: site}
		got := pageURLs(t, newFakeSpider(f, WithMaxDepth(2), WithFollowPatterns([]string{"/blog/*"})), "https://example.com/")
		want := []string{"https://example.com/", "https://example.com/blog/post"}
		if !slices.Equal(got, want) {
			t.Errorf("pages = %v, want %v", got, want)
		}
	})
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"admin prefix match", "/admin/*", "/admin/dashboard", true},
		{"admin prefix exact", "/admin/*", "/admin", true},
		{"admin prefix nested", "/admin/*", "/admin/users/edit", true},
		{"admin prefix partial no match", "/admin/*", "/administrator", false},
		{"pdf extension", "*.pdf", "/docs/file.pdf", true},
		{"pdf extension no match", "*.pdf", "/docs/file.txt", false},
		{"exact match", "/logout", "/logout", true},
		{"exact no match", "/logout", "/login", false},
		{"single char wildcard", "/api/v?/users", "/api/v1/users", true},
		{"single char wildcard no match", "/api/v?/users", "/api/v10/users", false},
		{"filename glob", "draft-*", "/posts/draft-1", true},
		{"root path", "/", "/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"https://Example.COM", "https://example.com/"},
		{"https://example.com/a#frag", "https://example.com/a"},
		{"HTTP://example.com/A", "http://example.com/A"},
		{"::bad", "::bad"},
	}
	for _, tt := range tests {
		if got := normalizeURL(tt.in); got != tt.want {
			t.Errorf("normalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHostname(t *testing.T) {
	t.Parallel()

	host, err := Hostname("https://Docs.Example.com:8443/guide")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "docs.example.com" {
		t.Errorf("expected docs.example.com, got %q", host)
	}

	if _, err := Hostname("ftp://example.com"); !errors.Is(err, ErrInvalidStartURL) {
		t.Errorf("expected ErrInvalidStartURL, got %v", err)
	}
}

type countingObserver struct {
	fetched, failed atomic.Int64
}

func (o *countingObserver) PageFetched(int) { o.fetched.Add(1) }
func (o *countingObserver) PageFailed()     { o.failed.Add(1) }

func TestSpiderWithHTTPServer(t *testing.T) {
	t.Parallel()

	var otherHits atomic.Int64
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		otherHits.Add(1)
	}))
	defer other.Close()
	otherURL, err := url.Parse(other.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	foreign := "http://localhost:" + otherURL.Port() + "/"

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/page">p</a><a href="/docs">d</a><a href="/broken">b</a><a href="` + foreign + `">o</a>`)) //nolint:errcheck
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<p>caf\xe9</p>")) //nolint:errcheck
	})
	mux.HandleFunc("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`docs`)) //nolint:errcheck
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	obs := &countingObserver{}
	spider := NewSpider(server.Client(),
		WithExtractor(extract.NewHTML()),
		WithMaxDepth(2),
		WithDelay(0),
		WithObserver(obs),
	)

	pages, err := spider.Crawl(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	if pages[1].Content != "<p>café</p>" {
		t.Errorf("expected decoded content, got %q", pages[1].Content)
	}
	if otherHits.Load() != 0 {
		t.Error("page on another host must not be fetched")
	}
	if obs.fetched.Load() != 3 || obs.failed.Load() != 1 {
		t.Errorf("observer saw fetched=%d failed=%d", obs.fetched.Load(), obs.failed.Load())
	}
}

func TestFetchError(t *testing.T) {
	t.Parallel()

	inner := errors.New("refused")
	err := &FetchError{URL: "https://example.com/", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("FetchError must unwrap to the transport error")
	}
	if got := (&FetchError{URL: "https://example.com/", StatusCode: 503}).Error(); got != "fetch https://example.com/: HTTP 503" {
		t.Errorf("unexpected message %q", got)
	}
}

// failingReader returns data and then err.
type failingReader struct {
	data string
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestReadDecoded(t *testing.T) {
	t.Parallel()

	t.Run("decodes latin-1", func(t *testing.T) {
		t.Parallel()

		body, err := readDecoded(strings.NewReader("caf\xe9"), "text/html; charset=iso-8859-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != "café" {
			t.Errorf("body = %q, want %q", body, "café")
		}
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()

		body, err := readDecoded(strings.NewReader(""), "text/html")
		if err != nil || body != "" {
			t.Errorf("got (%q, %v), want empty body and no error", body, err)
		}
	})

	t.Run("read error is not swallowed", func(t *testing.T) {
		t.Parallel()

		errReset := errors.New("connection reset")
		r := &failingReader{data: "<html><body>partial", err: errReset}
		body, err := readDecoded(r, "text/html; charset=utf-8")
		if !errors.Is(err, errReset) {
			t.Fatalf("expected read error, got %v (body %q)", err, body)
		}
		if body != "" {
			t.Errorf("expected no partial body, got %q", body)
		}
	})

	t.Run("read error after preview", func(t *testing.T) {
		t.Parallel()

		errReset := errors.New("connection reset")
		r := &failingReader{data: strings.Repeat("a", 4096), err: errReset}
		if _, err := readDecoded(r, "text/plain; charset=utf-8"); !errors.Is(err, errReset) {
			t.Errorf("expected read error, got %v", err)
		}
	})
}
