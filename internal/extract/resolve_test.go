package extract

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base := mustParse(t, "https://example.com/docs/guide/")

	tests := []struct {
		name   string
		href   string
		want   string
		wantOK bool
	}{
		{"absolute", "https://other.com/x", "https://other.com/x", true},
		{"root relative", "/about", "https://example.com/about", true},
		{"path relative", "install", "https://example.com/docs/guide/install", true},
		{"parent relative", "../api", "https://example.com/docs/api", true},
		{"protocol relative", "//cdn.example.net/app.js", "https://cdn.example.net/app.js", true},
		{"fragment dropped", "/faq#top", "https://example.com/faq", true},
		{"host lower-cased", "https://EXAMPLE.com/A", "https://example.com/A", true},
		{"surrounding whitespace", "  /trim  ", "https://example.com/trim", true},
		{"fragment only", "#section", "", false},
		{"mailto", "mailto:admin@example.com", "", false},
		{"tel", "tel:+123456", "", false},
		{"javascript", "javascript:void(0)", "", false},
		{"javascript uppercase", "JavaScript:alert(1)", "", false},
		{"data uri", "data:text/plain,hi", "", false},
		{"ftp scheme", "ftp://example.com/file", "", false},
		{"empty", "", "", false},
		{"unparsable", "http://[::1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := Resolve(base, tt.href)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.href, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	t.Parallel()

	base := mustParse(t, "https://example.com/a/b/")
	hrefs := []string{"c", "../d?x=1", "/e#frag", "https://Other.com/f", "//x.org/y/./z"}

	for _, href := range hrefs {
		first, ok := Resolve(base, href)
		if !ok {
			t.Fatalf("Resolve(%q) unexpectedly rejected", href)
		}
		second, ok := Resolve(base, first)
		if !ok || second != first {
			t.Errorf("Resolve is not idempotent for %q: %q then %q", href, first, second)
		}
	}
}
