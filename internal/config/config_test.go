package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig pins the defaults. A failure here means a default changed.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Timeout is 10 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 10*time.Second {
			t.Errorf("expected Timeout to be 10s, got %v", cfg.Timeout)
		}
	})

	t.Run("default Concurrency is 50", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 50 {
			t.Errorf("expected Concurrency to be 50, got %d", cfg.Concurrency)
		}
	})

	t.Run("default MaxRedirects is 5", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxRedirects != 5 {
			t.Errorf("expected MaxRedirects to be 5, got %d", cfg.MaxRedirects)
		}
	})

	t.Run("redirects are followed by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.FollowRedirects {
			t.Error("expected FollowRedirects to be true")
		}
	})

	t.Run("default CrawlDepth is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.CrawlDepth != 1 {
			t.Errorf("expected CrawlDepth to be 1, got %d", cfg.CrawlDepth)
		}
	})

	t.Run("default CrawlDelay is 100ms", func(t *testing.T) {
		t.Parallel()
		if cfg.CrawlDelay != 100*time.Millisecond {
			t.Errorf("expected CrawlDelay to be 100ms, got %v", cfg.CrawlDelay)
		}
	})

	t.Run("default BatchSize is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 1 {
			t.Errorf("expected BatchSize to be 1, got %d", cfg.BatchSize)
		}
	})

	t.Run("no proxy by default", func(t *testing.T) {
		t.Parallel()
		if cfg.ProxyAddress != "" || cfg.UseTor {
			t.Errorf("expected direct connections, got proxy=%q tor=%v", cfg.ProxyAddress, cfg.UseTor)
		}
	})

	t.Run("default DBDir is the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"https://example.com"}
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("zero redirects and zero delay are valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MaxRedirects = 0
		cfg.CrawlDelay = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"nil targets", func(c *Config) { c.Targets = nil }, ErrNoTarget},
		{"empty targets", func(c *Config) { c.Targets = []string{} }, ErrNoTarget},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, ErrInvalidTimeout},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"negative redirects", func(c *Config) { c.MaxRedirects = -1 }, ErrInvalidMaxRedirects},
		{"zero depth", func(c *Config) { c.CrawlDepth = 0 }, ErrInvalidDepth},
		{"negative max pages", func(c *Config) { c.MaxPages = -1 }, ErrInvalidMaxPages},
		{"negative delay", func(c *Config) { c.CrawlDelay = -time.Millisecond }, ErrInvalidCrawlDelay},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"json and markdown", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"json and csv", func(c *Config) { c.JSONReport, c.CSVReport = true, true }, ErrConflictingReportFormats},
		{"tor and proxy", func(c *Config) { c.UseTor, c.ProxyAddress = true, "127.0.0.1:9050" }, ErrConflictingProxy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("single report format is valid", func(t *testing.T) {
		t.Parallel()
		for _, set := range []func(*Config){
			func(c *Config) { c.JSONReport = true },
			func(c *Config) { c.MarkdownReport = true },
			func(c *Config) { c.CSVReport = true },
		} {
			cfg := validConfig()
			set(cfg)
			if err := cfg.Validate(); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}
	})
}

func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Depth: 3, Cookie: "default_cookie=abc"},
			Sites:    map[string]SiteConfig{},
		}

		cfg := file.GetSiteConfig("unknown.example")
		if cfg.Depth != 3 {
			t.Errorf("expected depth 3, got %d", cfg.Depth)
		}
		if cfg.Cookie != "default_cookie=abc" {
			t.Errorf("expected default cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("site values replace defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Depth: 2, Delay: time.Second, Cookie: "a=1"},
			Sites: map[string]SiteConfig{
				"example.com": {Depth: 4, Delay: 250 * time.Millisecond, Cookie: "session=xyz"},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Depth != 4 {
			t.Errorf("expected depth 4, got %d", cfg.Depth)
		}
		if cfg.Delay != 250*time.Millisecond {
			t.Errorf("expected delay 250ms, got %v", cfg.Delay)
		}
		if cfg.Cookie != "session=xyz" {
			t.Errorf("expected site cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("zero site values keep defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Depth: 2, Cookie: "a=1"},
			Sites:    map[string]SiteConfig{"example.com": {}},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Depth != 2 || cfg.Cookie != "a=1" {
			t.Errorf("expected defaults to survive, got %+v", cfg)
		}
	})

	t.Run("headers are merged and site wins", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Headers: map[string]string{"X-Default": "1", "Authorization": "default"}},
			Sites: map[string]SiteConfig{
				"example.com": {Headers: map[string]string{"Authorization": "site"}},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Headers["X-Default"] != "1" {
			t.Errorf("expected default header, got %v", cfg.Headers)
		}
		if cfg.Headers["Authorization"] != "site" {
			t.Errorf("expected site header to win, got %q", cfg.Headers["Authorization"])
		}
	})

	t.Run("merging does not mutate defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Headers: map[string]string{"X-Default": "1"}},
			Sites: map[string]SiteConfig{
				"example.com": {Headers: map[string]string{"X-Site": "2"}},
			},
		}

		_ = file.GetSiteConfig("example.com")
		if _, ok := file.Defaults.Headers["X-Site"]; ok {
			t.Error("site header leaked into defaults")
		}
	})

	t.Run("site patterns override defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{IgnorePatterns: []string{"/default/*"}},
			Sites: map[string]SiteConfig{
				"example.com": {IgnorePatterns: []string{"/admin/*"}, FollowPatterns: []string{"/docs/*"}},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if len(cfg.IgnorePatterns) != 1 || cfg.IgnorePatterns[0] != "/admin/*" {
			t.Errorf("expected site ignore patterns, got %v", cfg.IgnorePatterns)
		}
		if len(cfg.FollowPatterns) != 1 || cfg.FollowPatterns[0] != "/docs/*" {
			t.Errorf("expected site follow patterns, got %v", cfg.FollowPatterns)
		}
	})

	t.Run("exclude links accumulate", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{ExcludeLinks: []string{`^https://localhost`}},
			Sites: map[string]SiteConfig{
				"nao1215/linkguardian": {ExcludeLinks: []string{`linkedin\.com`}},
			},
		}

		cfg := file.GetSiteConfig("nao1215/linkguardian")
		if len(cfg.ExcludeLinks) != 2 {
			t.Errorf("expected 2 exclude patterns, got %v", cfg.ExcludeLinks)
		}
		if len(file.Defaults.ExcludeLinks) != 1 {
			t.Errorf("defaults were mutated: %v", file.Defaults.ExcludeLinks)
		}
	})

	t.Run("nil sites map", func(t *testing.T) {
		t.Parallel()

		file := &File{Defaults: SiteConfig{Depth: 2}}
		if cfg := file.GetSiteConfig("any.example"); cfg.Depth != 2 {
			t.Errorf("expected depth 2, got %d", cfg.Depth)
		}
	})
}

func TestSiteConfigCompileExcludes(t *testing.T) {
	t.Parallel()

	t.Run("compiles valid patterns", func(t *testing.T) {
		t.Parallel()

		site := SiteConfig{ExcludeLinks: []string{`^https://example\.com/private`, `\.pdf$`}}
		patterns, err := site.CompileExcludes()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(patterns) != 2 {
			t.Fatalf("expected 2 patterns, got %d", len(patterns))
		}
		if !patterns[1].MatchString("https://example.com/a.pdf") {
			t.Error("expected pdf pattern to match")
		}
	})

	t.Run("rejects invalid pattern", func(t *testing.T) {
		t.Parallel()

		site := SiteConfig{ExcludeLinks: []string{`([`}}
		if _, err := site.CompileExcludes(); !errors.Is(err, ErrInvalidExcludePattern) {
			t.Errorf("expected ErrInvalidExcludePattern, got %v", err)
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		return path
	}

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.linkguardian")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `defaults:
  depth: 2
  delay: 500ms
sites:
  example.com:
    depth: 3
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
    ignorePatterns:
      - "/admin/*"
    excludeLinks:
      - "^https://example\\.com/private"
`)

		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.Depth != 2 {
			t.Errorf("expected default depth 2, got %d", cfg.Defaults.Depth)
		}
		if cfg.Defaults.Delay != 500*time.Millisecond {
			t.Errorf("expected default delay 500ms, got %v", cfg.Defaults.Delay)
		}

		site, ok := cfg.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com in sites")
		}
		if site.Depth != 3 {
			t.Errorf("expected site depth 3, got %d", site.Depth)
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Errorf("expected Authorization header, got %v", site.Headers)
		}
		if len(site.ExcludeLinks) != 1 {
			t.Errorf("expected 1 exclude pattern, got %v", site.ExcludeLinks)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `invalid: yaml: content: [}`)
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("returns error for invalid exclude pattern", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `sites:
  example.com:
    excludeLinks:
      - "(["
`)
		if _, err := LoadConfigFile(path); !errors.Is(err, ErrInvalidExcludePattern) {
			t.Errorf("expected ErrInvalidExcludePattern, got %v", err)
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "defaults:\n  depth: 2\n")
		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
		"state":  XDGStateDir(),
	} {
		if dir == "" {
			t.Errorf("expected non-empty XDG %s dir", name)
		}
		if filepath.Base(dir) != AppName {
			t.Errorf("expected XDG %s dir to end in %q, got %q", name, AppName, dir)
		}
	}
}
