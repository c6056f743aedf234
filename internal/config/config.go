package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "linkguardian"

	// DefaultTimeout bounds each link probe and each page fetch.
	DefaultTimeout = 10 * time.Second

	// DefaultConcurrency is the number of link probes in flight at once.
	DefaultConcurrency = 50

	// DefaultMaxRedirects is the number of redirects followed per probe.
	DefaultMaxRedirects = 5

	// DefaultCrawlDepth fetches only the start page. The start page is depth 1.
	DefaultCrawlDepth = 1

	// DefaultMaxPages of zero means the crawl is bounded by depth only.
	DefaultMaxPages = 0

	// DefaultCrawlDelay is the politeness delay between page fetches.
	DefaultCrawlDelay = 100 * time.Millisecond

	// DefaultBatchSize is the number of targets processed at once. Targets
	// are crawled one after another unless the user asks otherwise.
	DefaultBatchSize = 1

	// DefaultUserAgent identifies linkguardian in HTTP requests.
	DefaultUserAgent = "linkguardian/1.0 (+https://github.com/nao1215/linkguardian)"

	// DefaultMaxBodySize limits how much of a crawled page is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is how long the embedded Tor daemon may take to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all options of a linkguardian run.
// It is populated from CLI flags and passed down explicitly; there is no
// global configuration state.
type Config struct {
	// Targets are the start URLs (site mode) or repository URLs (github mode).
	Targets []string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// Concurrency is the maximum number of link probes in flight.
	Concurrency int

	// MaxRedirects is the number of redirects followed per probe.
	MaxRedirects int

	// FollowRedirects makes probes follow redirects. When false, a 3xx
	// answer is reported as a redirect.
	FollowRedirects bool

	// GetFallback retries a probe with GET when HEAD is answered with 405 or 501.
	GetFallback bool

	// CrawlDepth is the maximum crawl depth; 1 fetches only the start page.
	CrawlDepth int

	// MaxPages limits the pages crawled per target. Zero means no limit.
	MaxPages int

	// CrawlDelay is the delay between page fetches.
	CrawlDelay time.Duration

	// CheckAssets also checks images, scripts and stylesheets found on crawled pages.
	CheckAssets bool

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize is the maximum number of bytes read from a crawled page.
	MaxBodySize int64

	// ProxyAddress routes every request through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes every request through it.
	// Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout is the maximum bootstrap time of the embedded daemon.
	TorStartupTimeout time.Duration

	// BatchSize is the number of targets processed concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// LogFile, when set, also writes logs to a size-rotated file.
	LogFile string

	// ConfigFilePath is the path to the configuration file. If empty,
	// .linkguardian is searched in the current and then the home directory.
	ConfigFilePath string

	// SiteConfigs holds the loaded configuration file, if any.
	SiteConfigs *File

	// JSONReport selects JSON output.
	JSONReport bool

	// MarkdownReport selects Markdown output.
	MarkdownReport bool

	// CSVReport selects CSV output.
	CSVReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// ShowAll lists working links in text and Markdown reports too.
	ShowAll bool

	// SaveToDB stores every report in the scan history database.
	SaveToDB bool

	// DBDir is the directory holding the scan history database.
	DBDir string

	// MetricsFile, when set, receives Prometheus metrics in text format
	// at the end of the run.
	MetricsFile string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:           DefaultTimeout,
		Concurrency:       DefaultConcurrency,
		MaxRedirects:      DefaultMaxRedirects,
		FollowRedirects:   true,
		CrawlDepth:        DefaultCrawlDepth,
		MaxPages:          DefaultMaxPages,
		CrawlDelay:        DefaultCrawlDelay,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		BatchSize:         DefaultBatchSize,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for linkguardian.
// On Linux: ~/.local/share/linkguardian
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for linkguardian.
// On Linux: ~/.config/linkguardian
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGStateDir returns the XDG state directory, the default home of log files.
// On Linux: ~/.local/state/linkguardian
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}
	if c.CrawlDepth < 1 {
		return ErrInvalidDepth
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	formats := 0
	for _, on := range []bool{c.JSONReport, c.MarkdownReport, c.CSVReport} {
		if on {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	return nil
}
