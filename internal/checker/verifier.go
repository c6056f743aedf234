package checker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/linkguardian/internal/model"
	"github.com/nao1215/linkguardian/internal/transport"
)

// Defaults for Config.
const (
	DefaultConcurrency  = 50
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 5
)

// drainLimit caps how much of a response body is read before closing it,
// so that the connection can go back to the pool.
const drainLimit = 64 * 1024

// Config controls a Verifier.
type Config struct {
	// Concurrency is the maximum number of probes in flight.
	Concurrency int

	// Timeout bounds each probe, including redirects.
	Timeout time.Duration

	// MaxRedirects is the number of redirects followed before a probe is
	// classified as too_many_redirects.
	MaxRedirects int

	// FollowRedirects makes the client follow redirects. When false a 3xx
	// answer is reported as a redirect to its Location.
	FollowRedirects bool

	// GetFallback repeats a probe once with GET when HEAD is answered with
	// 405 Method Not Allowed or 501 Not Implemented.
	GetFallback bool

	// UserAgent is sent with every probe.
	UserAgent string

	// Headers are added to every probe.
	Headers map[string]string

	// ProxyAddress routes probes through a SOCKS5 proxy ("host:port").
	ProxyAddress string
}

// DefaultConfig returns the default verifier configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:     DefaultConcurrency,
		Timeout:         DefaultTimeout,
		MaxRedirects:    DefaultMaxRedirects,
		FollowRedirects: true,
	}
}

// Validate reports configuration values that cannot be honored.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidConfig, c.Timeout)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("%w: max redirects must not be negative, got %d", ErrInvalidConfig, c.MaxRedirects)
	}
	return nil
}

// Observer is notified about every probe. Implementations must be safe for
// concurrent use.
type Observer interface {
	// CheckStarted is called when a probe begins.
	CheckStarted()
	// CheckFinished is called with the outcome and duration of a probe.
	CheckFinished(kind model.StatusKind, elapsed time.Duration)
}

// Verifier checks URLs concurrently through one shared HTTP client.
type Verifier struct {
	cfg       Config
	client    *http.Client
	transport *transport.Client
	rt        http.RoundTripper
	logger    *slog.Logger
	observer  Observer
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithObserver registers an observer, typically a metrics recorder.
func WithObserver(o Observer) VerifierOption {
	return func(v *Verifier) {
		v.observer = o
	}
}

// WithTransportClient makes the verifier dial through c, for example a
// client bound to an embedded Tor daemon. Config.ProxyAddress is ignored.
func WithTransportClient(c *transport.Client) VerifierOption {
	return func(v *Verifier) {
		v.transport = c
	}
}

// WithRoundTripper replaces the HTTP transport.
func WithRoundTripper(rt http.RoundTripper) VerifierOption {
	return func(v *Verifier) {
		v.rt = rt
	}
}

// NewVerifier validates cfg and builds the shared HTTP client.
// Errors wrap ErrInvalidConfig.
func NewVerifier(cfg Config, opts ...VerifierOption) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &Verifier{cfg: cfg}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}

	if v.transport == nil {
		tc, err := transport.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		v.transport = tc
	}

	httpOpts := []transport.HTTPOption{
		transport.WithMaxRedirects(cfg.MaxRedirects),
		transport.WithHeaders("", cfg.Headers),
		transport.WithUserAgent(cfg.UserAgent),
	}
	if !cfg.FollowRedirects {
		httpOpts = append(httpOpts, transport.WithoutRedirects())
	}
	if v.rt != nil {
		httpOpts = append(httpOpts, transport.WithRoundTripper(v.rt))
	}
	v.client = v.transport.NewHTTPClient(httpOpts...)
	v.client.Timeout = cfg.Timeout

	return v, nil
}

// Config returns the configuration the verifier was built with.
func (v *Verifier) Config() Config {
	return v.cfg
}

// Verify checks every URL and returns the results in completion order.
// len(result) == len(urls) always holds.
func (v *Verifier) Verify(ctx context.Context, urls []string) []model.LinkCheckResult {
	results := make([]model.LinkCheckResult, 0, len(urls))
	v.VerifyFunc(ctx, urls, func(r model.LinkCheckResult) {
		results = append(results, r)
	})
	return results
}

// VerifyFunc checks every URL and calls fn with each result as soon as it is
// ready. Calls to fn are serialized. VerifyFunc returns after the last call.
func (v *Verifier) VerifyFunc(ctx context.Context, urls []string, fn func(model.LinkCheckResult)) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(v.cfg.Concurrency)

	for _, u := range urls {
		g.Go(func() error {
			result := v.Check(ctx, u)

			mu.Lock()
			fn(result)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return errors
}

// Check probes a single URL. It never returns an error: every failure is
// classified into the result.
func (v *Verifier) Check(ctx context.Context, rawURL string) model.LinkCheckResult {
	if v.observer != nil {
		v.observer.CheckStarted()
	}
	start := time.Now()

	result := v.check(ctx, rawURL)

	elapsed := time.Since(start)
	if v.observer != nil {
		v.observer.CheckFinished(result.Status.Kind, elapsed)
	}
	v.logger.Debug("link checked",
		slog.String("url", rawURL),
		slog.String("status", string(result.Status.Kind)),
		slog.String("message", result.Message),
		slog.Duration("elapsed", elapsed),
	)
	return result
}

func (v *Verifier) check(ctx context.Context, rawURL string) model.LinkCheckResult {
	if u, err := url.Parse(rawURL); err == nil {
		if err := transport.ValidateOnionHost(u.Hostname()); err != nil {
			return model.NewLinkCheckResult(rawURL, model.Error(), err.Error())
		}
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	statusCode, location, err := v.probe(ctx, http.MethodHead, rawURL)
	if err == nil && v.cfg.GetFallback &&
		(statusCode == http.StatusMethodNotAllowed || statusCode == http.StatusNotImplemented) {
		statusCode, location, err = v.probe(ctx, http.MethodGet, rawURL)
	}

	return Classify(rawURL, statusCode, location, err)
}

// probe sends one request and returns the status code and Location header.
func (v *Verifier) probe(ctx context.Context, method, rawURL string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, "", err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit)) //nolint:errcheck // draining only

	return resp.StatusCode, resp.Header.Get("Location"), nil
}
