package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// Connection pool settings shared by every client. The verifier opens many
// short HEAD requests to many hosts, so the per-host idle pool stays small
// while the global pool is sized for the default concurrency.
const (
	maxIdleConns        = 100
	maxIdleConnsPerHost = 4
	idleConnTimeout     = 30 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
)

// Client owns the dialer used for all outgoing connections.
// It is safe for concurrent use.
type Client struct {
	// proxyAddress is the SOCKS5 proxy in "host:port" form, empty for direct.
	proxyAddress string

	// dialer is either a SOCKS5 dialer or a plain net.Dialer.
	dialer proxy.ContextDialer

	// timeout is the overall per-request timeout applied to HTTP clients.
	timeout time.Duration
}

// NewClient creates a Client. An empty proxyAddress means direct connections.
//
// The proxy is not contacted here; call CheckConnection to verify it.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	direct := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}

	if proxyAddress == "" {
		return &Client{dialer: direct, timeout: timeout}, nil
	}

	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// Tor's SOCKS port does not require authentication.
	d, err := proxy.SOCKS5("tcp", proxyAddress, nil, direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer for %s does not support contexts", proxyAddress)
	}

	return &Client{
		proxyAddress: proxyAddress,
		dialer:       cd,
		timeout:      timeout,
	}, nil
}

// isValidProxyAddress checks for "host:port" with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address, empty for direct.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// DialContext dials address through the configured dialer.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return c.dialer.DialContext(ctx, network, address)
}

// httpSettings holds the knobs of NewHTTPClient.
type httpSettings struct {
	maxRedirects    int
	followRedirects bool
	cookie          string
	headers         map[string]string
	userAgent       string
	base            http.RoundTripper
}

// HTTPOption configures NewHTTPClient.
type HTTPOption func(*httpSettings)

// WithMaxRedirects sets how many redirects are followed before
// ErrTooManyRedirects is returned. Zero rejects every redirect.
func WithMaxRedirects(n int) HTTPOption {
	return func(s *httpSettings) {
		s.maxRedirects = n
	}
}

// WithoutRedirects makes the client return 3xx responses instead of following them.
func WithoutRedirects() HTTPOption {
	return func(s *httpSettings) {
		s.followRedirects = false
	}
}

// WithHeaders injects cookie and headers into every request, redirects included.
func WithHeaders(cookie string, headers map[string]string) HTTPOption {
	return func(s *httpSettings) {
		s.cookie = cookie
		s.headers = headers
	}
}

// WithUserAgent sets the User-Agent of requests that do not carry one.
func WithUserAgent(ua string) HTTPOption {
	return func(s *httpSettings) {
		s.userAgent = ua
	}
}

// WithRoundTripper replaces the pooled transport. Used by tests to
// instrument requests.
func WithRoundTripper(rt http.RoundTripper) HTTPOption {
	return func(s *httpSettings) {
		s.base = rt
	}
}

// NewHTTPClient creates an HTTP client that dials through c.
// By default it follows up to 10 redirects.
func (c *Client) NewHTTPClient(opts ...HTTPOption) *http.Client {
	settings := &httpSettings{
		maxRedirects:    10,
		followRedirects: true,
	}
	for _, opt := range opts {
		opt(settings)
	}

	var rt http.RoundTripper = settings.base
	if rt == nil {
		rt = &http.Transport{
			DialContext:         c.dialer.DialContext,
			MaxIdleConns:        maxIdleConns,
			MaxIdleConnsPerHost: maxIdleConnsPerHost,
			IdleConnTimeout:     idleConnTimeout,
			TLSHandshakeTimeout: tlsHandshakeTimeout,
			ForceAttemptHTTP2:   true,
		}
	}

	if settings.cookie != "" || len(settings.headers) > 0 || settings.userAgent != "" {
		rt = &headerInjectingTransport{
			base:      rt,
			cookie:    settings.cookie,
			headers:   settings.headers,
			userAgent: settings.userAgent,
		}
	}

	return &http.Client{
		Transport:     rt,
		Timeout:       c.timeout,
		CheckRedirect: redirectPolicy(settings.followRedirects, settings.maxRedirects),
	}
}

// redirectPolicy returns a CheckRedirect function. via holds the requests
// already sent, so len(via) is the number of the redirect about to be followed.
func redirectPolicy(follow bool, maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if !follow {
			return http.ErrUseLastResponse
		}
		if len(via) > maxRedirects {
			return ErrTooManyRedirects
		}
		return nil
	}
}

// headerInjectingTransport adds a cookie, headers and a default User-Agent
// to every request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	cookie    string
	headers   map[string]string
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
