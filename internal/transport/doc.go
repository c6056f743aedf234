// Package transport builds the HTTP clients used by linkguardian.
//
// A single Client owns the dialer (direct, or SOCKS5 through
// golang.org/x/net/proxy) and hands out *http.Client values with a
// redirect policy, pooled connections and optional header injection.
// The crawler and the verifier each get one client per run and share it
// across all their requests.
//
// When --tor is given, EmbeddedTor starts a private Tor daemon through
// tornago and its SOCKS address is used as the proxy, which lets
// linkguardian check links to onion services.
//
// Usage:
//
//	c, err := transport.NewClient("", 10*time.Second)
//	httpClient := c.NewHTTPClient(transport.WithMaxRedirects(5))
package transport
