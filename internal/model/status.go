package model

import (
	"encoding/json"
	"fmt"
)

// StatusKind is the tag of a LinkStatus.
type StatusKind string

const (
	// StatusOK means the server answered with a 2xx code.
	StatusOK StatusKind = "ok"
	// StatusRedirect means the server answered with a 3xx code.
	StatusRedirect StatusKind = "redirect"
	// StatusBroken means the resource is gone (404 or 410).
	StatusBroken StatusKind = "broken"
	// StatusTimeout means the probe did not finish within the per-request timeout.
	StatusTimeout StatusKind = "timeout"
	// StatusSSLError means the TLS handshake or certificate validation failed.
	StatusSSLError StatusKind = "ssl_error"
	// StatusTooManyRedirects means the redirect chain exceeded the configured limit.
	StatusTooManyRedirects StatusKind = "too_many_redirects"
	// StatusDNSError means the host name could not be resolved.
	StatusDNSError StatusKind = "dns_error"
	// StatusError covers every other failure, including unexpected HTTP codes.
	StatusError StatusKind = "error"
)

// AllStatusKinds lists every StatusKind in display order.
var AllStatusKinds = []StatusKind{
	StatusOK,
	StatusRedirect,
	StatusBroken,
	StatusTimeout,
	StatusSSLError,
	StatusTooManyRedirects,
	StatusDNSError,
	StatusError,
}

// UnknownRedirectTarget is the redirect target used when a 3xx response
// carries no Location header.
const UnknownRedirectTarget = "unknown"

// Label returns the upper-case label used in text and Markdown reports.
func (k StatusKind) Label() string {
	switch k {
	case StatusOK:
		return "OK"
	case StatusRedirect:
		return "REDIRECT"
	case StatusBroken:
		return "BROKEN"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusSSLError:
		return "SSL ERROR"
	case StatusTooManyRedirects:
		return "TOO MANY REDIRECTS"
	case StatusDNSError:
		return "DNS ERROR"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether k is one of the known kinds.
func (k StatusKind) Valid() bool {
	for _, kind := range AllStatusKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// LinkStatus is the classified outcome of a single probe.
// Exactly one kind is active. Target is only meaningful for StatusRedirect.
//
// The zero value is not a valid status; use the constructors.
type LinkStatus struct {
	Kind   StatusKind `json:"status"`
	Target string     `json:"target,omitempty"`
}

// OK returns an Ok status.
func OK() LinkStatus { return LinkStatus{Kind: StatusOK} }

// Redirect returns a Redirect status pointing at target.
// An empty target is recorded as UnknownRedirectTarget.
func Redirect(target string) LinkStatus {
	if target == "" {
		target = UnknownRedirectTarget
	}
	return LinkStatus{Kind: StatusRedirect, Target: target}
}

// Broken returns a Broken status.
func Broken() LinkStatus { return LinkStatus{Kind: StatusBroken} }

// Timeout returns a Timeout status.
func Timeout() LinkStatus { return LinkStatus{Kind: StatusTimeout} }

// SSLError returns an SslError status.
func SSLError() LinkStatus { return LinkStatus{Kind: StatusSSLError} }

// TooManyRedirects returns a TooManyRedirects status.
func TooManyRedirects() LinkStatus { return LinkStatus{Kind: StatusTooManyRedirects} }

// DNSError returns a DnsError status.
func DNSError() LinkStatus { return LinkStatus{Kind: StatusDNSError} }

// Error returns an Error status.
func Error() LinkStatus { return LinkStatus{Kind: StatusError} }

// IsOK reports whether the status counts as a working link.
// Redirects are considered working.
func (s LinkStatus) IsOK() bool {
	return s.Kind == StatusOK || s.Kind == StatusRedirect
}

// String returns the report label, with the target for redirects.
func (s LinkStatus) String() string {
	if s.Kind == StatusRedirect {
		return fmt.Sprintf("%s -> %s", s.Kind.Label(), s.Target)
	}
	return s.Kind.Label()
}

// UnmarshalJSON rejects unknown kinds and drops the target of non-redirect
// statuses.
func (s *LinkStatus) UnmarshalJSON(data []byte) error {
	type plain LinkStatus
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("unknown link status %q", p.Kind)
	}
	if p.Kind != StatusRedirect {
		p.Target = ""
	}
	*s = LinkStatus(p)
	return nil
}
