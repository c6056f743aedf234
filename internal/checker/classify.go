package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/nao1215/linkguardian/internal/model"
	"github.com/nao1215/linkguardian/internal/transport"
)

// Result messages.
const (
	msgTimeout          = "Request timed out"
	msgTooManyRedirects = "Too many redirects"
	msgDNS              = "Could not resolve hostname"
	msgConnect          = "Connection failed"
	msgTLS              = "SSL certificate error"
)

// Message markers used when no structured error is available.
var (
	dnsMarkers = []string{"dns", "no such host", "server misbehaving", "name resolution"}
	tlsMarkers = []string{"certificate", "ssl", "tls:", "x509"}
)

// Failure describes a request that produced no HTTP response.
type Failure struct {
	// Timeout is set when the request did not finish in time.
	Timeout bool

	// RedirectLoop is set when the redirect limit was exceeded.
	RedirectLoop bool

	// Connect is set when no connection to the host could be made.
	Connect bool

	// DNS is set when host name resolution is known to have failed.
	DNS bool

	// TLS is set when the TLS handshake or certificate check is known to have failed.
	TLS bool

	// Description is the raw error text.
	Description string
}

// ClassifyResponse maps an HTTP status code to a status and message.
// location is the Location header of the response, possibly empty.
func ClassifyResponse(statusCode int, location string) (model.LinkStatus, string) {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return model.OK(), fmt.Sprintf("HTTP %d", statusCode)
	case statusCode >= 300 && statusCode < 400:
		status := model.Redirect(location)
		return status, fmt.Sprintf("HTTP %d -> %s", statusCode, status.Target)
	case statusCode == 404 || statusCode == 410:
		return model.Broken(), fmt.Sprintf("HTTP %d", statusCode)
	default:
		return model.Error(), fmt.Sprintf("HTTP %d", statusCode)
	}
}

// ClassifyFailure maps a transport failure to a status and message.
// The first matching rule wins:
//
//  1. timeout
//  2. redirect loop
//  3. connect failure caused by DNS
//  4. any other connect failure
//  5. TLS failure
//  6. anything else, reported with the raw description
func ClassifyFailure(f Failure) (model.LinkStatus, string) {
	desc := strings.ToLower(f.Description)

	switch {
	case f.Timeout:
		return model.Timeout(), msgTimeout
	case f.RedirectLoop:
		return model.TooManyRedirects(), msgTooManyRedirects
	case f.Connect && (f.DNS || containsAny(desc, dnsMarkers)):
		return model.DNSError(), msgDNS
	case f.Connect:
		return model.Error(), msgConnect
	case f.TLS || containsAny(desc, tlsMarkers):
		return model.SSLError(), msgTLS
	default:
		return model.Error(), f.Description
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// FailureFromError converts an error returned by http.Client.Do into a Failure.
func FailureFromError(err error) Failure {
	if err == nil {
		return Failure{}
	}

	f := Failure{Description: err.Error()}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		f.Timeout = true
	}

	if errors.Is(err, transport.ErrTooManyRedirects) {
		f.RedirectLoop = true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		f.Connect = true
		f.DNS = true
	}

	// "dial" comes from net.Dialer, "connect" from the SOCKS5 dialer.
	var opErr *net.OpError
	if errors.As(err, &opErr) && (opErr.Op == "dial" || opErr.Op == "connect") {
		f.Connect = true
	}

	if isTLSError(err) {
		f.TLS = true
	}

	return f
}

// isTLSError reports whether err comes from certificate verification or
// the TLS record layer.
func isTLSError(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		invalidCert      x509.CertificateInvalidError
		hostnameErr      x509.HostnameError
		verifyErr        *tls.CertificateVerificationError
		recordErr        tls.RecordHeaderError
		alertErr         tls.AlertError
	)
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &invalidCert) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr)
}

// Classify turns the outcome of one request into a result for url.
// statusCode and location are ignored when err is non-nil.
func Classify(url string, statusCode int, location string, err error) model.LinkCheckResult {
	if err != nil {
		status, msg := ClassifyFailure(FailureFromError(err))
		return model.NewLinkCheckResult(url, status, msg)
	}
	status, msg := ClassifyResponse(statusCode, location)
	return model.NewLinkCheckResult(url, status, msg)
}
