// Package checker verifies that URLs are alive.
//
// # Components
//
//   - Verifier: probes a batch of URLs with HEAD requests through one shared
//     HTTP client, at most Concurrency at a time
//   - ClassifyResponse / ClassifyFailure: pure functions turning an HTTP
//     status code or a transport failure into a model.LinkStatus
//   - FailureFromError: the only place that inspects Go error values
//
// # Classification
//
// A response is classified by its status code alone:
//
//	2xx        -> ok
//	3xx        -> redirect (Location header, or "unknown")
//	404, 410   -> broken
//	otherwise  -> error
//
// A transport failure is classified in priority order: timeout, redirect
// loop, DNS failure, other connect failure, TLS failure, anything else.
// Structured errors (net.Error, *net.DNSError, x509 errors) are preferred
// and message markers are the fallback.
//
// # Guarantees
//
// Every URL handed to Verify yields exactly one result. The verifier neither
// retries nor deduplicates; callers that want unique URLs dedupe first.
package checker
