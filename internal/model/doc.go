// Package model defines the data structures shared across linkguardian.
//
// This package contains the following main types:
//   - Page: A page fetched by the crawler together with its decoded content
//   - Document: A repository file fetched from a code host (e.g. a README)
//   - LinkStatus: The classified outcome of probing a single URL
//   - LinkCheckResult: One verification result per probed URL
//   - ScanReport: Everything gathered for one target, plus its Summary
//
// Models live in their own package so that the crawler, checker, pipeline,
// report and database packages can share them without import cycles.
// All types are serializable to JSON for report output and history storage.
package model
