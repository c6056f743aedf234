// Package pipeline runs the steps of a link check in sequence.
//
// A scan of one target is a Pipeline: a source step (crawl a site or fetch a
// repository README), an extract step that collects links, a dedupe step
// that drops repeated and excluded links, and a verify step that checks
// every remaining link concurrently. Each step receives the ScanReport and
// adds its part to it.
//
// Several targets are scanned by a BatchProcessor, which gives every target
// a fresh pipeline and bounds how many run at once with errgroup.
package pipeline
