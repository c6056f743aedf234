// Package metrics records crawl and verification statistics with Prometheus
// collectors and exports them in the text exposition format, suitable for
// the node_exporter textfile collector.
package metrics
