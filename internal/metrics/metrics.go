package metrics

import (
	"strconv"
	"time"

	"github.com/nao1215/linkguardian/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "linkguardian"

// Recorder collects the statistics of one linkguardian run.
// It satisfies both checker.Observer and crawler.Observer and is safe for
// concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	pagesCrawled  *prometheus.CounterVec
	pageFailures  prometheus.Counter
	checksTotal   *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	scanDuration  *prometheus.GaugeVec
	brokenLinks   *prometheus.GaugeVec
	lastScan      *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		pagesCrawled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_crawled_total",
				Help:      "Total number of pages fetched by the crawler, labeled by depth.",
			},
			[]string{"depth"},
		),
		pageFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "page_fetch_failures_total",
				Help:      "Total number of pages the crawler could not fetch.",
			},
		),
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "link_checks_total",
				Help:      "Total number of link checks, labeled by outcome.",
			},
			[]string{"status"},
		),
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "link_check_duration_seconds",
				Help:      "Duration of link checks in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "link_checks_in_flight",
				Help:      "Number of link checks currently running.",
			},
		),
		scanDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Duration of the last scan of a target in seconds.",
			},
			[]string{"target", "mode"},
		),
		brokenLinks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "broken_links",
				Help:      "Number of non-OK links found by the last scan of a target.",
			},
			[]string{"target", "mode"},
		),
		lastScan: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_scan_timestamp_seconds",
				Help:      "Unix time of the last scan of a target.",
			},
			[]string{"target", "mode"},
		),
	}

	r.registry.MustRegister(
		r.pagesCrawled,
		r.pageFailures,
		r.checksTotal,
		r.checkDuration,
		r.inFlight,
		r.scanDuration,
		r.brokenLinks,
		r.lastScan,
	)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// PageFetched counts a crawled page.
func (r *Recorder) PageFetched(depth int) {
	r.pagesCrawled.WithLabelValues(strconv.Itoa(depth)).Inc()
}

// PageFailed counts a page that could not be fetched.
func (r *Recorder) PageFailed() {
	r.pageFailures.Inc()
}

// CheckStarted marks a link check as running.
func (r *Recorder) CheckStarted() {
	r.inFlight.Inc()
}

// CheckFinished records the outcome of a link check.
func (r *Recorder) CheckFinished(kind model.StatusKind, elapsed time.Duration) {
	r.inFlight.Dec()
	r.checksTotal.WithLabelValues(string(kind)).Inc()
	r.checkDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveReport records the totals of a finished scan.
func (r *Recorder) ObserveReport(report *model.ScanReport) {
	if report == nil {
		return
	}
	labels := []string{report.Target, string(report.Mode)}
	r.scanDuration.WithLabelValues(labels...).Set(report.Duration.Seconds())
	r.brokenLinks.WithLabelValues(labels...).Set(float64(report.Summary.Broken))
	r.lastScan.WithLabelValues(labels...).Set(float64(report.DateScanned.Unix()))
}

// WriteToTextfile writes all metrics to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
