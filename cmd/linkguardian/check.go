package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkguardian/internal/checker"
	"github.com/nao1215/linkguardian/internal/config"
	"github.com/nao1215/linkguardian/internal/crawler"
	"github.com/nao1215/linkguardian/internal/database"
	"github.com/nao1215/linkguardian/internal/extract"
	"github.com/nao1215/linkguardian/internal/github"
	"github.com/nao1215/linkguardian/internal/log"
	"github.com/nao1215/linkguardian/internal/metrics"
	"github.com/nao1215/linkguardian/internal/model"
	"github.com/nao1215/linkguardian/internal/pipeline"
	"github.com/nao1215/linkguardian/internal/report"
	"github.com/nao1215/linkguardian/internal/transport"
)

var (
	// ErrBrokenLinks is returned when at least one checked link is not OK.
	ErrBrokenLinks = errors.New("broken links found")

	// ErrScanFailed is returned when a target could not be scanned at all.
	ErrScanFailed = errors.New("scan failed")
)

// addCheckFlags registers the flags shared by the site and github commands.
func addCheckFlags(cmd *cobra.Command) {
	// Verification flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of links checked at the same time")
	cmd.Flags().Int("max-redirects", config.DefaultMaxRedirects,
		"Maximum number of redirects followed per link")
	cmd.Flags().Bool("no-follow-redirects", false,
		"Report 3xx answers as redirects instead of following them")
	cmd.Flags().Bool("get-fallback", false,
		"Retry with GET when a server rejects HEAD (405, 501)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Network flags
	cmd.Flags().String("proxy", "",
		"Route every request through a SOCKS5 proxy (host:port)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route every request through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Batch and configuration flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of targets checked at the same time")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkguardian in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false, "Output JSON report")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report")
	cmd.Flags().Bool("csv", false, "Output CSV report")
	cmd.Flags().BoolP("all", "a", false, "List working links too, not only broken ones")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// History and metrics flags
	cmd.Flags().Bool("save", false, "Save the results to the scan history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory holding the scan history database")
	cmd.Flags().String("metrics-file", "",
		"Write Prometheus metrics in text format to this file")
}

// flagReader collects the first error of a series of flag lookups so that
// buildConfig reads as a flat list.
type flagReader struct {
	cmd *cobra.Command
	err error
}

func (r *flagReader) duration(name string) time.Duration {
	if r.err != nil {
		return 0
	}
	var v time.Duration
	v, r.err = r.cmd.Flags().GetDuration(name)
	return v
}

func (r *flagReader) integer(name string) int {
	if r.err != nil {
		return 0
	}
	var v int
	v, r.err = r.cmd.Flags().GetInt(name)
	return v
}

func (r *flagReader) boolean(name string) bool {
	if r.err != nil {
		return false
	}
	var v bool
	v, r.err = r.cmd.Flags().GetBool(name)
	return v
}

func (r *flagReader) str(name string) string {
	if r.err != nil {
		return ""
	}
	var v string
	v, r.err = r.cmd.Flags().GetString(name)
	return v
}

// buildConfig creates a Config from the command flags and the configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	r := &flagReader{cmd: cmd}

	cfg.Targets = args
	cfg.Timeout = r.duration("timeout")
	cfg.Concurrency = r.integer("concurrency")
	cfg.MaxRedirects = r.integer("max-redirects")
	cfg.FollowRedirects = !r.boolean("no-follow-redirects")
	cfg.GetFallback = r.boolean("get-fallback")
	cfg.UserAgent = r.str("user-agent")
	cfg.ProxyAddress = r.str("proxy")
	cfg.UseTor = r.boolean("tor")
	cfg.TorStartupTimeout = r.duration("tor-timeout")
	cfg.BatchSize = r.integer("batch")
	cfg.ConfigFilePath = r.str("config")
	cfg.JSONReport = r.boolean("json")
	cfg.MarkdownReport = r.boolean("markdown")
	cfg.CSVReport = r.boolean("csv")
	cfg.ShowAll = r.boolean("all")
	cfg.ReportFile = r.str("output")
	cfg.SaveToDB = r.boolean("save")
	cfg.DBDir = r.str("db-dir")
	cfg.MetricsFile = r.str("metrics-file")
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogFile = getLogFileFlag(cmd)

	// Crawl flags exist on the site command only.
	if cmd.Flags().Lookup("depth") != nil {
		cfg.CrawlDepth = r.integer("depth")
		cfg.CrawlDelay = r.duration("delay")
		cfg.MaxPages = r.integer("max-pages")
		cfg.CheckAssets = r.boolean("check-assets")
	}
	if r.err != nil {
		return nil, r.err
	}

	// An explicitly named file must exist; otherwise a missing file means
	// an empty configuration.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		sites, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs = sites
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

func getLogFileFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("log-file")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("log-file")
		if err != nil {
			return ""
		}
	}
	return path
}

// reportFormat picks the output format from the report flags.
func reportFormat(cfg *config.Config) report.Format {
	switch {
	case cfg.JSONReport:
		return report.FormatJSON
	case cfg.MarkdownReport:
		return report.FormatMarkdown
	case cfg.CSVReport:
		return report.FormatCSV
	default:
		return report.FormatText
	}
}

// checkRun holds what every target of one invocation shares.
type checkRun struct {
	cfg      *config.Config
	mode     model.ScanMode
	logger   *slog.Logger
	client   *transport.Client
	verifier *checker.Verifier
	recorder *metrics.Recorder

	// rawBaseURL overrides the GitHub raw content host.
	rawBaseURL string
}

// runCheckCmd is the RunE of the site and github commands.
func runCheckCmd(cmd *cobra.Command, args []string, mode model.ScanMode, rawBaseURL string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closer, err := log.New(log.Options{
		Writer:  cmd.ErrOrStderr(),
		Verbose: cfg.Verbose,
		File:    cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	cr := &checkRun{cfg: cfg, mode: mode, logger: logger, rawBaseURL: rawBaseURL}
	return cr.execute(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// execute checks every target, renders the reports and maps the outcome to
// ErrBrokenLinks or ErrScanFailed.
func (r *checkRun) execute(ctx context.Context, stdout, stderr io.Writer) error {
	cfg := r.cfg

	var db *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	if cfg.MetricsFile != "" {
		r.recorder = metrics.NewRecorder()
	}

	stopTor, err := r.setupTransport(ctx, stderr)
	if err != nil {
		return err
	}
	defer stopTor()

	verifierOpts := []checker.VerifierOption{
		checker.WithLogger(r.logger),
		checker.WithTransportClient(r.client),
	}
	if r.recorder != nil {
		verifierOpts = append(verifierOpts, checker.WithObserver(r.recorder))
	}
	r.verifier, err = checker.NewVerifier(checker.Config{
		Concurrency:     cfg.Concurrency,
		Timeout:         cfg.Timeout,
		MaxRedirects:    cfg.MaxRedirects,
		FollowRedirects: cfg.FollowRedirects,
		GetFallback:     cfg.GetFallback,
		UserAgent:       cfg.UserAgent,
	}, verifierOpts...)
	if err != nil {
		return err
	}

	bp := pipeline.NewBatchProcessor(r.mode, r.newPipeline,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(r.logger),
	)

	reports := make([]*model.ScanReport, len(cfg.Targets))
	var mu sync.Mutex
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(rep *model.ScanReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		reports[index] = rep
		if len(cfg.Targets) > 1 {
			fmt.Fprintf(stderr, "[%d/%d] checked %s: %d link(s), %d broken\n",
				index+1, len(cfg.Targets), rep.Target, rep.Summary.Total, rep.Summary.Broken)
		}
		if r.recorder != nil {
			r.recorder.ObserveReport(rep)
		}
		if err := saveScanReport(ctx, db, rep, r.logger); err != nil {
			r.logger.Error("failed to save scan report", "target", rep.Target, "error", err)
		}
	})

	if err := r.writeReports(stdout, reports); err != nil {
		return err
	}
	if r.recorder != nil {
		if err := r.recorder.WriteToTextfile(cfg.MetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if batchErr != nil {
		return fmt.Errorf("check interrupted: %w", batchErr)
	}
	return outcome(reports)
}

// outcome returns ErrScanFailed if a target could not be scanned, otherwise
// ErrBrokenLinks if any link is broken.
func outcome(reports []*model.ScanReport) error {
	var failed, broken int
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		if rep.Error != "" {
			failed++
		}
		if rep.HasBroken() {
			broken++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d target(s) could not be checked", ErrScanFailed, failed)
	}
	if broken > 0 {
		return ErrBrokenLinks
	}
	return nil
}

// setupTransport builds the shared transport client. The returned function
// stops the embedded Tor daemon, if one was started.
func (r *checkRun) setupTransport(ctx context.Context, stderr io.Writer) (func(), error) {
	cfg := r.cfg
	noop := func() {}

	if cfg.UseTor {
		client, embedded, err := startEmbeddedTor(ctx, cfg, r.logger, stderr)
		if err != nil {
			return noop, err
		}
		r.client = client
		return func() {
			r.logger.Info("stopping embedded Tor daemon...")
			if err := embedded.Stop(); err != nil {
				r.logger.Error("failed to stop embedded Tor", "error", err)
			}
		}, nil
	}

	client, err := transport.NewClient(cfg.ProxyAddress, cfg.Timeout)
	if err != nil {
		return noop, fmt.Errorf("failed to create transport: %w", err)
	}
	if cfg.ProxyAddress != "" {
		if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
			return noop, fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, status.Err())
		}
		r.logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}
	r.client = client
	return noop, nil
}

// startEmbeddedTor starts a Tor daemon through tornago and returns a client
// bound to its SOCKS port.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (*transport.Client, *transport.EmbeddedTor, error) {
	fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
	fmt.Fprintf(stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embedded := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	logger.Info("embedded Tor daemon started",
		"socksAddr", embedded.SocksAddr(),
		"controlAddr", embedded.ControlAddr(),
	)

	client, err := embedded.NewClient(cfg.Timeout)
	if err != nil {
		_ = embedded.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
		_ = embedded.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
	}
	return client, embedded, nil
}

// newPipeline is the pipeline.Factory of a run. It applies the settings the
// configuration file holds for the target.
func (r *checkRun) newPipeline(target string) (*pipeline.Pipeline, error) {
	cfg := r.cfg

	key, err := pipeline.SiteKey(r.mode, target)
	if err != nil {
		return nil, err
	}
	site := cfg.SiteConfigs.GetSiteConfig(key)
	excludes, err := site.CompileExcludes()
	if err != nil {
		return nil, err
	}

	httpClient := r.client.NewHTTPClient(
		transport.WithHeaders(site.Cookie, site.Headers),
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithMaxRedirects(cfg.MaxRedirects),
	)
	httpClient.Timeout = cfg.Timeout
	pipelineOpts := []pipeline.Option{pipeline.WithLogger(r.logger)}

	if r.mode == model.ModeGitHub {
		ghOpts := []github.Option{github.WithLogger(r.logger)}
		if r.rawBaseURL != "" {
			ghOpts = append(ghOpts, github.WithRawBaseURL(r.rawBaseURL))
		}
		return pipeline.NewGitHubPipeline(
			github.NewClient(httpClient, ghOpts...),
			r.verifier,
			excludes,
			pipelineOpts...,
		), nil
	}

	depth := cfg.CrawlDepth
	if site.Depth > 0 {
		depth = site.Depth
	}
	delay := cfg.CrawlDelay
	if site.Delay > 0 {
		delay = site.Delay
	}

	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxDepth(depth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithDelay(delay),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithFetcher(crawler.NewHTTPFetcher(httpClient, cfg.UserAgent, cfg.MaxBodySize)),
		crawler.WithLogger(r.logger),
	}
	if r.recorder != nil {
		spiderOpts = append(spiderOpts, crawler.WithObserver(r.recorder))
	}

	var extractor crawler.Extractor
	if cfg.CheckAssets {
		extractor = extract.NewHTML(extract.WithAssets(), extract.WithHTMLLogger(r.logger))
	}

	return pipeline.NewSitePipeline(
		crawler.NewSpider(httpClient, spiderOpts...),
		extractor,
		r.verifier,
		excludes,
		pipelineOpts...,
	), nil
}

// writeReports renders reports to the report file, or stdout.
func (r *checkRun) writeReports(stdout io.Writer, reports []*model.ScanReport) error {
	cfg := r.cfg

	output := stdout
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	w, err := report.NewWriter(reportFormat(cfg), output, report.Options{
		Version: getVersion(),
		ShowAll: cfg.ShowAll,
	})
	if err != nil {
		return err
	}
	if _, err := w.WriteAll(reports); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// saveScanReport stores report in db. A nil db is a no-op.
func saveScanReport(ctx context.Context, db *database.HistoryDB, rep *model.ScanReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	// The batch context may already be cancelled; the partial report is
	// still worth keeping.
	id, err := db.SaveScanReport(context.WithoutCancel(ctx), rep)
	if err != nil {
		return err
	}
	logger.Info("scan report saved", "target", rep.Target, "id", id)
	return nil
}
