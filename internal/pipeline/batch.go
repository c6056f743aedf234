package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/linkguardian/internal/model"
)

// DefaultBatchConcurrency scans targets one after another so that several
// start URLs on the same host are not crawled in parallel.
const DefaultBatchConcurrency = 1

// Factory builds the pipeline for one target. Targets can differ in
// settings (per-site depth, headers, exclusions), so every target gets its
// own pipeline.
type Factory func(target string) (*Pipeline, error)

// BatchProcessor scans several targets with bounded concurrency.
type BatchProcessor struct {
	factory     Factory
	mode        model.ScanMode
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of targets scanned at once.
// Non-positive values are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor producing reports of the given mode.
func NewBatchProcessor(mode model.ScanMode, factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		mode:        mode,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch scans every target and returns the reports in target order.
// A failing target does not stop the others; its report carries the error.
// The returned error is only non-nil when ctx is cancelled, in which case
// targets that were never started have a nil report.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.ScanReport, error) {
	reports := make([]*model.ScanReport, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(report *model.ScanReport, index int) {
		reports[index] = report
	})
	return reports, err
}

// ProcessBatchWithCallback scans every target and calls callback with each
// report as soon as it is done. callback is called from the scanning
// goroutine and must be safe for concurrent use when concurrency > 1.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.ScanReport, index int),
) error {
	bp.logger.Info("starting batch",
		"targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("scanning target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			report := model.NewScanReport(target, bp.mode)
			p, err := bp.factory(target)
			if err != nil {
				report.Error = err.Error()
				bp.logger.Warn("scan not started", "target", target, "error", err)
				callback(report, i)
				return nil
			}

			if err := p.Execute(gctx, report); err != nil {
				bp.logger.Warn("scan failed", "target", target, "error", err)
			} else {
				bp.logger.Info("scan completed",
					"target", target,
					"links", len(report.Results),
					"broken", report.Summary.Broken,
				)
			}
			callback(report, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch complete",
		"targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	if err == nil {
		err = ctx.Err()
	}
	return err
}
