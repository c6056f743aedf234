package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nao1215/linkguardian/internal/checker"
	"github.com/nao1215/linkguardian/internal/crawler"
	"github.com/nao1215/linkguardian/internal/extract"
	"github.com/nao1215/linkguardian/internal/github"
	"github.com/nao1215/linkguardian/internal/model"
)

// Step names as recorded in ScanReport.PerformedSteps.
const (
	StepCrawl   = "crawl"
	StepReadme  = "fetch_readme"
	StepExtract = "extract"
	StepDedupe  = "dedupe"
	StepVerify  = "verify"
)

// CrawlStep crawls report.Target and stores the fetched pages.
type CrawlStep struct {
	spider *crawler.Spider
}

// NewCrawlStep creates a crawl step using spider.
func NewCrawlStep(spider *crawler.Spider) *CrawlStep {
	return &CrawlStep{spider: spider}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return StepCrawl
}

// Do runs the crawl. Pages gathered before a cancellation are kept.
func (s *CrawlStep) Do(ctx context.Context, report *model.ScanReport) error {
	pages, err := s.spider.Crawl(ctx, report.Target)
	for _, page := range pages {
		report.AddPage(page)
	}
	return err
}

// ReadmeStep downloads the README of the repository named by report.Target.
type ReadmeStep struct {
	client *github.Client
	logger *slog.Logger
}

// NewReadmeStep creates a README step using client.
func NewReadmeStep(client *github.Client, logger *slog.Logger) *ReadmeStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadmeStep{client: client, logger: logger}
}

// Name returns the step name.
func (s *ReadmeStep) Name() string {
	return StepReadme
}

// Do fetches README.md. A repository without a README is not an error:
// a warning is logged and the report has no documents.
func (s *ReadmeStep) Do(ctx context.Context, report *model.ScanReport) error {
	repo, err := github.ParseRepoURL(report.Target)
	if err != nil {
		return err
	}

	doc, err := s.client.FetchReadme(ctx, repo)
	if err != nil {
		if errors.Is(err, github.ErrFileNotFound) && ctx.Err() == nil {
			s.logger.Warn("README not found", "repo", repo.String(), "error", err)
			return nil
		}
		return err
	}

	report.AddDocument(doc)
	return nil
}

// ExtractStep collects the links of every page and document in the report.
// Duplicates are kept here; DedupeStep removes them.
type ExtractStep struct {
	html     crawler.Extractor
	markdown crawler.Extractor
}

// ExtractStepOption configures an ExtractStep.
type ExtractStepOption func(*ExtractStep)

// WithHTMLExtractor replaces the extractor used for crawled pages.
func WithHTMLExtractor(e crawler.Extractor) ExtractStepOption {
	return func(s *ExtractStep) {
		s.html = e
	}
}

// WithMarkdownExtractor replaces the extractor used for documents.
func WithMarkdownExtractor(e crawler.Extractor) ExtractStepOption {
	return func(s *ExtractStep) {
		s.markdown = e
	}
}

// NewExtractStep creates an extract step with the goquery and goldmark
// extractors unless replaced by opts.
func NewExtractStep(opts ...ExtractStepOption) *ExtractStep {
	s := &ExtractStep{
		html:     extract.NewHTML(),
		markdown: extract.NewMarkdown(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return StepExtract
}

// Do fills report.Links and report.LinksFound.
func (s *ExtractStep) Do(_ context.Context, report *model.ScanReport) error {
	links := make([]string, 0)
	for _, page := range report.Pages {
		links = append(links, s.html.Extract(page.Content, page.URL)...)
	}
	for _, doc := range report.Documents {
		links = append(links, s.markdown.Extract(doc.Content, doc.URL)...)
	}
	report.Links = links
	report.LinksFound = len(links)
	return nil
}

// DedupeStep removes repeated links, keeping the first occurrence, and
// moves links matching an exclusion pattern to report.Skipped.
type DedupeStep struct {
	excludes []*regexp.Regexp
}

// NewDedupeStep creates a dedupe step. excludes may be empty.
func NewDedupeStep(excludes []*regexp.Regexp) *DedupeStep {
	return &DedupeStep{excludes: excludes}
}

// Name returns the step name.
func (s *DedupeStep) Name() string {
	return StepDedupe
}

// Do rewrites report.Links in first-seen order.
func (s *DedupeStep) Do(_ context.Context, report *model.ScanReport) error {
	seen := mapset.NewThreadUnsafeSet[string]()
	unique := make([]string, 0, len(report.Links))
	for _, link := range report.Links {
		if !seen.Add(link) {
			continue
		}
		if s.excluded(link) {
			report.Skipped = append(report.Skipped, link)
			continue
		}
		unique = append(unique, link)
	}
	report.Links = unique
	return nil
}

func (s *DedupeStep) excluded(link string) bool {
	for _, re := range s.excludes {
		if re.MatchString(link) {
			return true
		}
	}
	return false
}

// VerifyStep checks report.Links and stores the sorted results.
type VerifyStep struct {
	verifier *checker.Verifier
}

// NewVerifyStep creates a verify step using verifier.
func NewVerifyStep(verifier *checker.Verifier) *VerifyStep {
	return &VerifyStep{verifier: verifier}
}

// Name returns the step name.
func (s *VerifyStep) Name() string {
	return StepVerify
}

// Do verifies every link. Checks interrupted by cancellation are still
// classified, so the report always holds one result per link.
func (s *VerifyStep) Do(ctx context.Context, report *model.ScanReport) error {
	results := s.verifier.Verify(ctx, report.Links)
	report.SetResults(results)
	if ctx.Err() != nil {
		report.TimedOut = true
	}
	return nil
}

// NewSitePipeline builds crawl, extract, dedupe and verify steps for one
// website. extractor may be nil to use the default HTML extractor.
func NewSitePipeline(
	spider *crawler.Spider,
	extractor crawler.Extractor,
	verifier *checker.Verifier,
	excludes []*regexp.Regexp,
	opts ...Option,
) *Pipeline {
	var extractOpts []ExtractStepOption
	if extractor != nil {
		extractOpts = append(extractOpts, WithHTMLExtractor(extractor))
	}

	p := New(opts...)
	p.AddSteps(
		NewCrawlStep(spider),
		NewExtractStep(extractOpts...),
		NewDedupeStep(excludes),
		NewVerifyStep(verifier),
	)
	return p
}

// NewGitHubPipeline builds README, extract, dedupe and verify steps for one
// repository.
func NewGitHubPipeline(
	client *github.Client,
	verifier *checker.Verifier,
	excludes []*regexp.Regexp,
	opts ...Option,
) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewReadmeStep(client, p.logger),
		NewExtractStep(),
		NewDedupeStep(excludes),
		NewVerifyStep(verifier),
	)
	return p
}

// SiteKey returns the key under which a target's settings are looked up in
// the configuration file: the host for websites, "owner/repo" for repositories.
func SiteKey(mode model.ScanMode, target string) (string, error) {
	if mode == model.ModeGitHub {
		repo, err := github.ParseRepoURL(target)
		if err != nil {
			return "", err
		}
		return repo.String(), nil
	}
	return crawler.Hostname(target)
}
