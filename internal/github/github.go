package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/nao1215/linkguardian/internal/model"
)

// DefaultRawBaseURL serves raw repository files.
const DefaultRawBaseURL = "https://raw.githubusercontent.com"

// maxFileSize caps a downloaded file.
const maxFileSize = 5 * 1024 * 1024

var (
	// ErrNotGitHubURL is returned for URLs that do not point at github.com.
	ErrNotGitHubURL = errors.New("not a GitHub repository URL")

	// ErrFileNotFound is returned when a file exists on none of the tried branches.
	ErrFileNotFound = errors.New("file not found on any branch")
)

// repoURLPattern extracts owner and name from a repository URL.
// The scheme and "www." are optional; a ".git" suffix and any trailing path
// are ignored.
var repoURLPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.)?github\.com/([^/\s]+)/([^/?#\s]+?)(?:\.git)?(?:[/?#].*)?$`)

// DefaultBranches are tried in order when fetching a file.
var DefaultBranches = []string{"main", "master"}

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string
	Name  string
}

// String returns "owner/name".
func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepoURL extracts the repository from a URL such as
// "https://github.com/owner/repo", "github.com/owner/repo.git" or
// "https://github.com/owner/repo/tree/main/docs".
func ParseRepoURL(raw string) (Repo, error) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Repo{}, fmt.Errorf("%w: %s", ErrNotGitHubURL, raw)
	}
	return Repo{Owner: m[1], Name: m[2]}, nil
}

// Client downloads raw repository files.
type Client struct {
	httpClient *http.Client
	rawBaseURL string
	branches   []string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRawBaseURL overrides the raw content host. Used by tests.
func WithRawBaseURL(base string) Option {
	return func(c *Client) {
		c.rawBaseURL = strings.TrimRight(base, "/")
	}
}

// WithBranches overrides the branches to try.
func WithBranches(branches ...string) Option {
	return func(c *Client) {
		c.branches = branches
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client that downloads through httpClient.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		rawBaseURL: DefaultRawBaseURL,
		branches:   DefaultBranches,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchReadme downloads README.md from the repository root.
func (c *Client) FetchReadme(ctx context.Context, repo Repo) (*model.Document, error) {
	return c.FetchFile(ctx, repo, "README.md")
}

// FetchFile downloads path from the first branch that has it.
func (c *Client) FetchFile(ctx context.Context, repo Repo, path string) (*model.Document, error) {
	var errs []error
	for _, branch := range c.branches {
		fileURL := fmt.Sprintf("%s/%s/%s/%s/%s", c.rawBaseURL, repo.Owner, repo.Name, branch, strings.TrimLeft(path, "/"))

		content, err := c.get(ctx, fileURL)
		if err != nil {
			c.logger.Debug("file not available", slog.String("url", fileURL), slog.String("error", err.Error()))
			errs = append(errs, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		return &model.Document{Name: path, URL: fileURL, Content: content}, nil
	}

	return nil, fmt.Errorf("%w: %s in %s: %w", ErrFileNotFound, path, repo, errors.Join(errs...))
}

func (c *Client) get(ctx context.Context, fileURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to fetch %s: HTTP %d", fileURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", fileURL, err)
	}
	return string(body), nil
}
