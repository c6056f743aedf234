package main

import (
	"github.com/spf13/cobra"

	"github.com/nao1215/linkguardian/internal/config"
	"github.com/nao1215/linkguardian/internal/model"
)

// NewSiteCmd creates the site command.
func NewSiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site <url>...",
		Short: "Crawl a website and check its links",
		Long: `Site crawls each website breadth first, staying on the host of the start URL,
and checks every link found on the crawled pages, including links to other hosts.

Depth 1 fetches only the start page. Pages are fetched one at a time with a
short pause in between; links are checked concurrently.

Examples:
  # Check the links on a single page
  linkguardian site https://example.com

  # Crawl two levels deep and list every link
  linkguardian site -d 2 --all https://example.com

  # Include images, scripts and stylesheets
  linkguardian site --check-assets https://example.com

  # Write a Markdown report for a pull request comment
  linkguardian site -m -o report.md https://example.com

  # Check several sites, two at a time, and keep the results
  linkguardian site -b 2 --save https://example.com https://example.org`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckCmd(cmd, args, model.ModeSite, "")
		},
	}

	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum crawl depth (1 = start page only)")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Pause between two page fetches")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl per site (0 = unlimited)")
	cmd.Flags().Bool("check-assets", false,
		"Also check images, scripts and stylesheets")
	addCheckFlags(cmd)

	return cmd
}
