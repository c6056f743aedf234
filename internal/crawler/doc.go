// Package crawler discovers the pages of a website.
//
// # Architecture
//
// The Spider walks a site breadth first from a start URL. It is strictly
// sequential: one page is fetched at a time and a politeness delay is
// observed between successful fetches. Only pages on exactly the same host
// as the start URL are followed; links to other hosts are left to the
// checker.
//
// # Components
//
//   - Spider: the crawl loop with its queue and visited set
//   - Fetcher: downloads one page (HTTPFetcher is the default)
//   - Extractor: finds links in a page (see package extract)
//
// # Depth
//
// The start page has depth 1. Links found on a page of depth d are queued at
// depth d+1, and only pages with depth < maxDepth are expanded. With
// maxDepth 1 only the start page is fetched.
//
// # Usage
//
//	spider := crawler.NewSpider(httpClient, crawler.WithMaxDepth(2))
//	pages, err := spider.Crawl(ctx, "https://example.com")
package crawler
