// Package extract finds hyperlinks in fetched content.
//
// Two extractors are provided, both satisfying the crawler's Extractor
// interface:
//
//   - HTML parses pages with goquery and resolves a[href] (and optionally
//     asset references) against the page URL, honoring <base href>
//   - Markdown walks a goldmark AST and keeps absolute http(s) links,
//     including autolinks and bare URLs rendered by GitHub
//
// Resolve is the single place that decides whether an href is checkable.
package extract
