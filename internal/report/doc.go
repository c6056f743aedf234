// Package report renders scan reports.
//
// Four formats are available, all implementing Writer:
//   - SimpleWriter: aligned text table for the terminal (rodaine/table)
//   - JSONWriter: structured output for tools and CI
//   - MarkdownWriter: a document for pull requests and wikis (nao1215/markdown)
//   - CSVWriter: one row per checked link for spreadsheets (gocsv)
//
// Results are rendered in the order stored in the report, which the
// pipeline sorts by URL, so output is stable across runs.
package report
