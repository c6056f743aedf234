// Package github fetches repository documents from GitHub.
//
// Files are downloaded from raw.githubusercontent.com, which needs no API
// token. The default branch is not known without the API, so "main" is tried
// first and "master" second.
package github
