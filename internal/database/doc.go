// Package database stores scan history in SQLite.
//
// Every saved scan keeps the full report as JSON plus one row per checked
// link, so the history command can list past scans, reload them, and tell
// which links broke or were fixed between two runs. The history is never
// consulted to skip checks.
//
// modernc.org/sqlite is used so the binary stays CGO-free.
package database
