// Package main provides the entry point for the linkguardian CLI.
//
// linkguardian crawls a website, or reads a GitHub repository README, and
// checks every link it finds.
//
// Usage:
//
//	linkguardian site https://example.com
//	linkguardian github https://github.com/owner/repo
//
// The exit status is 0 when every link works, 1 when at least one link is
// broken and 2 on any other error.
package main

import "os"

func main() {
	os.Exit(Execute())
}
