package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaxContentSize is the largest page body kept in memory.
const MaxContentSize = 5 * 1024 * 1024 // 5 MB

// Page is a page fetched by the crawler.
// The crawler emits pages in breadth-first order; Depth is 1 for the start page.
type Page struct {
	// URL is the URL the page was fetched from.
	URL string `json:"url"`

	// Depth is the distance from the start page, counting the start page as 1.
	Depth int `json:"depth"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the Content-Type header of the response.
	ContentType string `json:"content_type,omitempty"`

	// Content is the body decoded to UTF-8.
	Content string `json:"-"`

	// Hash is the SHA-256 of Content. Used by the history to spot changed pages.
	Hash string `json:"hash,omitempty"`
}

// ComputeHash fills Hash from Content.
func (p *Page) ComputeHash() {
	sum := sha256.Sum256([]byte(p.Content))
	p.Hash = hex.EncodeToString(sum[:])
}

// TruncateContent trims Content to MaxContentSize bytes.
func (p *Page) TruncateContent() {
	if len(p.Content) > MaxContentSize {
		p.Content = p.Content[:MaxContentSize]
	}
}

// Document is a file fetched from a code host, such as a repository README.
type Document struct {
	// Name is the file name within the repository (e.g. "README.md").
	Name string `json:"name"`

	// URL is where the raw content was downloaded from.
	URL string `json:"url"`

	// Content is the raw file content.
	Content string `json:"-"`
}
