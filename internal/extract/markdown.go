package extract

import (
	"net/url"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Markdown extracts links from Markdown documents.
//
// Only absolute http(s) links are returned. Relative links point into the
// repository tree and are not checked.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a Markdown extractor using GitHub Flavored Markdown,
// so bare URLs are recognized the way GitHub renders them.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Extract returns the absolute http(s) links of content in document order.
// baseURL is accepted for interface compatibility and ignored.
func (m *Markdown) Extract(content, _ string) []string {
	source := []byte(content)
	doc := m.md.Parser().Parse(text.NewReader(source))

	links := make([]string, 0)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) { //nolint:errcheck // walker never fails
		if !entering {
			return ast.WalkContinue, nil
		}

		var dest string
		switch node := n.(type) {
		case *ast.Link:
			dest = string(node.Destination)
		case *ast.AutoLink:
			if node.AutoLinkType != ast.AutoLinkURL {
				return ast.WalkContinue, nil
			}
			dest = string(node.URL(source))
		default:
			return ast.WalkContinue, nil
		}

		if link, ok := absoluteHTTP(dest); ok {
			links = append(links, link)
		}
		return ast.WalkContinue, nil
	})

	return links
}

// absoluteHTTP accepts dest only if it is already an absolute http(s) URL.
func absoluteHTTP(dest string) (string, bool) {
	u, err := url.Parse(dest)
	if err != nil || !IsHTTP(u) {
		return "", false
	}
	return Resolve(nil, dest)
}
