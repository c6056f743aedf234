package extract

import (
	"net/url"
	"strings"
)

// skippedPrefixes are href prefixes that never point at a checkable resource.
var skippedPrefixes = []string{"#", "mailto:", "tel:", "javascript:", "data:"}

// Resolve resolves href against base and reports whether the result is an
// absolute http or https URL worth checking.
//
// Fragment-only references and mailto:, tel:, javascript: and data: links are
// rejected, as is anything that does not parse. The fragment is dropped and
// the host lower-cased, so Resolve(base, Resolve(base, h)) == Resolve(base, h).
func Resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	lower := strings.ToLower(href)
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if !IsHTTP(abs) {
		return "", false
	}

	abs.Fragment = ""
	abs.RawFragment = ""
	abs.Host = strings.ToLower(abs.Host)
	return abs.String(), true
}

// IsHTTP reports whether u is an absolute http or https URL with a host.
func IsHTTP(u *url.URL) bool {
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
