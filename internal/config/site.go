package config

import (
	"fmt"
	"maps"
	"regexp"
	"time"
)

// SiteConfig holds the settings of one target.
//
// For site mode the key in the configuration file is the host name of the
// start URL ("example.com"); for github mode it is "owner/repo".
type SiteConfig struct {
	// Cookie is sent with every request to the site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the crawl depth. Zero keeps the global value.
	Depth int `yaml:"depth,omitempty"`

	// Delay overrides the crawl delay, e.g. "500ms". Zero keeps the global value.
	Delay time.Duration `yaml:"delay,omitempty"`

	// IgnorePatterns are URL path globs never crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict crawling to matching URL paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// ExcludeLinks are regular expressions; matching links are not verified.
	ExcludeLinks []string `yaml:"excludeLinks,omitempty"`
}

// File is the structure of the .linkguardian configuration file.
type File struct {
	// Sites maps a host name or "owner/repo" to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the settings for key merged over the defaults.
// Headers are merged; every other non-zero site value replaces the default.
// Exclusion patterns from both levels apply.
func (cf *File) GetSiteConfig(key string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)
	result.ExcludeLinks = append([]string(nil), cf.Defaults.ExcludeLinks...)

	siteConfig, ok := cf.Sites[key]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.Delay != 0 {
		result.Delay = siteConfig.Delay
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}
	result.ExcludeLinks = append(result.ExcludeLinks, siteConfig.ExcludeLinks...)

	return result
}

// CompileExcludes compiles ExcludeLinks.
func (s SiteConfig) CompileExcludes() ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(s.ExcludeLinks))
	for _, p := range s.ExcludeLinks {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidExcludePattern, p, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}
