package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".linkguardian"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads and parses a .linkguardian file.
// A missing file yields ErrConfigNotFound; whether that matters depends on
// whether the user named the file explicitly. Every excludeLinks pattern is
// compiled once here so a typo is reported before any request is sent.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	if _, err := cf.Defaults.CompileExcludes(); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	for key, site := range cf.Sites {
		if _, err := site.CompileExcludes(); err != nil {
			return nil, fmt.Errorf("site %s: %w", key, err)
		}
	}
	return &cf, nil
}

// FindConfigFile returns the configuration file to use, or "" if none exists.
// An explicit path wins. Otherwise .linkguardian is looked up in the current
// directory, then the home directory, then the XDG config directory.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
