// Package config provides configuration structures and utilities for linkguardian.
// It defines the options for crawling, link verification, transport and
// report generation, plus the optional per-site YAML configuration file.
package config
