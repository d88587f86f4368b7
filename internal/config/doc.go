// Package config loads, normalizes, and validates the TOML configuration for
// the webinar2ebook daemon and CLI. Defaults live in defaults.go; normalize
// repairs what it can and Validate rejects what it cannot.
package config
