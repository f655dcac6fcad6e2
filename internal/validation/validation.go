// Package validation holds input checks shared by the CLI and the configuration.
package validation

import (
	"fmt"
	"net/url"
)

// IsValidOutputFormat checks that format is one the CLI can render.
func IsValidOutputFormat(format string) error {
	switch format {
	case "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s. Supported formats are 'json', 'yaml'", format)
	}
}

// IsValidBaseURL checks that raw is an absolute http(s) URL.
func IsValidBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %s: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https: %s", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %s", raw)
	}
	return nil
}

// IsValidReturnURL accepts an empty value or an absolute http(s) URL.
func IsValidReturnURL(raw string) error {
	if raw == "" {
		return nil
	}
	return IsValidBaseURL(raw)
}

// IsValidDelimiter checks that a CSV delimiter is exactly one character.
func IsValidDelimiter(delimiter string) error {
	if len([]rune(delimiter)) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", delimiter)
	}
	return nil
}
