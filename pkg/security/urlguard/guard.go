// Package urlguard enforces navigation boundaries on browser sessions. Every
// URL a tool asks the engine to load is validated against a glob allowlist
// before any page load happens, so a compromised or confused client cannot
// point the automation at arbitrary hosts.
package urlguard

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Guard validates navigation targets against compiled allowlist patterns.
// An empty pattern set permits all http(s) URLs.
type Guard struct {
	patterns []glob.Glob
	raw      []string
}

// NewGuard compiles the allowlist patterns. Patterns match against the full
// URL string, e.g. "https://*.assessor.example.gov/*".
func NewGuard(patterns []string) (*Guard, error) {
	g := &Guard{raw: append([]string(nil), patterns...)}
	for _, pattern := range patterns {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid URL pattern %q: %w", pattern, err)
		}
		g.patterns = append(g.patterns, compiled)
	}
	return g, nil
}

// ValidateURL checks that the target is a well-formed http(s) URL permitted
// by the allowlist.
func (g *Guard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL scheme %q is not allowed (must be http or https)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL %q has no host", rawURL)
	}

	if len(g.patterns) == 0 {
		return nil
	}
	for _, pattern := range g.patterns {
		if pattern.Match(rawURL) {
			return nil
		}
	}
	return fmt.Errorf("URL %q is outside the allowed navigation patterns", rawURL)
}

// Patterns returns the configured allowlist patterns.
func (g *Guard) Patterns() []string {
	return append([]string(nil), g.raw...)
}
