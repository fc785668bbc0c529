package config

import (
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// HostAllowed reports whether rawURL is an http(s) URL whose host matches
// one of patterns (doublestar globs such as "*.x.com").
func HostAllowed(rawURL string, patterns []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, p := range patterns {
		if ok, err := doublestar.Match(strings.ToLower(p), host); err == nil && ok {
			return true
		}
	}
	return false
}
