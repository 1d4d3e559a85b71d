package gate

import (
	"path"
	"strings"
)

// Matcher decides which request paths the gate evaluates
type Matcher struct {
	ExcludedPrefixes []string
	ExcludedPaths    []string
	AssetExtensions  []string
}

func DefaultMatcher() *Matcher {
	return &Matcher{
		ExcludedPrefixes: []string{"/api", "/static", "/assets", "/identity", "/_next"},
		ExcludedPaths:    []string{"/metrics", "/favicon.ico", "/robots.txt", "/healthz"},
		AssetExtensions: []string{
			".css", ".js", ".map", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico",
			".webp", ".woff", ".woff2", ".ttf", ".txt", ".xml", ".json",
		},
	}
}

// Match reports whether the gate applies to p
func (m *Matcher) Match(p string) bool {
	for _, excluded := range m.ExcludedPaths {
		if p == excluded {
			return false
		}
	}
	for _, prefix := range m.ExcludedPrefixes {
		if hasPathPrefix(p, prefix) {
			return false
		}
	}
	ext := strings.ToLower(path.Ext(p))
	for _, assetExt := range m.AssetExtensions {
		if ext == assetExt {
			return false
		}
	}
	return true
}
