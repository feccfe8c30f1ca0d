package config

import "github.com/bmatcuk/doublestar/v4"

// PathMatcher decides whether a relative, forward-slash path should be
// walked, given the configured include/exclude glob lists. Exclude always
// wins over include; an empty include list means "include everything not
// excluded".
type PathMatcher struct {
	include []string
	exclude []string
}

// NewPathMatcher builds a matcher from the include/exclude patterns in an
// Ingest config.
func NewPathMatcher(include, exclude []string) *PathMatcher {
	return &PathMatcher{include: include, exclude: exclude}
}

// Allowed reports whether path passes the include/exclude filters.
func (m *PathMatcher) Allowed(path string) bool {
	for _, pat := range m.exclude {
		if ok, _ := doublestar.Match(pat, path); ok {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, pat := range m.include {
		if ok, _ := doublestar.Match(pat, path); ok {
			return true
		}
	}
	return false
}
