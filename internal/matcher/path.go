// Package matcher implements route.Predicate matchers and the registry
// that turns a closed set of predicate names into instances.
package matcher

import (
	"fmt"
	"net/http"

	"github.com/bmatcuk/doublestar/v4"
)

// Path matches the request path against a glob pattern supporting `*`
// (single path segment) and `**` (any number of segments), anchored to
// the full path.
type Path struct {
	pattern string
}

// NewPath compiles a path pattern, failing fast on invalid glob syntax
// so a bad route definition is rejected at compile time, not on the
// first request that happens to hit it.
func NewPath(pattern string) (*Path, error) {
	if pattern == "" {
		return nil, fmt.Errorf("path predicate: pattern must not be empty")
	}
	trimmed := trimLeadingSlash(pattern)
	if !doublestar.ValidatePattern(trimmed) {
		return nil, fmt.Errorf("path predicate: invalid pattern %q", pattern)
	}
	return &Path{pattern: trimmed}, nil
}

// Matches reports whether r.URL.Path satisfies the pattern.
func (p *Path) Matches(r *http.Request) bool {
	ok, err := doublestar.Match(p.pattern, trimLeadingSlash(r.URL.Path))
	return err == nil && ok
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}
