package route

import (
	"net/http"
	"sort"
)

// CompiledRoute is the immutable, request-path representation of a
// Definition: its matcher and its fully ordered filter chain have
// already been built, so resolving and serving a request never
// allocates a matcher or re-parses a filter name.
type CompiledRoute struct {
	ID          string
	Order       int
	Definition  *Definition
	ContentHash string
	Match       Matcher
	Handler     http.Handler
}

// Matches reports whether r satisfies this route's predicates.
func (c *CompiledRoute) Matches(r *http.Request) bool {
	return c.Match.Matches(r)
}

// Snapshot is an immutable, ordered view of all enabled compiled
// routes at one point in time. A *Snapshot is published via an
// atomic.Pointer and read without locking on the request path; it is
// replaced wholesale, never mutated, whenever the route store changes.
type Snapshot struct {
	Routes []*CompiledRoute
}

// NewSnapshot builds a Snapshot from compiled routes, sorting them
// ascending by (order, id) exactly as Definition ordering requires.
func NewSnapshot(routes []*CompiledRoute) *Snapshot {
	sorted := make([]*CompiledRoute, len(routes))
	copy(sorted, routes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].ID < sorted[j].ID
	})
	return &Snapshot{Routes: sorted}
}

// Resolve returns the first route in ascending (order, id) whose
// predicates match r, or nil if none do.
func (s *Snapshot) Resolve(r *http.Request) *CompiledRoute {
	if s == nil {
		return nil
	}
	for _, cr := range s.Routes {
		if cr.Matches(r) {
			return cr
		}
	}
	return nil
}
