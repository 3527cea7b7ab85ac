// Package route holds the admin-facing route definition and the
// derived, immutable CompiledRoute/Snapshot types that the
// resolver reads on the request path.
package route

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// Predicate is one ordered match condition on a route definition, e.g.
// {Name: "Path", Args: {"pattern": "/inventory/**"}}.
type Predicate struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
}

// Filter is one ordered named filter with its configuration arguments.
type Filter struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
}

// Definition is the admin-facing record for one route.
type Definition struct {
	ID         string            `json:"id"`
	URI        string            `json:"uri"`
	Predicates []Predicate       `json:"predicates"`
	Filters    []Filter          `json:"filters"`
	Order      int               `json:"order"`
	Metadata   map[string]string `json:"metadata"`
	Enabled    bool              `json:"enabled"`
}

// Validate enforces the structural invariants a route definition must
// satisfy before it can be compiled.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("route: id must not be empty")
	}
	if d.URI == "" {
		return fmt.Errorf("route %s: uri must not be empty", d.ID)
	}
	scheme, _, ok := splitScheme(d.URI)
	if !ok || (scheme != "http" && scheme != "https") {
		return fmt.Errorf("route %s: uri scheme must be http or https", d.ID)
	}
	if len(d.Predicates) == 0 {
		return fmt.Errorf("route %s: at least one predicate is required", d.ID)
	}
	return nil
}

func splitScheme(uri string) (scheme, rest string, ok bool) {
	for i := 0; i < len(uri); i++ {
		switch {
		case uri[i] == ':':
			if i == 0 {
				return "", uri, false
			}
			if i+2 <= len(uri) && uri[i+1] == '/' {
				return uri[:i], uri[i+1:], true
			}
			return "", uri, false
		case (uri[i] >= 'a' && uri[i] <= 'z') || (uri[i] >= 'A' && uri[i] <= 'Z') || (i > 0 && uri[i] >= '0' && uri[i] <= '9'):
			continue
		default:
			return "", uri, false
		}
	}
	return "", uri, false
}

// ContentHash is a stable hash of the definition used as half of a
// CompiledRoute's identity, so any change to a definition is detectable
// without comparing full structures.
func (d *Definition) ContentHash() string {
	// json.Marshal on maps sorts keys, so this is deterministic.
	b, _ := json.Marshal(d)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}

// Matcher decides whether a request satisfies a compiled route's
// predicates. Implementations must be safe for concurrent use.
type Matcher interface {
	Matches(r *http.Request) bool
}

// SortDefinitions orders definitions the way a RouteSnapshot is ordered:
// ascending order, then lexicographic id.
func SortDefinitions(defs []*Definition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Order != defs[j].Order {
			return defs[i].Order < defs[j].Order
		}
		return defs[i].ID < defs[j].ID
	})
}
