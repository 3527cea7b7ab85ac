package matcher

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Method matches the request's HTTP method against a comma-separated
// allow-list, e.g. args{"methods": "GET,POST"}.
type Method struct {
	allowed map[string]bool
}

// NewMethod builds a Method predicate from a comma-separated list.
func NewMethod(methods string) (*Method, error) {
	if strings.TrimSpace(methods) == "" {
		return nil, fmt.Errorf("method predicate: methods must not be empty")
	}
	allowed := make(map[string]bool)
	for _, m := range strings.Split(methods, ",") {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		allowed[m] = true
	}
	return &Method{allowed: allowed}, nil
}

func (m *Method) Matches(r *http.Request) bool {
	return m.allowed[r.Method]
}

// Header matches a request header by exact value, presence, or regex.
// Args: "name" (required) plus one of "value", "present" ("true"/"false"),
// or "regex".
type Header struct {
	name    string
	exact   string
	present *bool
	regex   *regexp.Regexp
}

// NewHeader builds a Header predicate from args. Exactly one of
// value/present/regex should be set; value wins if more than one is.
func NewHeader(name string, args map[string]string) (*Header, error) {
	if name == "" {
		return nil, fmt.Errorf("header predicate: name must not be empty")
	}
	h := &Header{name: name}
	if v, ok := args["value"]; ok && v != "" {
		h.exact = v
		return h, nil
	}
	if p, ok := args["present"]; ok {
		b := strings.EqualFold(p, "true")
		h.present = &b
		return h, nil
	}
	if re, ok := args["regex"]; ok && re != "" {
		compiled, err := regexp.Compile(re)
		if err != nil {
			return nil, fmt.Errorf("header predicate %s: %w", name, err)
		}
		h.regex = compiled
		return h, nil
	}
	return nil, fmt.Errorf("header predicate %s: one of value/present/regex is required", name)
}

func (h *Header) Matches(r *http.Request) bool {
	if h.present != nil {
		_, has := r.Header[http.CanonicalHeaderKey(h.name)]
		return has == *h.present
	}
	val := r.Header.Get(h.name)
	if h.exact != "" {
		return val == h.exact
	}
	if h.regex != nil {
		return h.regex.MatchString(val)
	}
	return false
}

// Query matches a URL query parameter by exact value or presence.
// Args: "name" (required) plus one of "value" or "present".
type Query struct {
	name    string
	exact   string
	present *bool
}

// NewQuery builds a Query predicate from args.
func NewQuery(name string, args map[string]string) (*Query, error) {
	if name == "" {
		return nil, fmt.Errorf("query predicate: name must not be empty")
	}
	q := &Query{name: name}
	if v, ok := args["value"]; ok && v != "" {
		q.exact = v
		return q, nil
	}
	if p, ok := args["present"]; ok {
		b := strings.EqualFold(p, "true")
		q.present = &b
		return q, nil
	}
	return nil, fmt.Errorf("query predicate %s: one of value/present is required", name)
}

func (q *Query) Matches(r *http.Request) bool {
	values := r.URL.Query()
	if q.present != nil {
		return values.Has(q.name) == *q.present
	}
	return values.Get(q.name) == q.exact
}

// All combines predicates with AND semantics: a request matches only
// if every predicate matches.
type All struct {
	predicates []Predicate
}

// Predicate is the interface every matcher in this package implements.
type Predicate interface {
	Matches(r *http.Request) bool
}

// NewAll wraps predicates in an AND combinator.
func NewAll(predicates ...Predicate) *All {
	return &All{predicates: predicates}
}

func (a *All) Matches(r *http.Request) bool {
	for _, p := range a.predicates {
		if !p.Matches(r) {
			return false
		}
	}
	return true
}
