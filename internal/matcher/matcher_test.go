package matcher

import (
	"net/http/httptest"
	"testing"
)

func TestPathGlob(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"inventory/**", "/inventory/1", true},
		{"inventory/**", "/inventory/1/detail", true},
		{"inventory/*", "/inventory/1/detail", false},
		{"inventory/*", "/inventory/1", true},
		{"orders", "/orders", true},
		{"orders", "/orders/1", false},
	}
	for _, c := range cases {
		p, err := NewPath(c.pattern)
		if err != nil {
			t.Fatalf("NewPath(%q): %v", c.pattern, err)
		}
		req := httptest.NewRequest("GET", c.path, nil)
		if got := p.Matches(req); got != c.want {
			t.Errorf("pattern %q path %q: got %v want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestMethodAllowList(t *testing.T) {
	m, err := NewMethod("GET, POST")
	if err != nil {
		t.Fatal(err)
	}
	get := httptest.NewRequest("GET", "/x", nil)
	del := httptest.NewRequest("DELETE", "/x", nil)
	if !m.Matches(get) {
		t.Error("expected GET to match")
	}
	if m.Matches(del) {
		t.Error("expected DELETE not to match")
	}
}

func TestHeaderExactAndPresence(t *testing.T) {
	exact, err := NewHeader("X-Tenant", map[string]string{"value": "acme"})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Tenant", "acme")
	if !exact.Matches(req) {
		t.Error("expected exact header match")
	}

	present, err := NewHeader("X-Debug", map[string]string{"present": "false"})
	if err != nil {
		t.Fatal(err)
	}
	if !present.Matches(req) {
		t.Error("expected absent header to satisfy present=false")
	}
}

func TestQueryPresence(t *testing.T) {
	q, err := NewQuery("debug", map[string]string{"present": "true"})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("GET", "/x?debug=1", nil)
	if !q.Matches(req) {
		t.Error("expected debug query param to satisfy present=true")
	}
}

func TestBuildUnknownPredicateErrors(t *testing.T) {
	if _, err := Build("Bogus", nil); err == nil {
		t.Fatal("expected error for unknown predicate name")
	}
}

func TestAllIsConjunction(t *testing.T) {
	path, _ := NewPath("inventory/**")
	method, _ := NewMethod("GET")
	all := NewAll(path, method)

	match := httptest.NewRequest("GET", "/inventory/1", nil)
	noMatch := httptest.NewRequest("POST", "/inventory/1", nil)

	if !all.Matches(match) {
		t.Error("expected GET /inventory/1 to match")
	}
	if all.Matches(noMatch) {
		t.Error("expected POST /inventory/1 not to match")
	}
}
