package matcher

import "fmt"

// Build compiles one route.Predicate spec into a Predicate instance.
// The set of recognized names is closed: an unrecognized name is a
// config error raised when the route is compiled, not a silent no-op
// discovered later on the request path.
func Build(name string, args map[string]string) (Predicate, error) {
	switch name {
	case "Path":
		return NewPath(args["pattern"])
	case "Method":
		return NewMethod(args["methods"])
	case "Header":
		return NewHeader(args["name"], args)
	case "Query":
		return NewQuery(args["name"], args)
	default:
		return nil, fmt.Errorf("matcher: unknown predicate %q", name)
	}
}

// BuildAll compiles a list of (name, args) pairs into a single AND
// combinator. names and argsList must be the same length.
func BuildAll(names []string, argsList []map[string]string) (Predicate, error) {
	predicates := make([]Predicate, 0, len(names))
	for i, name := range names {
		p, err := Build(name, argsList[i])
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, p)
	}
	return NewAll(predicates...), nil
}
