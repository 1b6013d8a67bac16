package facts

import (
	"fmt"
	"strings"
)

// Path is a parsed dotted attribute path. Parse once with ParsePath and reuse
// it for every lookup.
type Path []string

// ParsePath splits a dotted attribute path into segments.
// Empty paths and empty segments ("a..b", ".a", "a.") are rejected.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("empty attribute path")
	}
	parts := strings.Split(s, ".")
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("attribute path %q has an empty segment at position %d", s, i)
		}
	}
	return Path(parts), nil
}

// MustParsePath is like ParsePath but panics on invalid input.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String joins the segments back into dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// resolve walks fields along p and returns the value found, or the absent
// value when a segment is missing or a non-object is traversed.
func (p Path) resolve(fields map[string]Value) Value {
	current := fields
	for i, segment := range p {
		v, ok := current[segment]
		if !ok {
			return Absent()
		}
		if i == len(p)-1 {
			return v
		}
		next, ok := v.AsObject()
		if !ok {
			return Absent()
		}
		current = next
	}
	return Absent()
}
