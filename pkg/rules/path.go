package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oarkflow/dipper"
)

// step is one movement through the transaction tree: a map field, a
// concrete list index, or the [*] wildcard.
type step struct {
	field    string
	index    int
	isIndex  bool
	wildcard bool
}

// parseSteps splits a field path ("claims[*].services[0].charge") into
// traversal steps.
func parseSteps(path string) ([]step, error) {
	var steps []step
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, fmt.Errorf("empty path segment in %q", path)
		}
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				steps = append(steps, step{field: part})
				break
			}
			if open > 0 {
				steps = append(steps, step{field: part[:open]})
			}
			close := strings.IndexByte(part, ']')
			if close < open {
				return nil, fmt.Errorf("unbalanced bracket in %q", path)
			}
			idx := part[open+1 : close]
			if idx == "*" {
				steps = append(steps, step{wildcard: true})
			} else {
				n, err := strconv.Atoi(idx)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("invalid index %q in %q", idx, path)
				}
				steps = append(steps, step{index: n, isIndex: true})
			}
			part = part[close+1:]
			if part == "" {
				break
			}
		}
	}
	return steps, nil
}

// match is one concrete binding of a (possibly wildcarded) field path.
type match struct {
	path  string
	value any
}

// resolve returns the value at a concrete path. Plain dotted paths take
// the dipper fast path; indexed paths walk the tree directly. Missing
// intermediate nodes resolve to absent.
func resolve(target map[string]any, path string) (any, bool) {
	if !strings.ContainsAny(path, "[]") {
		v, err := dipper.Get(target, path)
		if err != nil {
			return nil, false
		}
		return v, true
	}
	matches := expand(target, path)
	if len(matches) != 1 {
		return nil, false
	}
	return matches[0].value, true
}

// expand enumerates every concrete path matching the given field path.
// Wildcards fan out over list elements in ascending index order; a path
// without wildcards yields at most one match.
func expand(target map[string]any, path string) []match {
	steps, err := parseSteps(path)
	if err != nil {
		return nil
	}
	var out []match
	walk(target, steps, "", &out)
	return out
}

func walk(node any, steps []step, prefix string, out *[]match) {
	if len(steps) == 0 {
		*out = append(*out, match{path: prefix, value: node})
		return
	}
	s := steps[0]
	switch {
	case s.wildcard:
		list, ok := node.([]any)
		if !ok {
			return
		}
		for i, item := range list {
			walk(item, steps[1:], fmt.Sprintf("%s[%d]", prefix, i), out)
		}
	case s.isIndex:
		list, ok := node.([]any)
		if !ok || s.index >= len(list) {
			return
		}
		walk(list[s.index], steps[1:], fmt.Sprintf("%s[%d]", prefix, s.index), out)
	default:
		m, ok := node.(map[string]any)
		if !ok {
			return
		}
		child, ok := m[s.field]
		if !ok {
			return
		}
		next := s.field
		if prefix != "" {
			next = prefix + "." + s.field
		}
		walk(child, steps[1:], next, out)
	}
}

// sumPaths adds up every numeric value reachable from the given paths.
func sumPaths(target map[string]any, paths []string) float64 {
	var total float64
	for _, p := range paths {
		for _, m := range expand(target, p) {
			if f, ok := toNumber(m.value); ok {
				total += f
			}
		}
	}
	return total
}
