// Package pathmap addresses locations inside a structured message with
// dotted/indexed path expressions.
//
// Syntax:
//
//	user.id            map key "user", then map key "id"
//	items[0].sku       map key "items", sequence index 0, map key "sku"
//	[2]                sequence index 2 of the root
//	$.user.id          a leading "$" or "$." is accepted and ignored
//	"" or "$"          the root itself
//
// Keys may contain any character except '.', '[' and ']'.
//
// Resolve (extraction) never fails: anything that does not match the message
// shape is reported as absent. Inject (production) always succeeds: it creates
// or replaces containers along the path as needed.
package pathmap

import (
	"fmt"
	"strconv"
	"strings"
)

// maxIndex bounds sequence indices so a typo in a mapping file cannot make
// Inject allocate an enormous sequence.
const maxIndex = 1 << 20

// Step is one hop of a path: either a map key or a sequence index.
type Step struct {
	Key     string
	Index   int
	IsIndex bool
}

// String renders the step in path syntax.
func (s Step) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Path is a parsed path expression. The zero value addresses the root.
type Path struct {
	raw   string
	steps []Step
}

// String returns the expression the path was parsed from.
func (p Path) String() string { return p.raw }

// Steps returns the parsed steps. The slice must not be modified.
func (p Path) Steps() []Step { return p.steps }

// IsRoot reports whether the path addresses the root value.
func (p Path) IsRoot() bool { return len(p.steps) == 0 }

// SyntaxError describes why a path expression could not be parsed.
type SyntaxError struct {
	Path   string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("path %q: %s at offset %d", e.Path, e.Msg, e.Offset)
}

// Parse parses a path expression.
func Parse(expr string) (Path, error) {
	p := Path{raw: expr}

	s := strings.TrimSpace(expr)
	base := len(expr) - len(strings.TrimLeft(expr, " \t"))
	switch {
	case s == "" || s == "$":
		return p, nil
	case strings.HasPrefix(s, "$."):
		s, base = s[2:], base+2
	case strings.HasPrefix(s, "$["):
		s, base = s[1:], base+1
	}

	fail := func(i int, msg string) (Path, error) {
		return Path{}, &SyntaxError{Path: expr, Offset: base + i, Msg: msg}
	}

	if s == "" {
		return fail(0, "empty key")
	}

	i := 0
	expectKey := s[0] != '['
	for i < len(s) {
		if expectKey {
			start := i
			for i < len(s) && s[i] != '.' && s[i] != '[' && s[i] != ']' {
				i++
			}
			if i == start {
				return fail(i, "empty key")
			}
			p.steps = append(p.steps, Step{Key: s[start:i]})
			expectKey = false
			continue
		}

		switch s[i] {
		case '.':
			i++
			if i == len(s) {
				return fail(i, "empty key")
			}
			expectKey = true
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return fail(i, "unclosed '['")
			}
			lit := s[i+1 : i+end]
			n, err := strconv.Atoi(lit)
			if err != nil || n < 0 || strings.HasPrefix(lit, "+") {
				return fail(i+1, fmt.Sprintf("invalid index %q", lit))
			}
			if n > maxIndex {
				return fail(i+1, fmt.Sprintf("index %d exceeds limit %d", n, maxIndex))
			}
			p.steps = append(p.steps, Step{Index: n, IsIndex: true})
			i += end + 1
		default:
			return fail(i, fmt.Sprintf("unexpected %q", s[i]))
		}
	}
	return p, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level literals.
func MustParse(expr string) Path {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}
