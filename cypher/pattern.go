// Package cypher compiles filters, property assignments and relationship
// patterns into parameterized Cypher fragments.
//
// Structure (labels, relationship types, variables and property names) is
// rendered into the statement text; values are always passed as parameters.
package cypher

import (
	"regexp"
	"strings"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Quote renders name as a Cypher symbolic name, escaping it with backticks
// when it is not a plain identifier.
func Quote(name string) string {
	if identRe.MatchString(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Prop renders the property access variable.key.
func Prop(variable, key string) string {
	return Quote(variable) + "." + Quote(key)
}

// Param renders a parameter reference.
func Param(name string) string {
	return "$" + Quote(name)
}

// Direction is the direction of a relationship pattern, seen from its
// source node.
type Direction uint8

// Relationship directions.
const (
	Out Direction = iota + 1
	In
	Both
)

// String returns the direction name used in declarations.
func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case In:
		return "in"
	case Both:
		return "any"
	}
	return "auto"
}

// Node renders a node pattern such as (a:Person). Extra is placed verbatim
// inside the parentheses after the label, e.g. a property map.
func Node(variable, label, extra string) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(Quote(variable))
	if label != "" {
		b.WriteByte(':')
		b.WriteString(Quote(label))
	}
	if extra != "" {
		b.WriteByte(' ')
		b.WriteString(extra)
	}
	b.WriteByte(')')
	return b.String()
}

// Edge renders a relationship pattern: -[r:LABEL]-> for Out, <-[r:LABEL]-
// for In and -[r:LABEL]- for Both. The variable may be empty.
func Edge(variable, label string, dir Direction, extra string) string {
	var b strings.Builder
	if dir == In {
		b.WriteByte('<')
	}
	b.WriteString("-[")
	if variable != "" {
		b.WriteString(Quote(variable))
	}
	b.WriteByte(':')
	b.WriteString(Quote(label))
	if extra != "" {
		b.WriteByte(' ')
		b.WriteString(extra)
	}
	b.WriteString("]-")
	if dir == Out {
		b.WriteByte('>')
	}
	return b.String()
}

// PropertyMap renders {k1: $param.k1, k2: $param.k2} for the given keys,
// reading every value from a single map parameter. It returns an empty
// string when there are no keys.
func PropertyMap(param string, keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = Quote(k) + ": " + Param(param) + "." + Quote(k)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Statement joins non-empty clauses with newlines.
func Statement(clauses ...string) string {
	parts := clauses[:0:0]
	for _, c := range clauses {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n")
}
