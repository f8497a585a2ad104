package cypher

import (
	"maps"
	"strings"

	"github.com/syssam/velograph/predicate"
)

// Binding pairs a statement variable with the filter applied to its
// properties.
type Binding struct {
	Var    string
	Filter predicate.Filter
}

// Bind returns a Binding of f to the variable v.
func Bind(v string, f predicate.Filter) Binding {
	return Binding{Var: v, Filter: f}
}

// Where compiles the bindings into a WHERE clause. Every leaf predicate
// takes its parameter name from gen (Between takes two), so fragments that
// share a statement must share a generator.
//
// Combinators without operands compile to the Cypher literals predicate
// evaluation gives them: an empty And or Or is true, and a Not without
// exactly one operand is null. Where returns an empty clause and nil
// parameters when there is nothing to filter on, including when every
// condition is true.
func Where(gen *Generator, bindings ...Binding) (string, map[string]any) {
	conds, params := Conditions(gen, bindings...)
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), params
}

// Conditions is like Where, but returns the individual conditions so they
// can be combined with others.
func Conditions(gen *Generator, bindings ...Binding) ([]string, map[string]any) {
	c := &compiler{gen: gen, params: make(map[string]any)}
	var conds []string
	for _, b := range bindings {
		for _, k := range b.Filter.Keys() {
			if s := c.compile(Prop(b.Var, k), predicate.Of(b.Filter[k])); s != litTrue {
				conds = append(conds, s)
			}
		}
	}
	if len(conds) == 0 {
		return nil, nil
	}
	if len(c.params) == 0 {
		return conds, nil
	}
	return conds, c.params
}

// Merge copies the parameters of src into dst, allocating dst if needed.
func Merge(dst map[string]any, src ...map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for _, m := range src {
		maps.Copy(dst, m)
	}
	return dst
}

var tokens = [...]string{
	predicate.OpEQ:        "=",
	predicate.OpNEQ:       "<>",
	predicate.OpGT:        ">",
	predicate.OpGTE:       ">=",
	predicate.OpLT:        "<",
	predicate.OpLTE:       "<=",
	predicate.OpIn:        "IN",
	predicate.OpHasPrefix: "STARTS WITH",
	predicate.OpHasSuffix: "ENDS WITH",
	predicate.OpContains:  "CONTAINS",
	predicate.OpRegex:     "=~",
}

const (
	litTrue  = "true"
	litFalse = "false"
	litNull  = "null"
)

func literal(s string) bool {
	return s == litTrue || s == litFalse || s == litNull
}

type compiler struct {
	gen    *Generator
	params map[string]any
}

func (c *compiler) bind(v any) string {
	name := c.gen.Next()
	c.params[name] = v
	return Param(name)
}

func (c *compiler) compile(subject string, p predicate.P) string {
	switch p.Op {
	case predicate.OpEQ, predicate.OpNEQ, predicate.OpGT, predicate.OpGTE, predicate.OpLT, predicate.OpLTE,
		predicate.OpHasPrefix, predicate.OpHasSuffix, predicate.OpContains, predicate.OpRegex:
		return subject + " " + tokens[p.Op] + " " + c.bind(p.Value)
	case predicate.OpIn:
		v := p.Value
		if v == nil {
			v = []any{}
		}
		return subject + " IN " + c.bind(v)
	case predicate.OpEqualFold:
		return "toLower(" + subject + ") = toLower(" + c.bind(p.Value) + ")"
	case predicate.OpBetween:
		lo, hi := p.Range()
		return c.bind(lo) + " <= " + subject + " <= " + c.bind(hi)
	case predicate.OpNot:
		if len(p.Args) != 1 {
			return litNull
		}
		switch s := c.compile(subject, p.Args[0]); s {
		case litTrue:
			return litFalse
		case litFalse:
			return litTrue
		case litNull:
			return litNull
		default:
			return "NOT (" + s + ")"
		}
	case predicate.OpAnd, predicate.OpOr:
		// An empty Or matches like an empty And.
		if len(p.Args) == 0 {
			return litTrue
		}
		sep, neutral := " AND ", litTrue
		if p.Op == predicate.OpOr {
			sep, neutral = " OR ", litFalse
		}
		parts := make([]string, 0, len(p.Args))
		for _, a := range p.Args {
			if s := c.compile(subject, a); s != neutral {
				parts = append(parts, s)
			}
		}
		switch {
		case len(parts) == 0:
			return neutral
		case len(parts) == 1 && literal(parts[0]):
			return parts[0]
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
	return litNull
}
