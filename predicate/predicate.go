// Package predicate defines the filter language used to select nodes and
// relationships.
//
// A Filter maps property names to either a literal value (implicit equality)
// or a P built with one of the constructors below:
//
//	predicate.Filter{
//	    "title": predicate.HasPrefix("B"),
//	    "done":  true,
//	    "age":   predicate.Or(predicate.LT(18), predicate.Between(65, 120)),
//	}
//
// Filters are compiled into Cypher by the cypher package, and can also be
// evaluated in memory against a property map with Filter.Match.
package predicate

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Op is a predicate operator.
type Op uint8

// Predicate operators.
const (
	OpEQ Op = iota + 1
	OpNEQ
	OpGT
	OpGTE
	OpLT
	OpLTE
	OpIn
	OpHasPrefix
	OpHasSuffix
	OpContains
	OpRegex
	OpEqualFold
	OpBetween
	OpNot
	OpAnd
	OpOr
)

var opNames = [...]string{
	OpEQ:        "==",
	OpNEQ:       "!=",
	OpGT:        ">",
	OpGTE:       ">=",
	OpLT:        "<",
	OpLTE:       "<=",
	OpIn:        "in",
	OpHasPrefix: "has_prefix",
	OpHasSuffix: "has_suffix",
	OpContains:  "contains",
	OpRegex:     "regex",
	OpEqualFold: "equal_fold",
	OpBetween:   "between",
	OpNot:       "!",
	OpAnd:       "&&",
	OpOr:        "||",
}

// String returns the textual representation of the operator.
func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// Leaf reports whether the operator compares the property against a value,
// as opposed to combining other predicates.
func (o Op) Leaf() bool {
	return o >= OpEQ && o <= OpBetween
}

// P is a predicate over a single property value.
type P struct {
	Op Op
	// Value is the operand of leaf operators. For OpIn it holds a []any.
	Value any
	// Bounds holds the two operands of OpBetween, in the order given.
	Bounds [2]any
	// Args holds the branches of OpNot (exactly one), OpAnd and OpOr.
	Args []P
}

// EQ returns a predicate matching values equal to v.
func EQ(v any) P { return P{Op: OpEQ, Value: v} }

// NEQ returns a predicate matching values different from v.
func NEQ(v any) P { return P{Op: OpNEQ, Value: v} }

// GT returns a predicate matching values greater than v.
func GT(v any) P { return P{Op: OpGT, Value: v} }

// GTE returns a predicate matching values greater than or equal to v.
func GTE(v any) P { return P{Op: OpGTE, Value: v} }

// LT returns a predicate matching values less than v.
func LT(v any) P { return P{Op: OpLT, Value: v} }

// LTE returns a predicate matching values less than or equal to v.
func LTE(v any) P { return P{Op: OpLTE, Value: v} }

// In returns a predicate matching values contained in vs.
func In(vs ...any) P { return P{Op: OpIn, Value: vs} }

// HasPrefix returns a predicate matching strings starting with s.
func HasPrefix(s string) P { return P{Op: OpHasPrefix, Value: s} }

// HasSuffix returns a predicate matching strings ending with s.
func HasSuffix(s string) P { return P{Op: OpHasSuffix, Value: s} }

// Contains returns a predicate matching strings containing s.
func Contains(s string) P { return P{Op: OpContains, Value: s} }

// Regex returns a predicate matching strings that fully match the given
// regular expression.
func Regex(pattern string) P { return P{Op: OpRegex, Value: pattern} }

// EqualFold returns a predicate matching strings equal to s under case folding.
func EqualFold(s string) P { return P{Op: OpEqualFold, Value: s} }

// Between returns a predicate matching values in the closed range spanned by
// a and b. The order of a and b does not matter.
func Between(a, b any) P { return P{Op: OpBetween, Bounds: [2]any{a, b}} }

// Not negates p.
func Not(p P) P { return P{Op: OpNot, Args: []P{p}} }

// And returns a predicate matching values that satisfy all ps.
func And(ps ...P) P { return P{Op: OpAnd, Args: ps} }

// Or returns a predicate matching values that satisfy any of ps.
func Or(ps ...P) P { return P{Op: OpOr, Args: ps} }

// Of converts a filter value into a predicate. Values that are not
// predicates become equality predicates.
func Of(v any) P {
	switch v := v.(type) {
	case P:
		return v
	case *P:
		if v != nil {
			return *v
		}
	}
	return EQ(v)
}

// Range returns the bounds of a Between predicate ordered so that lo <= hi.
// Bounds that cannot be compared are returned in the order given.
func (p P) Range() (lo, hi any) {
	lo, hi = p.Bounds[0], p.Bounds[1]
	if c, ok := Compare(lo, hi); ok && c > 0 {
		lo, hi = hi, lo
	}
	return lo, hi
}

// Format renders p applied to the given property name.
func (p P) Format(field string) string {
	switch p.Op {
	case OpEQ, OpNEQ, OpGT, OpGTE, OpLT, OpLTE:
		return field + " " + p.Op.String() + " " + formatValue(p.Value)
	case OpIn:
		return field + " in " + formatValue(p.Value)
	case OpHasPrefix, OpHasSuffix, OpContains, OpRegex, OpEqualFold:
		return p.Op.String() + "(" + field + ", " + formatValue(p.Value) + ")"
	case OpBetween:
		lo, hi := p.Range()
		return "between(" + field + ", " + formatValue(lo) + ", " + formatValue(hi) + ")"
	case OpNot:
		if len(p.Args) != 1 {
			return "!()"
		}
		return "!(" + p.Args[0].Format(field) + ")"
	case OpAnd, OpOr:
		parts := make([]string, len(p.Args))
		for i := range p.Args {
			parts[i] = p.Args[i].Format(field)
		}
		return "(" + strings.Join(parts, " "+p.Op.String()+" ") + ")"
	default:
		return p.Op.String()
	}
}

// Filter maps property names to literal values or predicates.
type Filter map[string]any

// Keys returns the property names of the filter in sorted order.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns a shallow copy of the filter.
func (f Filter) Clone() Filter {
	if f == nil {
		return nil
	}
	c := make(Filter, len(f))
	for k, v := range f {
		c[k] = v
	}
	return c
}

// String returns a human-readable form of the filter, used in logs and errors.
func (f Filter) String() string {
	keys := f.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = Of(f[k]).Format(k)
	}
	return strings.Join(parts, " && ")
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case []any:
		parts := make([]string, len(v))
		for i := range v {
			parts[i] = formatValue(v[i])
		}
		return "[" + strings.Join(parts, ",") + "]"
	case []string:
		parts := make([]string, len(v))
		for i := range v {
			parts[i] = strconv.Quote(v[i])
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprint(v)
	}
}
