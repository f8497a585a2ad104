package predicate

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Match reports whether the property map satisfies every entry of the
// filter. Missing properties behave like Cypher null: comparisons against
// them are unknown, and unknown never matches.
func (f Filter) Match(props map[string]any) bool {
	for k, v := range f {
		if Of(v).eval(props[k]) != truth {
			return false
		}
	}
	return true
}

// Eval reports whether the value satisfies p.
func (p P) Eval(v any) bool {
	return p.eval(v) == truth
}

// tristate is the three-valued logic of Cypher predicates.
type tristate uint8

const (
	unknown tristate = iota
	falsity
	truth
)

func boolean(b bool) tristate {
	if b {
		return truth
	}
	return falsity
}

func (p P) eval(v any) tristate {
	switch p.Op {
	case OpNot:
		if len(p.Args) != 1 {
			return unknown
		}
		switch p.Args[0].eval(v) {
		case truth:
			return falsity
		case falsity:
			return truth
		}
		return unknown
	case OpAnd:
		result := truth
		for _, a := range p.Args {
			switch a.eval(v) {
			case falsity:
				return falsity
			case unknown:
				result = unknown
			}
		}
		return result
	case OpOr:
		result := falsity
		for _, a := range p.Args {
			switch a.eval(v) {
			case truth:
				return truth
			case unknown:
				result = unknown
			}
		}
		if len(p.Args) == 0 {
			return truth
		}
		return result
	}
	if v == nil {
		return unknown
	}
	switch p.Op {
	case OpEQ, OpNEQ:
		if p.Value == nil {
			return unknown
		}
		eq := Equal(v, p.Value)
		if p.Op == OpNEQ {
			eq = !eq
		}
		return boolean(eq)
	case OpGT, OpGTE, OpLT, OpLTE:
		c, ok := Compare(v, p.Value)
		if !ok {
			return unknown
		}
		switch p.Op {
		case OpGT:
			return boolean(c > 0)
		case OpGTE:
			return boolean(c >= 0)
		case OpLT:
			return boolean(c < 0)
		default:
			return boolean(c <= 0)
		}
	case OpBetween:
		lo, hi := p.Range()
		c1, ok1 := Compare(lo, v)
		c2, ok2 := Compare(v, hi)
		if !ok1 || !ok2 {
			return unknown
		}
		return boolean(c1 <= 0 && c2 <= 0)
	case OpIn:
		list, ok := toList(p.Value)
		if !ok {
			return unknown
		}
		for _, e := range list {
			if Equal(v, e) {
				return truth
			}
		}
		return falsity
	case OpHasPrefix, OpHasSuffix, OpContains, OpRegex, OpEqualFold:
		s, ok1 := v.(string)
		arg, ok2 := p.Value.(string)
		if !ok1 || !ok2 {
			return unknown
		}
		switch p.Op {
		case OpHasPrefix:
			return boolean(strings.HasPrefix(s, arg))
		case OpHasSuffix:
			return boolean(strings.HasSuffix(s, arg))
		case OpContains:
			return boolean(strings.Contains(s, arg))
		case OpEqualFold:
			fold := cases.Fold()
			return boolean(fold.String(s) == fold.String(arg))
		default:
			re, err := regexp.Compile(`^(?:` + arg + `)$`)
			if err != nil {
				return unknown
			}
			return boolean(re.MatchString(s))
		}
	}
	return unknown
}

// Equal reports whether two property values are equal. Numbers compare by
// value regardless of their Go type, so an int64 read back from the database
// equals the int used to store it.
func Equal(a, b any) bool {
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	la, okA := toList(a)
	lb, okB := toList(b)
	if okA && okB {
		if len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !Equal(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two property values. It supports numbers, strings, booleans
// and times; ok is false when the values are not mutually comparable.
func Compare(a, b any) (c int, ok bool) {
	if ia, okA := toInt(a); okA {
		if ib, okB := toInt(b); okB {
			return cmp3(ia < ib, ia > ib), true
		}
	}
	if fa, okA := toFloat(a); okA {
		if fb, okB := toFloat(b); okB {
			return cmp3(fa < fb, fa > fb), true
		}
		return 0, false
	}
	switch a := a.(type) {
	case string:
		if b, ok := b.(string); ok {
			return strings.Compare(a, b), true
		}
	case bool:
		if b, ok := b.(bool); ok {
			return cmp3(!a && b, a && !b), true
		}
	case time.Time:
		if b, ok := b.(time.Time); ok {
			return a.Compare(b), true
		}
	}
	return 0, false
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func toInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	switch v := v.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func toList(v any) ([]any, bool) {
	switch v := v.(type) {
	case []any:
		return v, true
	case nil, string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}
