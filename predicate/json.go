package predicate

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.Config{
	UseNumber:              true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Operator keys accepted in filter documents.
var docOps = map[string]Op{
	"$eq":       OpEQ,
	"$ne":       OpNEQ,
	"$gt":       OpGT,
	"$gte":      OpGTE,
	"$lt":       OpLT,
	"$lte":      OpLTE,
	"$in":       OpIn,
	"$sw":       OpHasPrefix,
	"$ew":       OpHasSuffix,
	"$contains": OpContains,
	"$reg":      OpRegex,
	"$ieq":      OpEqualFold,
	"$between":  OpBetween,
	"$not":      OpNot,
	"$and":      OpAnd,
	"$or":       OpOr,
}

// ParseJSON decodes a filter document such as
//
//	{"title": {"$sw": "B"}, "done": true, "age": {"$between": [1, 2]}}
//
// into a Filter. Objects whose keys all start with "$" are operator objects;
// an object with several operators matches when all of them do.
func ParseJSON(data []byte) (Filter, error) {
	var doc map[string]any
	if err := jsonAPI.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("predicate: decode filter: %w", err)
	}
	return FromMap(doc)
}

// FromMap converts a decoded filter document into a Filter.
func FromMap(doc map[string]any) (Filter, error) {
	if doc == nil {
		return nil, nil
	}
	f := make(Filter, len(doc))
	for k, v := range doc {
		if strings.HasPrefix(k, "$") {
			return nil, fmt.Errorf("predicate: operator %q used as property name", k)
		}
		p, literal, err := parseValue(v)
		if err != nil {
			return nil, fmt.Errorf("predicate: property %q: %w", k, err)
		}
		if literal {
			f[k] = p.Value
		} else {
			f[k] = p
		}
	}
	return f, nil
}

// parseValue converts a document value into a predicate. literal is true
// when the value carried no operator and should be stored as-is.
func parseValue(v any) (p P, literal bool, err error) {
	obj, ok := v.(map[string]any)
	if !ok || !isOperatorObject(obj) {
		return EQ(normalize(v)), true, nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	ps := make([]P, 0, len(keys))
	for _, k := range keys {
		p, err := parseOp(k, obj[k])
		if err != nil {
			return P{}, false, err
		}
		ps = append(ps, p)
	}
	if len(ps) == 1 {
		return ps[0], false, nil
	}
	return And(ps...), false, nil
}

func isOperatorObject(obj map[string]any) bool {
	if len(obj) == 0 {
		return false
	}
	for k := range obj {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func parseOp(key string, v any) (P, error) {
	op, ok := docOps[key]
	if !ok {
		return P{}, fmt.Errorf("unknown operator %q", key)
	}
	switch op {
	case OpNot:
		inner, _, err := parseValue(v)
		if err != nil {
			return P{}, err
		}
		return Not(inner), nil
	case OpAnd, OpOr:
		list, ok := v.([]any)
		if !ok {
			return P{}, fmt.Errorf("%s expects an array, got %T", key, v)
		}
		args := make([]P, len(list))
		for i := range list {
			p, _, err := parseValue(list[i])
			if err != nil {
				return P{}, err
			}
			args[i] = p
		}
		return P{Op: op, Args: args}, nil
	case OpBetween:
		list, ok := v.([]any)
		if !ok || len(list) != 2 {
			return P{}, fmt.Errorf("%s expects an array of two values", key)
		}
		return Between(normalize(list[0]), normalize(list[1])), nil
	case OpIn:
		list, ok := v.([]any)
		if !ok {
			return P{}, fmt.Errorf("%s expects an array, got %T", key, v)
		}
		return In(normalize(list).([]any)...), nil
	case OpHasPrefix, OpHasSuffix, OpContains, OpRegex, OpEqualFold:
		s, ok := v.(string)
		if !ok {
			return P{}, fmt.Errorf("%s expects a string, got %T", key, v)
		}
		return P{Op: op, Value: s}, nil
	default:
		return P{Op: op, Value: normalize(v)}, nil
	}
}

// normalize turns json.Number values into int64 or float64.
func normalize(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = normalize(v[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	}
	return v
}

// MarshalJSON encodes a filter back into its document form.
func (f Filter) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(f))
	for k, v := range f {
		if p, ok := v.(P); ok {
			doc[k] = p.document()
		} else {
			doc[k] = v
		}
	}
	return jsonAPI.Marshal(doc)
}

func (p P) document() any {
	var key string
	for k, op := range docOps {
		if op == p.Op {
			key = k
			break
		}
	}
	switch p.Op {
	case OpNot:
		if len(p.Args) == 1 {
			return map[string]any{key: p.Args[0].document()}
		}
	case OpAnd, OpOr:
		args := make([]any, len(p.Args))
		for i := range p.Args {
			args[i] = p.Args[i].document()
		}
		return map[string]any{key: args}
	case OpBetween:
		return map[string]any{key: []any{p.Bounds[0], p.Bounds[1]}}
	}
	return map[string]any{key: p.Value}
}
