package cypher

import (
	"errors"
	"slices"
	"strconv"
	"strings"
)

// GUID is the identity property of every node. It is never assigned by Set.
const GUID = "guid"

// ErrNothingToUpdate is returned by Set when no property is left to assign.
var ErrNothingToUpdate = errors.New("cypher: nothing to update")

// Assignment holds the new property values of one statement variable.
type Assignment struct {
	Var   string
	Props map[string]any
}

// Assign returns an Assignment of props to the variable v.
func Assign(v string, props map[string]any) Assignment {
	return Assignment{Var: v, Props: props}
}

// Set compiles the assignments into the body of a SET clause, for example
// "n.done = $_u_n_done, r.since = $_u_r_since". Parameter names are prefixed
// with "_u_" so they never collide with generated identifiers. The identity
// property is skipped.
func Set(assignments ...Assignment) (string, map[string]any, error) {
	var (
		parts  []string
		params = make(map[string]any)
	)
	for _, a := range assignments {
		keys := make([]string, 0, len(a.Props))
		for k := range a.Props {
			if k != GUID {
				keys = append(keys, k)
			}
		}
		slices.Sort(keys)
		for _, k := range keys {
			alias := uniqueAlias(params, "_u_"+sanitize(a.Var)+"_"+sanitize(k))
			params[alias] = a.Props[k]
			parts = append(parts, Prop(a.Var, k)+" = "+Param(alias))
		}
	}
	if len(parts) == 0 {
		return "", nil, ErrNothingToUpdate
	}
	return strings.Join(parts, ", "), params, nil
}

// sanitize maps s onto [A-Za-z0-9_].
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, s)
}

// uniqueAlias appends a numeric suffix when two keys sanitize to the same
// alias.
func uniqueAlias(params map[string]any, alias string) string {
	if _, ok := params[alias]; !ok {
		return alias
	}
	for i := 2; ; i++ {
		s := alias + "_" + strconv.Itoa(i)
		if _, ok := params[s]; !ok {
			return s
		}
	}
}
