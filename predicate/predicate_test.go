package predicate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/velograph/predicate"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		P    predicate.P
		S    string
	}{
		{
			name: "EQ",
			P:    predicate.EQ("a8m"),
			S:    `name == "a8m"`,
		},
		{
			name: "NEQ",
			P:    predicate.NEQ("active"),
			S:    `name != "active"`,
		},
		{
			name: "GTE",
			P:    predicate.GTE(18),
			S:    `name >= 18`,
		},
		{
			name: "In",
			P:    predicate.In("fb", "ent"),
			S:    `name in ["fb","ent"]`,
		},
		{
			name: "HasPrefix",
			P:    predicate.HasPrefix("/api/"),
			S:    `has_prefix(name, "/api/")`,
		},
		{
			name: "EqualFold",
			P:    predicate.EqualFold("TEST"),
			S:    `equal_fold(name, "TEST")`,
		},
		{
			name: "BetweenNormalized",
			P:    predicate.Between(9, 3),
			S:    `between(name, 3, 9)`,
		},
		{
			name: "Not",
			P:    predicate.Not(predicate.EQ("mashraki")),
			S:    `!(name == "mashraki")`,
		},
		{
			name: "Or",
			P: predicate.Or(
				predicate.EQ("a"),
				predicate.HasSuffix("b"),
				predicate.Contains("c"),
			),
			S: `(name == "a" || has_suffix(name, "b") || contains(name, "c"))`,
		},
		{
			name: "Nested",
			P: predicate.And(
				predicate.GT(1),
				predicate.Not(predicate.Or(predicate.EQ(2), predicate.EQ(3))),
			),
			S: `(name > 1 && !((name == 2 || name == 3)))`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.S, tt.P.Format("name"))
		})
	}
}

func TestFilterString(t *testing.T) {
	t.Parallel()
	f := predicate.Filter{
		"title": predicate.HasPrefix("B"),
		"done":  true,
		"age":   predicate.Between(2, 1),
	}
	assert.Equal(t, `between(age, 1, 2) && done == true && has_prefix(title, "B")`, f.String())
	assert.Equal(t, []string{"age", "done", "title"}, f.Keys())
}

func TestOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, predicate.EQ(3), predicate.Of(3))
	p := predicate.GT(3)
	assert.Equal(t, p, predicate.Of(p))
	assert.Equal(t, p, predicate.Of(&p))
}

func TestRange(t *testing.T) {
	t.Parallel()
	lo, hi := predicate.Between(2, 1).Range()
	assert.Equal(t, 1, lo)
	assert.Equal(t, 2, hi)

	lo, hi = predicate.Between(1, 2).Range()
	assert.Equal(t, 1, lo)
	assert.Equal(t, 2, hi)

	lo, hi = predicate.Between("b", "a").Range()
	assert.Equal(t, "a", lo)
	assert.Equal(t, "b", hi)

	// Incomparable bounds keep their order.
	lo, hi = predicate.Between("b", 1).Range()
	assert.Equal(t, "b", lo)
	assert.Equal(t, 1, hi)
}

func TestFilterClone(t *testing.T) {
	t.Parallel()
	f := predicate.Filter{"a": 1}
	c := f.Clone()
	c["b"] = 2
	assert.Len(t, f, 1)
	assert.Nil(t, predicate.Filter(nil).Clone())
}

func TestOpLeaf(t *testing.T) {
	t.Parallel()
	assert.True(t, predicate.OpEQ.Leaf())
	assert.True(t, predicate.OpBetween.Leaf())
	assert.False(t, predicate.OpNot.Leaf())
	assert.False(t, predicate.OpOr.Leaf())
	assert.Equal(t, "Op(99)", predicate.Op(99).String())
}
