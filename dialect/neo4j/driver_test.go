package neo4j

import (
	"bytes"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/syssam/velograph/dialect"
)

func TestRowOf(t *testing.T) {
	t.Parallel()
	row := rowOf(
		[]string{"n", "r", "list", "count", "p"},
		[]any{
			neo4j.Node{ElementId: "4:x:1", Labels: []string{"Task"}, Props: map[string]any{"guid": "1", "title": "Buy milk"}},
			neo4j.Relationship{Type: "created", Props: map[string]any{"since": int64(2020)}},
			[]any{neo4j.Node{Props: map[string]any{"guid": "2"}}, int64(1)},
			int64(3),
			neo4j.Path{Nodes: []neo4j.Node{{Props: map[string]any{"guid": "a"}}, {Props: map[string]any{"guid": "b"}}}},
		},
	)
	assert.Equal(t, dialect.Row{
		"n":     map[string]any{"guid": "1", "title": "Buy milk"},
		"r":     map[string]any{"since": int64(2020)},
		"list":  []any{map[string]any{"guid": "2"}, int64(1)},
		"count": int64(3),
		"p":     []any{map[string]any{"guid": "a"}, map[string]any{"guid": "b"}},
	}, row)
}

func TestRowOfNull(t *testing.T) {
	t.Parallel()
	var node *neo4j.Node
	row := rowOf([]string{"a", "b", "c"}, []any{nil, node})
	assert.Equal(t, dialect.Row{"a": nil, "b": nil}, row)
	props, ok := row.Props("a")
	assert.False(t, ok)
	assert.Nil(t, props)
}

func TestIDsOf(t *testing.T) {
	t.Parallel()

	var nilNode *neo4j.Node
	tests := []struct {
		name   string
		keys   []string
		values []any
		want   map[string]string
	}{
		{
			name: "Entities",
			keys: []string{"a", "r", "b", "count"},
			values: []any{
				neo4j.Node{ElementId: "4:x:1"},
				neo4j.Relationship{ElementId: "5:x:7"},
				&neo4j.Node{ElementId: "4:x:2"},
				int64(1),
			},
			want: map[string]string{"a": "4:x:1", "r": "5:x:7", "b": "4:x:2"},
		},
		{
			name:   "Null",
			keys:   []string{"a", "b"},
			values: []any{nil, nilNode},
		},
		{
			name:   "NoElementID",
			keys:   []string{"a", "b"},
			values: []any{neo4j.Node{Props: map[string]any{"guid": "1"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, idsOf(tt.keys, tt.values))
		})
	}
}

type fakeCounters struct{ n int }

func (c fakeCounters) NodesCreated() int         { return c.n }
func (c fakeCounters) NodesDeleted() int         { return c.n + 1 }
func (c fakeCounters) RelationshipsCreated() int { return c.n + 2 }
func (c fakeCounters) RelationshipsDeleted() int { return c.n + 3 }
func (c fakeCounters) PropertiesSet() int        { return c.n + 4 }
func (c fakeCounters) LabelsAdded() int          { return c.n + 5 }
func (c fakeCounters) LabelsRemoved() int        { return c.n + 6 }
func (c fakeCounters) IndexesAdded() int         { return c.n + 7 }
func (c fakeCounters) IndexesRemoved() int       { return c.n + 8 }
func (c fakeCounters) ConstraintsAdded() int     { return c.n + 9 }
func (c fakeCounters) ConstraintsRemoved() int   { return c.n + 10 }

func TestStatsOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, dialect.Stats{
		NodesCreated:         1,
		NodesDeleted:         2,
		RelationshipsCreated: 3,
		RelationshipsDeleted: 4,
		PropertiesSet:        5,
		LabelsAdded:          6,
		LabelsRemoved:        7,
		IndexesAdded:         8,
		IndexesRemoved:       9,
		ConstraintsAdded:     10,
		ConstraintsRemoved:   11,
	}, statsOf(fakeCounters{n: 1}))
	assert.Equal(t, dialect.Stats{}, statsOf(nil))
}

func TestBoltLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := newBoltLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	l.Error("pool", "1", errors.New("refused"))
	l.Warnf("router", "2", "stale table for %s", "neo4j")
	l.Debugf("bolt", "3", "sent %d bytes", 10)
	out := buf.String()
	assert.Contains(t, out, `"component":"bolt"`)
	assert.Contains(t, out, `"error":"refused"`)
	assert.Contains(t, out, "stale table for neo4j")
	assert.Contains(t, out, "sent 10 bytes")
}
