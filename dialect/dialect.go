package dialect

import (
	"context"
	"fmt"
)

// Neo4j is the name of the Bolt/Cypher dialect.
const Neo4j = "neo4j"

// Driver is the interface that wraps the single execution primitive used by
// velograph. Connection lifecycle is owned by the implementation.
type Driver interface {
	// Exec runs one Cypher statement with the given parameters and returns
	// its rows and mutation counters.
	Exec(ctx context.Context, stmt string, params map[string]any) (*Result, error)
	// Close releases the underlying connections.
	Close(ctx context.Context) error
}

// Result is the outcome of a single statement.
type Result struct {
	// Rows holds one entry per returned record. Node and relationship
	// values are already unwrapped to their property maps.
	Rows []Row
	// Stats holds the mutation counters reported by the server.
	Stats Stats
	// IDs holds, per row, the element ids of the node and relationship
	// values keyed by variable name. It is nil when the driver does not
	// know them.
	IDs []map[string]string
	// Raw is the driver-specific result summary, if any.
	Raw any
}

// ID returns the element id of the value stored under key in the given
// row, or "".
func (r *Result) ID(row int, key string) string {
	if row < 0 || row >= len(r.IDs) {
		return ""
	}
	return r.IDs[row][key]
}

// Row maps the returned variable names of a record to their values.
type Row map[string]any

// Props returns the property map stored under key.
func (r Row) Props(key string) (map[string]any, bool) {
	switch v := r[key].(type) {
	case map[string]any:
		return v, true
	case Row:
		return v, true
	}
	return nil, false
}

// Int returns the integer stored under key.
func (r Row) Int(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), v == float64(int64(v))
	}
	return 0, false
}

// Stats holds the counters of a statement's side effects.
type Stats struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
	LabelsAdded          int
	LabelsRemoved        int
	IndexesAdded         int
	IndexesRemoved       int
	ConstraintsAdded     int
	ConstraintsRemoved   int
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		NodesCreated:         s.NodesCreated + o.NodesCreated,
		NodesDeleted:         s.NodesDeleted + o.NodesDeleted,
		RelationshipsCreated: s.RelationshipsCreated + o.RelationshipsCreated,
		RelationshipsDeleted: s.RelationshipsDeleted + o.RelationshipsDeleted,
		PropertiesSet:        s.PropertiesSet + o.PropertiesSet,
		LabelsAdded:          s.LabelsAdded + o.LabelsAdded,
		LabelsRemoved:        s.LabelsRemoved + o.LabelsRemoved,
		IndexesAdded:         s.IndexesAdded + o.IndexesAdded,
		IndexesRemoved:       s.IndexesRemoved + o.IndexesRemoved,
		ConstraintsAdded:     s.ConstraintsAdded + o.ConstraintsAdded,
		ConstraintsRemoved:   s.ConstraintsRemoved + o.ConstraintsRemoved,
	}
}

// ContainsUpdates reports whether any counter is non-zero.
func (s Stats) ContainsUpdates() bool {
	return s != Stats{}
}

// String returns a compact summary of the non-zero counters.
func (s Stats) String() string {
	out := ""
	add := func(name string, n int) {
		if n == 0 {
			return
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", name, n)
	}
	add("nodes_created", s.NodesCreated)
	add("nodes_deleted", s.NodesDeleted)
	add("relationships_created", s.RelationshipsCreated)
	add("relationships_deleted", s.RelationshipsDeleted)
	add("properties_set", s.PropertiesSet)
	add("labels_added", s.LabelsAdded)
	add("labels_removed", s.LabelsRemoved)
	add("indexes_added", s.IndexesAdded)
	add("indexes_removed", s.IndexesRemoved)
	add("constraints_added", s.ConstraintsAdded)
	add("constraints_removed", s.ConstraintsRemoved)
	if out == "" {
		return "none"
	}
	return out
}

// DriverFunc adapts an ordinary function to the Driver interface. Close is a
// no-op.
type DriverFunc func(ctx context.Context, stmt string, params map[string]any) (*Result, error)

// Exec calls f.
func (f DriverFunc) Exec(ctx context.Context, stmt string, params map[string]any) (*Result, error) {
	return f(ctx, stmt, params)
}

// Close implements Driver.
func (DriverFunc) Close(context.Context) error { return nil }
