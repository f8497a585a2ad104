// Package neo4j implements dialect.Driver on top of the official Neo4j Bolt
// driver.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"

	"github.com/syssam/velograph/dialect"
)

// Driver is a dialect.Driver backed by a Bolt connection pool. Every
// statement runs in its own auto-commit session.
type Driver struct {
	driver   neo4j.DriverWithContext
	database string
	mode     neo4j.AccessMode
}

type options struct {
	username, password string
	database           string
	logger             *zerolog.Logger
	configurers        []func(*neo4j.Config)
}

// Option configures Open.
type Option func(*options)

// BasicAuth authenticates with a username and password. Without it the
// connection is unauthenticated.
func BasicAuth(username, password string) Option {
	return func(o *options) {
		o.username, o.password = username, password
	}
}

// Database selects the database statements run against. The server default
// is used when empty.
func Database(name string) Option {
	return func(o *options) {
		o.database = name
	}
}

// Log routes the Bolt driver's own logging into logger.
func Log(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// Config applies low-level Bolt driver configuration.
func Config(fn func(*neo4j.Config)) Option {
	return func(o *options) {
		o.configurers = append(o.configurers, fn)
	}
}

// Open creates a connection pool for uri (e.g. "neo4j://localhost:7687")
// and verifies connectivity.
func Open(ctx context.Context, uri string, opts ...Option) (*Driver, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	auth := neo4j.NoAuth()
	if o.username != "" {
		auth = neo4j.BasicAuth(o.username, o.password, "")
	}
	configurers := o.configurers
	if o.logger != nil {
		l := newBoltLogger(*o.logger)
		configurers = append(configurers, func(c *neo4j.Config) { c.Log = l })
	}
	drv, err := neo4j.NewDriverWithContext(uri, auth, configurers...)
	if err != nil {
		return nil, fmt.Errorf("neo4j: create driver: %w", err)
	}
	if err := drv.VerifyConnectivity(ctx); err != nil {
		_ = drv.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	return NewDriver(drv, o.database), nil
}

// NewDriver wraps an existing Bolt driver.
func NewDriver(drv neo4j.DriverWithContext, database string) *Driver {
	return &Driver{driver: drv, database: database, mode: neo4j.AccessModeWrite}
}

// Dialect returns the dialect name.
func (*Driver) Dialect() string { return dialect.Neo4j }

// DB returns the underlying Bolt driver.
func (d *Driver) DB() neo4j.DriverWithContext { return d.driver }

// Exec implements dialect.Driver.
func (d *Driver) Exec(ctx context.Context, stmt string, params map[string]any) (*dialect.Result, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   d.mode,
		DatabaseName: d.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return nil, err
	}
	var (
		rows = make([]dialect.Row, len(records))
		ids  []map[string]string
	)
	for i, rec := range records {
		rows[i] = rowOf(rec.Keys, rec.Values)
		if m := idsOf(rec.Keys, rec.Values); m != nil {
			if ids == nil {
				ids = make([]map[string]string, len(records))
			}
			ids[i] = m
		}
	}
	return &dialect.Result{
		Rows:  rows,
		Stats: statsOf(summary.Counters()),
		IDs:   ids,
		Raw:   summary,
	}, nil
}

// Close closes the connection pool.
func (d *Driver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

func rowOf(keys []string, values []any) dialect.Row {
	row := make(dialect.Row, len(keys))
	for i, k := range keys {
		if i < len(values) {
			row[k] = unwrap(values[i])
		}
	}
	return row
}

// idsOf returns the element ids of the nodes and relationships of a
// record, or nil when it holds none.
func idsOf(keys []string, values []any) map[string]string {
	var ids map[string]string
	for i, k := range keys {
		if i >= len(values) {
			break
		}
		var id string
		switch v := values[i].(type) {
		case neo4j.Node:
			id = v.ElementId
		case *neo4j.Node:
			if v != nil {
				id = v.ElementId
			}
		case neo4j.Relationship:
			id = v.ElementId
		case *neo4j.Relationship:
			if v != nil {
				id = v.ElementId
			}
		}
		if id == "" {
			continue
		}
		if ids == nil {
			ids = make(map[string]string)
		}
		ids[k] = id
	}
	return ids
}

// unwrap replaces graph entities by their property maps, recursively.
func unwrap(v any) any {
	switch v := v.(type) {
	case neo4j.Node:
		return unwrapMap(v.Props)
	case *neo4j.Node:
		if v == nil {
			return nil
		}
		return unwrapMap(v.Props)
	case neo4j.Relationship:
		return unwrapMap(v.Props)
	case *neo4j.Relationship:
		if v == nil {
			return nil
		}
		return unwrapMap(v.Props)
	case neo4j.Path:
		nodes := make([]any, len(v.Nodes))
		for i := range v.Nodes {
			nodes[i] = unwrapMap(v.Nodes[i].Props)
		}
		return nodes
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = unwrap(v[i])
		}
		return out
	case map[string]any:
		return unwrapMap(v)
	default:
		return v
	}
}

func unwrapMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = unwrap(v)
	}
	return out
}

// counters is the subset of neo4j.Counters velograph reports.
type counters interface {
	NodesCreated() int
	NodesDeleted() int
	RelationshipsCreated() int
	RelationshipsDeleted() int
	PropertiesSet() int
	LabelsAdded() int
	LabelsRemoved() int
	IndexesAdded() int
	IndexesRemoved() int
	ConstraintsAdded() int
	ConstraintsRemoved() int
}

func statsOf(c counters) dialect.Stats {
	if c == nil {
		return dialect.Stats{}
	}
	return dialect.Stats{
		NodesCreated:         c.NodesCreated(),
		NodesDeleted:         c.NodesDeleted(),
		RelationshipsCreated: c.RelationshipsCreated(),
		RelationshipsDeleted: c.RelationshipsDeleted(),
		PropertiesSet:        c.PropertiesSet(),
		LabelsAdded:          c.LabelsAdded(),
		LabelsRemoved:        c.LabelsRemoved(),
		IndexesAdded:         c.IndexesAdded(),
		IndexesRemoved:       c.IndexesRemoved(),
		ConstraintsAdded:     c.ConstraintsAdded(),
		ConstraintsRemoved:   c.ConstraintsRemoved(),
	}
}

var _ dialect.Driver = (*Driver)(nil)
