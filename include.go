package velograph

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/syssam/velograph/cypher"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/predicate"
)

type rootKind uint8

const (
	rootMany rootKind = iota
	rootOne
	rootGUID
)

// IncludeQuery loads nodes together with a chain of relations in a single
// statement:
//
//	people, err := Person.FindAndInclude(nil).
//		Include(func(p *velograph.Placeholder) *velograph.Fragment {
//			return p.Many("tasks").Get(predicate.Filter{"done": false}, nil)
//		}).
//		All(ctx)
//
// Every Include adds one hop starting from the destination of the previous
// one. The loaded destinations are read with Instance.Loaded and
// Instance.LoadedOne.
type IncludeQuery struct {
	model  *Model
	filter predicate.Filter
	kind   rootKind
	hops   []*Fragment
	err    error
}

func newIncludeQuery(m *Model, filter predicate.Filter, kind rootKind) *IncludeQuery {
	return &IncludeQuery{model: m, filter: filter, kind: kind}
}

// Fragment is one hop of an include query.
type Fragment struct {
	rel  *Relation
	node predicate.Filter
	edge predicate.Filter
	err  error
}

// Placeholder stands for the destination of the previous hop while an
// include query is built. Its accessors describe hops instead of running
// statements.
type Placeholder struct {
	model *Model
}

// ManyHop describes a hop through a Many relation.
type ManyHop struct {
	rel *Relation
	err error
}

// OneHop describes a hop through a One relation.
type OneHop struct {
	rel *Relation
	err error
}

// Many returns the hop through the Many relation with the given name.
func (p *Placeholder) Many(name string) *ManyHop {
	rel, err := p.relation(name, Many)
	return &ManyHop{rel: rel, err: err}
}

// One returns the hop through the One relation with the given name.
func (p *Placeholder) One(name string) *OneHop {
	rel, err := p.relation(name, One)
	return &OneHop{rel: rel, err: err}
}

func (p *Placeholder) relation(name string, card Cardinality) (*Relation, error) {
	rel, ok := p.model.Relation(name)
	switch {
	case !ok:
		return nil, NewValidationError(name, NewConfigError("model %s has no relation %s", p.model.label, name))
	case rel.card != card:
		return nil, NewValidationError(name, NewConfigError("relation %s.%s is %s, not %s", p.model.label, name, rel.card, card))
	}
	if err := rel.ensure(); err != nil {
		return nil, err
	}
	return rel, nil
}

// Get loads the destinations matching node, through relationships matching
// edge.
func (h *ManyHop) Get(node, edge predicate.Filter) *Fragment {
	return &Fragment{rel: h.rel, node: node, edge: edge, err: h.err}
}

// Get loads the linked destination.
func (h *OneHop) Get() *Fragment {
	return &Fragment{rel: h.rel, err: h.err}
}

// Include adds a hop. fn receives a placeholder for the destination of the
// previous hop, or for the root when there is none.
func (q *IncludeQuery) Include(fn func(*Placeholder) *Fragment) *IncludeQuery {
	if q.err != nil {
		return q
	}
	from := q.model
	if n := len(q.hops); n > 0 {
		from = q.hops[n-1].rel.Target()
	}
	f := fn(&Placeholder{model: from})
	switch {
	case f == nil:
		q.err = NewValidationError("include", errors.New("no fragment returned"))
	case f.err != nil:
		q.err = f.err
	case f.rel.decl != from:
		q.err = NewValidationError("include", NewConfigError("relation %s does not start from %s", f.rel, from.label))
	default:
		q.hops = append(q.hops, f)
	}
	return q
}

// compiled is an include query ready to run.
type compiled struct {
	stmt   string
	params map[string]any
	nodes  []string // statement variable of the root and of every hop destination
	edges  []string // statement variable of every hop relationship, edges[0] unused
	models []*Model
}

// Statement returns the statement and the parameters the query runs.
func (q *IncludeQuery) Statement(ctx context.Context) (string, map[string]any, error) {
	c, err := q.compile(ctx)
	if err != nil {
		return "", nil, err
	}
	return c.stmt, c.params, nil
}

func (q *IncludeQuery) compile(ctx context.Context) (*compiled, error) {
	if q.err != nil {
		return nil, q.err
	}
	if _, err := q.model.registered(); err != nil {
		return nil, err
	}
	var (
		gen     = cypher.NewGenerator()
		root    = gen.Next()
		params  = make(map[string]any)
		clauses []string
		c       = &compiled{nodes: []string{root}, edges: []string{""}, models: []*Model{q.model}}
	)
	filter := q.filter
	if q.kind == rootGUID {
		filter = predicate.Filter{GUIDKey: q.filter[GUIDKey]}
	}
	filter, err := q.model.queryFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	extra := ""
	if q.kind == rootGUID {
		guid := q.filter[GUIDKey]
		if v, ok := filter[GUIDKey]; ok && v == guid {
			filter = filter.Clone()
			delete(filter, GUIDKey)
		}
		extra = "{guid: " + cypher.Param(paramGUID) + "}"
		params[paramGUID] = guid
	}
	where, wparams := cypher.Where(gen, cypher.Bind(root, filter))
	clauses = append(clauses, "MATCH "+cypher.Node(root, q.model.label, extra), where)
	cypher.Merge(params, wparams)
	if q.kind == rootOne {
		clauses = append(clauses, "WITH "+root+" LIMIT 1")
	}
	ret := []string{root}
	prev := root
	for _, hop := range q.hops {
		dst := hop.rel.Target()
		node, err := dst.queryFilter(ctx, hop.node)
		if err != nil {
			return nil, err
		}
		e, v := gen.Next(), gen.Next()
		pattern := cypher.Node(prev, "", "") + cypher.Edge(e, hop.rel.edge.Label, hop.rel.Direction(), "") + cypher.Node(v, dst.label, "")
		where, wparams := cypher.Where(gen, cypher.Bind(v, node), cypher.Bind(e, hop.edge))
		clauses = append(clauses, "OPTIONAL MATCH "+pattern, where)
		cypher.Merge(params, wparams)
		c.nodes = append(c.nodes, v)
		c.edges = append(c.edges, e)
		c.models = append(c.models, dst)
		ret = append(ret, e, v)
		prev = v
	}
	clauses = append(clauses, "RETURN "+strings.Join(ret, ", "))
	c.stmt = cypher.Statement(clauses...)
	if len(params) > 0 {
		c.params = params
	}
	return c, nil
}

// All runs the query and returns the root nodes with their hops loaded.
func (q *IncludeQuery) All(ctx context.Context) ([]*Instance, error) {
	c, err := q.compile(ctx)
	if err != nil {
		return nil, err
	}
	res, err := q.model.graph.exec(ctx, c.stmt, c.params)
	if err != nil {
		return nil, err
	}
	levels, err := q.rebuild(c, res)
	if err != nil {
		return nil, err
	}
	roots := levels[0].instances()
	if q.kind == rootGUID && len(roots) > 1 {
		return nil, NewNotSingularErrorWithCount(q.model.label, len(roots))
	}
	for i := range levels {
		for _, inst := range levels[i].instances() {
			if err := c.models[i].afterFind(ctx, inst); err != nil {
				return nil, err
			}
		}
	}
	return roots, nil
}

// One runs the query and returns the first root node, or nil.
func (q *IncludeQuery) One(ctx context.Context) (*Instance, error) {
	roots, err := q.All(ctx)
	if err != nil || len(roots) == 0 {
		return nil, err
	}
	return roots[0], nil
}

// level holds the distinct nodes found at one depth, keyed by their path
// from the root.
type level struct {
	insts    map[string]*Instance
	order    []string
	children map[string][]string // parent path to child paths
}

func (l *level) instances() []*Instance {
	out := make([]*Instance, len(l.order))
	for i, k := range l.order {
		out[i] = l.insts[k]
	}
	return out
}

// nodeKey identifies the node stored under v in a row: by its guid, else by
// its element id. A node with neither is distinct from every other row.
func nodeKey(res *dialect.Result, row int, v string, props Props) string {
	if guid := props.GUID(); guid != "" {
		return "g:" + guid
	}
	if id := res.ID(row, v); id != "" {
		return "e:" + id
	}
	return "r:" + strconv.Itoa(row)
}

// rebuild groups the rows by node identity at every depth, then attaches
// children to their parents from the deepest hop back to the root.
func (q *IncludeQuery) rebuild(c *compiled, res *dialect.Result) ([]level, error) {
	levels := make([]level, len(c.nodes))
	for i := range levels {
		levels[i] = level{insts: make(map[string]*Instance), children: make(map[string][]string)}
	}
	for n, row := range res.Rows {
		parent := ""
		for i, v := range c.nodes {
			props, ok := row.Props(v)
			if !ok {
				if i == 0 {
					return nil, NewStatementError(c.stmt, c.params, "row %d has no node %q", n, v)
				}
				break
			}
			key := nodeKey(res, n, v, Props(props))
			if i > 0 {
				key = parent + "\x00" + key
			}
			if _, seen := levels[i].insts[key]; !seen {
				var rel Props
				if i > 0 {
					if p, ok := row.Props(c.edges[i]); ok {
						rel = Props(p)
					}
					levels[i].children[parent] = append(levels[i].children[parent], key)
				}
				levels[i].insts[key] = newInstance(c.models[i], Props(props), rel)
				levels[i].order = append(levels[i].order, key)
			}
			parent = key
		}
	}
	for i := len(q.hops); i > 0; i-- {
		hop := q.hops[i-1]
		for _, pk := range levels[i-1].order {
			parent := levels[i-1].insts[pk]
			keys := levels[i].children[pk]
			if hop.rel.card == One {
				switch len(keys) {
				case 0:
					parent.setLoadedOne(hop.rel.name, nil)
				case 1:
					parent.setLoadedOne(hop.rel.name, levels[i].insts[keys[0]])
				default:
					return nil, &CardinalityError{
						Relation: hop.rel.name,
						Label:    parent.model.label,
						GUID:     parent.GUID(),
						Count:    len(keys),
					}
				}
				continue
			}
			children := make([]*Instance, len(keys))
			for j, k := range keys {
				children[j] = levels[i].insts[k]
			}
			parent.setLoaded(hop.rel.name, children)
		}
	}
	return levels, nil
}
