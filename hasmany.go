package velograph

import (
	"context"
	"errors"
	"slices"

	"github.com/syssam/velograph/cypher"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/predicate"
)

// HasMany is the accessor of a Many relation of one instance.
type HasMany struct {
	rel *Relation
	src *Instance
	err error
}

// Relation returns the relation of the accessor.
func (h *HasMany) Relation() *Relation { return h.rel }

// Get returns the destinations matching node, reached through relationships
// matching edge. Every destination carries the properties of its
// relationship in RelationProps.
func (h *HasMany) Get(ctx context.Context, node, edge predicate.Filter) ([]*Instance, error) {
	g, err := prepare(h.err, h.rel, h.src)
	if err != nil {
		return nil, err
	}
	dst := h.rel.Target()
	if node, err = dst.queryFilter(ctx, node); err != nil {
		return nil, err
	}
	where, wparams := cypher.Where(cypher.NewGenerator(), cypher.Bind("b", node), cypher.Bind("r", edge))
	stmt := cypher.Statement(
		"MATCH "+h.rel.pattern("a", "r", "b"),
		where,
		"RETURN b, r",
	)
	params := cypher.Merge(map[string]any{paramSource: h.src.GUID()}, wparams)
	res, err := g.exec(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	insts, err := dst.wrapAll(stmt, params, res, "b", "r")
	if err != nil {
		return nil, err
	}
	for _, inst := range insts {
		if err := dst.afterFind(ctx, inst); err != nil {
			return nil, err
		}
	}
	return insts, nil
}

// Create creates one destination per element of props and links each to
// the source, one after the other. Linking happens only after the
// destination exists.
//
// There is no rollback: when a step fails, the destinations created so far
// are returned together with the error, and they stay created and linked.
// A destination that was created but could not be linked is reported in a
// *LinkError.
func (h *HasMany) Create(ctx context.Context, props []Props, edge Props) ([]*Instance, error) {
	g, err := prepare(h.err, h.rel, h.src)
	if err != nil {
		return nil, err
	}
	if err := h.rel.decl.evalMutation(ctx, h.rel.linkOp(h.src, edge)); err != nil {
		return nil, err
	}
	dst := h.rel.Target()
	created := make([]*Instance, 0, len(props))
	for _, p := range props {
		inst, err := dst.Create(ctx, p)
		if err != nil {
			return created, err
		}
		res, err := h.rel.link(ctx, g, h.src, []string{inst.GUID()}, edge)
		if err == nil && len(res.Rows) == 0 {
			err = errors.New("no relationship returned")
		}
		if err != nil {
			return created, &LinkError{Relation: h.rel.name, Instance: inst, Err: err}
		}
		if rp, ok := res.Rows[0].Props("r"); ok {
			inst.RelationProps = Props(rp)
		}
		created = append(created, inst)
	}
	return created, nil
}

// Add links existing destinations to the source. Linking is idempotent: it
// returns the number of relationships actually created, so destinations
// that were already linked count as zero.
func (h *HasMany) Add(ctx context.Context, insts []*Instance, edge Props) (int, error) {
	g, err := prepare(h.err, h.rel, h.src)
	if err != nil {
		return 0, err
	}
	guids, err := h.rel.targets(insts)
	if err != nil {
		return 0, err
	}
	if len(guids) == 0 {
		return 0, nil
	}
	if err := h.rel.decl.evalMutation(ctx, h.rel.linkOp(h.src, edge)); err != nil {
		return 0, err
	}
	res, err := h.rel.link(ctx, g, h.src, guids, edge)
	if err != nil {
		return 0, err
	}
	return res.Stats.RelationshipsCreated, nil
}

// Remove deletes the relationships to the destinations matching node,
// through relationships matching edge. Destinations are never deleted.
func (h *HasMany) Remove(ctx context.Context, node, edge predicate.Filter) (Stats, error) {
	g, err := prepare(h.err, h.rel, h.src)
	if err != nil {
		return Stats{}, err
	}
	return h.rel.unlink(ctx, g, h.src, node, edge)
}

// Count returns the number of destinations matching node, reached through
// relationships matching edge. It returns -1 when the result holds no
// count.
func (h *HasMany) Count(ctx context.Context, node, edge predicate.Filter) (int, error) {
	g, err := prepare(h.err, h.rel, h.src)
	if err != nil {
		return -1, err
	}
	if node, err = h.rel.Target().queryFilter(ctx, node); err != nil {
		return -1, err
	}
	where, wparams := cypher.Where(cypher.NewGenerator(), cypher.Bind("b", node), cypher.Bind("r", edge))
	stmt := cypher.Statement(
		"MATCH "+h.rel.pattern("a", "r", "b"),
		where,
		"RETURN count(b) AS count",
	)
	params := cypher.Merge(map[string]any{paramSource: h.src.GUID()}, wparams)
	res, err := g.exec(ctx, stmt, params)
	if err != nil {
		return -1, err
	}
	return countOf(res), nil
}

// Update sets props on the destinations matching node and setEdge on their
// relationships matching edge, in one statement. It returns the updated
// destinations. The destination model filters node as a find would, and
// its update hooks run as for Model.Update.
func (h *HasMany) Update(ctx context.Context, props Props, node predicate.Filter, setEdge Props, edge predicate.Filter) ([]*Instance, error) {
	g, err := prepare(h.err, h.rel, h.src)
	if err != nil {
		return nil, err
	}
	dst := h.rel.Target()
	op := &operation{op: OpUpdate, label: dst.label, props: props.Clone(), filter: node.Clone()}
	if err := dst.evalMutation(ctx, op); err != nil {
		return nil, err
	}
	if node, err = dst.queryFilter(ctx, op.filter); err != nil {
		return nil, err
	}
	if node, props, err = dst.beforeUpdate(ctx, node, op.props); err != nil {
		return nil, err
	}
	set, sparams, err := cypher.Set(cypher.Assign("b", props), cypher.Assign("r", setEdge))
	if err != nil {
		return nil, NewValidationError(h.rel.name, err)
	}
	where, wparams := cypher.Where(cypher.NewGenerator(), cypher.Bind("b", node), cypher.Bind("r", edge))
	stmt := cypher.Statement(
		"MATCH "+h.rel.pattern("a", "r", "b"),
		where,
		"SET "+set,
		"RETURN b, r",
	)
	params := cypher.Merge(map[string]any{paramSource: h.src.GUID()}, wparams, sparams)
	res, err := g.exec(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	insts, err := dst.wrapAll(stmt, params, res, "b", "r")
	if err != nil {
		return nil, err
	}
	if err := dst.afterUpdate(ctx, insts); err != nil {
		return nil, err
	}
	return insts, nil
}

// prepare checks that an accessor can run a statement.
func prepare(err error, rel *Relation, src *Instance) (*Graph, error) {
	if err != nil {
		return nil, err
	}
	if err := rel.ensure(); err != nil {
		return nil, err
	}
	if src.GUID() == "" {
		return nil, NewValidationError(rel.name, errors.New("source instance has no guid"))
	}
	return rel.decl.graph, nil
}

// targets returns the identities of insts, checking they are nodes of the
// destination model.
func (r *Relation) targets(insts []*Instance) ([]string, error) {
	guids := make([]string, 0, len(insts))
	for _, inst := range insts {
		switch {
		case inst == nil:
			return nil, NewValidationError(r.name, errors.New("nil instance"))
		case inst.model != r.dst:
			return nil, NewValidationError(r.name, NewConfigError("%s is not a %s", inst, r.dst.label))
		case inst.GUID() == "":
			return nil, NewValidationError(r.name, errors.New("instance has no guid"))
		}
		guids = append(guids, inst.GUID())
	}
	return guids, nil
}

func (r *Relation) linkOp(src *Instance, edge Props) *operation {
	return &operation{
		op:     OpLink,
		label:  r.decl.label,
		props:  edge.Clone(),
		filter: predicate.Filter{GUIDKey: src.GUID()},
	}
}

// link merges one relationship from src to every destination in guids:
//
//	MATCH (a:Person {guid: $_src}), (b:Task)
//	WHERE b.guid IN $_dst
//	MERGE (a)-[r:created {since: $_edge.since}]->(b)
//	RETURN r
func (r *Relation) link(ctx context.Context, g *Graph, src *Instance, guids []string, edge Props) (*dialect.Result, error) {
	keys := make([]string, 0, len(edge))
	for k := range edge {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	stmt := cypher.Statement(
		"MATCH "+cypher.Node("a", r.decl.label, "{guid: "+cypher.Param(paramSource)+"}")+", "+cypher.Node("b", r.dst.label, ""),
		"WHERE b.guid IN "+cypher.Param(paramDest),
		"MERGE "+cypher.Node("a", "", "")+cypher.Edge("r", r.edge.Label, r.dir, cypher.PropertyMap(paramEdge, keys))+cypher.Node("b", "", ""),
		"RETURN r",
	)
	params := map[string]any{
		paramSource: src.GUID(),
		paramDest:   guids,
	}
	if len(keys) > 0 {
		params[paramEdge] = map[string]any(edge)
	}
	return g.exec(ctx, stmt, params)
}

// unlink deletes the relationships from src matching the filters.
func (r *Relation) unlink(ctx context.Context, g *Graph, src *Instance, node, edge predicate.Filter) (Stats, error) {
	op := &operation{op: OpUnlink, label: r.decl.label, filter: predicate.Filter{GUIDKey: src.GUID()}}
	if err := r.decl.evalMutation(ctx, op); err != nil {
		return Stats{}, err
	}
	where, wparams := cypher.Where(cypher.NewGenerator(), cypher.Bind("b", node), cypher.Bind("r", edge))
	stmt := cypher.Statement(
		"MATCH "+r.pattern("a", "r", "b"),
		where,
		"DELETE r",
	)
	params := cypher.Merge(map[string]any{paramSource: src.GUID()}, wparams)
	res, err := g.exec(ctx, stmt, params)
	if err != nil {
		return Stats{}, err
	}
	return res.Stats, nil
}
