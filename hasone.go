package velograph

import (
	"context"
	"errors"

	"github.com/syssam/velograph/cypher"
	"github.com/syssam/velograph/predicate"
)

// HasOne is the accessor of a One relation of one instance.
//
// The graph itself does not enforce the cardinality: every read fails with
// a *CardinalityError when more than one relationship is found.
type HasOne struct {
	rel *Relation
	src *Instance
	err error
}

// Relation returns the relation of the accessor.
func (h *HasOne) Relation() *Relation { return h.rel }

// Get returns the linked destination, or nil when there is none.
func (h *HasOne) Get(ctx context.Context) (*Instance, error) {
	g, err := prepare(h.err, h.rel, h.src)
	if err != nil {
		return nil, err
	}
	dst := h.rel.Target()
	node, err := dst.queryFilter(ctx, nil)
	if err != nil {
		return nil, err
	}
	where, wparams := cypher.Where(cypher.NewGenerator(), cypher.Bind("b", node))
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
	switch n := len(res.Rows); {
	case n == 0:
		return nil, nil
	case n > 1:
		return nil, h.cardinality(n)
	}
	inst, ok := dst.wrap(res.Rows[0], "b", "r")
	if !ok {
		return nil, NewStatementError(stmt, params, "row 0 has no node %q", "b")
	}
	if err := dst.afterFind(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Create replaces the linked destination with a new node created from
// props.
//
// Create is destructive: it first deletes every relationship of this
// relation from the source, then creates the new destination and links it.
// Previous destinations are kept but no longer linked. Use Add to link
// without unlinking.
func (h *HasOne) Create(ctx context.Context, props Props, edge Props) (*Instance, error) {
	g, err := prepare(h.err, h.rel, h.src)
	if err != nil {
		return nil, err
	}
	if err := h.rel.decl.evalMutation(ctx, h.rel.linkOp(h.src, edge)); err != nil {
		return nil, err
	}
	if _, err := h.rel.unlink(ctx, g, h.src, nil, nil); err != nil {
		return nil, err
	}
	inst, err := h.rel.Target().Create(ctx, props)
	if err != nil {
		return nil, err
	}
	res, err := h.rel.link(ctx, g, h.src, []string{inst.GUID()}, edge)
	if err == nil && len(res.Rows) == 0 {
		err = errors.New("no relationship returned")
	}
	if err != nil {
		return nil, &LinkError{Relation: h.rel.name, Instance: inst, Err: err}
	}
	if rp, ok := res.Rows[0].Props("r"); ok {
		inst.RelationProps = Props(rp)
	}
	return inst, nil
}

// Add links an existing destination to the source. It reports whether a
// relationship was created, false meaning it already existed. Other
// destinations stay linked.
func (h *HasOne) Add(ctx context.Context, inst *Instance, edge Props) (bool, error) {
	g, err := prepare(h.err, h.rel, h.src)
	if err != nil {
		return false, err
	}
	guids, err := h.rel.targets([]*Instance{inst})
	if err != nil {
		return false, err
	}
	if err := h.rel.decl.evalMutation(ctx, h.rel.linkOp(h.src, edge)); err != nil {
		return false, err
	}
	res, err := h.rel.link(ctx, g, h.src, guids, edge)
	if err != nil {
		return false, err
	}
	return res.Stats.RelationshipsCreated == 1, nil
}

// Remove deletes the relationship. The destination is never deleted.
func (h *HasOne) Remove(ctx context.Context) (Stats, error) {
	g, err := prepare(h.err, h.rel, h.src)
	if err != nil {
		return Stats{}, err
	}
	return h.rel.unlink(ctx, g, h.src, nil, nil)
}

// HasOne reports whether a destination is linked. Destinations hidden
// from finds of the destination model are not counted.
func (h *HasOne) HasOne(ctx context.Context) (bool, error) {
	g, err := prepare(h.err, h.rel, h.src)
	if err != nil {
		return false, err
	}
	node, err := h.rel.Target().queryFilter(ctx, nil)
	if err != nil {
		return false, err
	}
	where, wparams := cypher.Where(cypher.NewGenerator(), cypher.Bind("b", node))
	stmt := cypher.Statement(
		"MATCH "+h.rel.pattern("a", "r", "b"),
		where,
		"RETURN count(b) AS count",
	)
	params := cypher.Merge(map[string]any{paramSource: h.src.GUID()}, wparams)
	res, err := g.exec(ctx, stmt, params)
	if err != nil {
		return false, err
	}
	switch n := countOf(res); {
	case n < 0:
		return false, NewStatementError(stmt, params, "count returned no value")
	case n > 1:
		return false, h.cardinality(n)
	default:
		return n == 1, nil
	}
}

// Update sets props on the linked destination and returns it. When nothing
// is linked there is nothing to update: Update returns nil and no error.
func (h *HasOne) Update(ctx context.Context, props Props) (*Instance, error) {
	cur, err := h.Get(ctx)
	if err != nil || cur == nil {
		return nil, err
	}
	dst := h.rel.Target()
	insts, err := dst.Update(ctx, predicate.Filter{GUIDKey: cur.GUID()}, props)
	if err != nil {
		return nil, err
	}
	if len(insts) != 1 {
		return nil, NewNotSingularErrorWithCount(dst.label, len(insts))
	}
	insts[0].RelationProps = cur.RelationProps
	return insts[0], nil
}

func (h *HasOne) cardinality(n int) error {
	return &CardinalityError{
		Relation: h.rel.name,
		Label:    h.rel.decl.label,
		GUID:     h.src.GUID(),
		Count:    n,
	}
}
