package velograph

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/velograph/cypher"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/predicate"
)

// Model is the definition of one kind of node, identified by its label.
//
// Models are configured and registered once at startup; after that they are
// safe for concurrent use.
type Model struct {
	label     string
	graph     *Graph
	relations []*Relation
	defaults  Props
	hooks     []Hooks
	policies  []Policy
	cache     Cache
	ttl       time.Duration
	ctor      Constructor
}

// NewModel returns an unregistered model. Register it with Graph.Register
// before declaring relations on it.
func NewModel(label string) *Model {
	return &Model{label: label, defaults: make(Props)}
}

// Label returns the node label.
func (m *Model) Label() string { return m.label }

// Graph returns the graph the model is registered in, or nil.
func (m *Model) Graph() *Graph { return m.graph }

// Defaults merges p into the default properties of created nodes. A value
// of type func() any is called at every creation.
func (m *Model) Defaults(p Props) *Model {
	maps.Copy(m.defaults, p)
	return m
}

// Use appends lifecycle hooks. Hooks run in the order they were added.
func (m *Model) Use(hooks ...Hooks) *Model {
	m.hooks = append(m.hooks, hooks...)
	return m
}

// SetPolicy adds a privacy policy. Policies run in the order they were added
// and the first error denies the operation.
func (m *Model) SetPolicy(p Policy) *Model {
	if p != nil {
		m.policies = append(m.policies, p)
	}
	return m
}

// SetCache sets the node cache of the model, overriding the graph default.
func (m *Model) SetCache(c Cache, ttl time.Duration) *Model {
	m.cache, m.ttl = c, ttl
	return m
}

// Constructor sets the constructor of the values returned by
// Instance.Value.
func (m *Model) Constructor(ctor Constructor) *Model {
	m.ctor = ctor
	return m
}

// Mixin applies the defaults and hooks of the given mixins. Mixins that also
// provide a policy through a Policy() Policy method add it to the model.
// Defaults set later with Defaults take precedence.
func (m *Model) Mixin(mixins ...Mixin) *Model {
	for _, mx := range mixins {
		for k, v := range mx.Defaults() {
			if _, ok := m.defaults[k]; !ok {
				m.defaults[k] = v
			}
		}
		m.hooks = append(m.hooks, mx.Hooks()...)
		if pp, ok := mx.(interface{ Policy() Policy }); ok {
			m.SetPolicy(pp.Policy())
		}
	}
	return m
}

// HasMany declares a relation to many destinations through edge. The
// model must be registered.
func (m *Model) HasMany(name string, edge EdgeSpec, dir ...Direction) (*Relation, error) {
	return m.relate(name, edge, Many, dir)
}

// HasOne declares a relation to at most one destination through edge. The
// model must be registered.
func (m *Model) HasOne(name string, edge EdgeSpec, dir ...Direction) (*Relation, error) {
	return m.relate(name, edge, One, dir)
}

func (m *Model) relate(name string, edge EdgeSpec, card Cardinality, dir []Direction) (*Relation, error) {
	if m.graph == nil {
		return nil, NewConfigError("relation %q declared before model %s is registered", name, m.label)
	}
	spec := RelationSpec{Name: name, Edge: edge, Cardinality: card}
	if len(dir) > 0 {
		spec.Direction = dir[0]
	}
	return m.graph.RegisterRelation(Direct(m), name, spec)
}

// Relations returns the relations declared on the model.
func (m *Model) Relations() []*Relation {
	return append([]*Relation(nil), m.relations...)
}

// Relation returns the relation with the given accessor name.
func (m *Model) Relation(name string) (*Relation, bool) {
	for _, r := range m.relations {
		if r.name == name {
			return r, true
		}
	}
	return nil, false
}

// Create creates a node from the default properties overridden by props,
// with a fresh identity.
func (m *Model) Create(ctx context.Context, props Props) (*Instance, error) {
	g, err := m.registered()
	if err != nil {
		return nil, err
	}
	p := m.initial(props)
	guid := p.GUID()
	op := &operation{op: OpCreate, label: m.label, props: p}
	if err := m.evalMutation(ctx, op); err != nil {
		return nil, err
	}
	for _, h := range m.hooks {
		if h.BeforeCreate == nil {
			continue
		}
		if p, err = h.BeforeCreate(ctx, p); err != nil {
			return nil, err
		}
	}
	if p == nil {
		p = make(Props)
	}
	if p.GUID() == "" {
		p[GUIDKey] = guid
	}
	stmt := cypher.Statement(
		"CREATE "+cypher.Node("n", m.label, cypher.Param(paramProps)),
		"RETURN n",
	)
	params := map[string]any{paramProps: map[string]any(p)}
	res, err := g.exec(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) != 1 {
		return nil, NewStatementError(stmt, params, "create %s returned %d rows, expected 1", m.label, len(res.Rows))
	}
	inst, ok := m.wrap(res.Rows[0], "n", "")
	if !ok {
		return nil, NewStatementError(stmt, params, "create %s returned no node", m.label)
	}
	for _, h := range m.hooks {
		if h.AfterCreate == nil {
			continue
		}
		if err := h.AfterCreate(ctx, inst); err != nil {
			return nil, err
		}
	}
	m.cachePut(ctx, inst)
	return inst, nil
}

// initial returns the properties of a node about to be created.
func (m *Model) initial(props Props) Props {
	p := make(Props, len(m.defaults)+len(props)+1)
	for k, v := range m.defaults {
		if fn, ok := v.(func() any); ok {
			v = fn()
		}
		p[k] = v
	}
	maps.Copy(p, props)
	p[GUIDKey] = uuid.NewString()
	return p
}

// FindByGUID returns the node with the given identity, or nil when there is
// none. It fails with a NotSingularError when the identity is not unique.
func (m *Model) FindByGUID(ctx context.Context, guid string) (*Instance, error) {
	g, err := m.registered()
	if err != nil {
		return nil, err
	}
	filter, err := m.queryFilter(ctx, predicate.Filter{GUIDKey: guid})
	if err != nil {
		return nil, err
	}
	rest := filter.Clone()
	if v, ok := rest[GUIDKey].(string); ok && v == guid {
		delete(rest, GUIDKey)
	}
	cacheable := len(rest) == 0
	if cacheable {
		if inst := m.cacheGet(ctx, guid); inst != nil {
			if err := m.afterFind(ctx, inst); err != nil {
				return nil, err
			}
			return inst, nil
		}
	}
	where, wparams := cypher.Where(cypher.NewGenerator(), cypher.Bind("n", rest))
	stmt := cypher.Statement(
		"MATCH "+cypher.Node("n", m.label, "{guid: "+cypher.Param(paramGUID)+"}"),
		where,
		"RETURN n",
	)
	params := cypher.Merge(map[string]any{paramGUID: guid}, wparams)
	res, err := g.exec(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	switch n := len(res.Rows); {
	case n == 0:
		return nil, nil
	case n > 1:
		return nil, NewNotSingularErrorWithCount(m.label, n)
	}
	inst, ok := m.wrap(res.Rows[0], "n", "")
	if !ok {
		return nil, NewStatementError(stmt, params, "find %s returned no node", m.label)
	}
	if err := m.afterFind(ctx, inst); err != nil {
		return nil, err
	}
	if cacheable {
		m.cachePut(ctx, inst)
	}
	return inst, nil
}

// Find returns the nodes matching filter. A nil filter matches every node
// of the model.
func (m *Model) Find(ctx context.Context, filter predicate.Filter) ([]*Instance, error) {
	return m.find(ctx, filter, "")
}

// FindOne returns the first node matching filter, or nil.
func (m *Model) FindOne(ctx context.Context, filter predicate.Filter) (*Instance, error) {
	insts, err := m.find(ctx, filter, "LIMIT 1")
	if err != nil || len(insts) == 0 {
		return nil, err
	}
	return insts[0], nil
}

func (m *Model) find(ctx context.Context, filter predicate.Filter, limit string) ([]*Instance, error) {
	g, err := m.registered()
	if err != nil {
		return nil, err
	}
	if filter, err = m.queryFilter(ctx, filter); err != nil {
		return nil, err
	}
	where, params := cypher.Where(cypher.NewGenerator(), cypher.Bind("n", filter))
	stmt := cypher.Statement(
		"MATCH "+cypher.Node("n", m.label, ""),
		where,
		"RETURN n",
		limit,
	)
	res, err := g.exec(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	insts, err := m.wrapAll(stmt, params, res, "n", "")
	if err != nil {
		return nil, err
	}
	for _, inst := range insts {
		if err := m.afterFind(ctx, inst); err != nil {
			return nil, err
		}
	}
	return insts, nil
}

// Count returns the number of nodes matching filter, or -1 when the result
// has no count.
func (m *Model) Count(ctx context.Context, filter predicate.Filter) (int, error) {
	g, err := m.registered()
	if err != nil {
		return -1, err
	}
	if filter, err = m.queryFilter(ctx, filter); err != nil {
		return -1, err
	}
	where, params := cypher.Where(cypher.NewGenerator(), cypher.Bind("n", filter))
	stmt := cypher.Statement(
		"MATCH "+cypher.Node("n", m.label, ""),
		where,
		"RETURN count(n) AS count",
	)
	res, err := g.exec(ctx, stmt, params)
	if err != nil {
		return -1, err
	}
	return countOf(res), nil
}

// Update sets props on the nodes matching match and returns them. The
// identity property is never updated.
func (m *Model) Update(ctx context.Context, match predicate.Filter, props Props) ([]*Instance, error) {
	g, err := m.registered()
	if err != nil {
		return nil, err
	}
	op := &operation{op: OpUpdate, label: m.label, props: props.Clone(), filter: match.Clone()}
	if err := m.evalMutation(ctx, op); err != nil {
		return nil, err
	}
	if match, props, err = m.beforeUpdate(ctx, op.filter, op.props); err != nil {
		return nil, err
	}
	set, sparams, err := cypher.Set(cypher.Assign("n", props))
	if err != nil {
		return nil, NewValidationError(m.label, err)
	}
	where, wparams := cypher.Where(cypher.NewGenerator(), cypher.Bind("n", match))
	stmt := cypher.Statement(
		"MATCH "+cypher.Node("n", m.label, ""),
		where,
		"SET "+set,
		"RETURN n",
	)
	params := cypher.Merge(wparams, sparams)
	res, err := g.exec(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	insts, err := m.wrapAll(stmt, params, res, "n", "")
	if err != nil {
		return nil, err
	}
	if err := m.afterUpdate(ctx, insts); err != nil {
		return nil, err
	}
	return insts, nil
}

// Delete deletes the nodes matching match and returns how many were
// deleted. Nodes that still have relationships can only be deleted with
// detach set.
func (m *Model) Delete(ctx context.Context, match predicate.Filter, detach bool) (int, error) {
	g, err := m.registered()
	if err != nil {
		return 0, err
	}
	op := &operation{op: OpDelete, label: m.label, filter: match.Clone()}
	if err := m.evalMutation(ctx, op); err != nil {
		return 0, err
	}
	del := "DELETE n"
	if detach {
		del = "DETACH " + del
	}
	where, params := cypher.Where(cypher.NewGenerator(), cypher.Bind("n", op.filter))
	stmt := cypher.Statement(
		"MATCH "+cypher.Node("n", m.label, ""),
		where,
		del,
	)
	res, err := g.exec(ctx, stmt, params)
	if err != nil {
		return 0, err
	}
	m.cacheInvalidate(ctx)
	return res.Stats.NodesDeleted, nil
}

// FindAndInclude starts an include query over the nodes matching filter.
func (m *Model) FindAndInclude(filter predicate.Filter) *IncludeQuery {
	return newIncludeQuery(m, filter, rootMany)
}

// FindOneAndInclude starts an include query over the first node matching
// filter.
func (m *Model) FindOneAndInclude(filter predicate.Filter) *IncludeQuery {
	return newIncludeQuery(m, filter, rootOne)
}

// FindByGUIDAndInclude starts an include query over the node with the given
// identity.
func (m *Model) FindByGUIDAndInclude(guid string) *IncludeQuery {
	return newIncludeQuery(m, predicate.Filter{GUIDKey: guid}, rootGUID)
}

func (m *Model) registered() (*Graph, error) {
	if m.graph == nil {
		return nil, NewConfigError("model %s is not registered", m.label)
	}
	return m.graph, nil
}

// queryFilter runs the query policies and the BeforeFind hooks over filter.
func (m *Model) queryFilter(ctx context.Context, filter predicate.Filter) (predicate.Filter, error) {
	q := &operation{label: m.label, filter: filter.Clone()}
	for _, p := range m.policies {
		if err := p.EvalQuery(ctx, q); err != nil {
			return nil, NewPrivacyError(m.label, "query", err)
		}
	}
	f := q.filter
	for _, h := range m.hooks {
		if h.BeforeFind == nil {
			continue
		}
		var err error
		if f, err = h.BeforeFind(ctx, f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (m *Model) evalMutation(ctx context.Context, op *operation) error {
	for _, p := range m.policies {
		if err := p.EvalMutation(ctx, op); err != nil {
			return NewPrivacyError(m.label, op.op.String(), err)
		}
	}
	return nil
}

// beforeUpdate runs the BeforeUpdate hooks over the filter and the
// properties of an update.
func (m *Model) beforeUpdate(ctx context.Context, match predicate.Filter, props Props) (predicate.Filter, Props, error) {
	var err error
	for _, h := range m.hooks {
		if h.BeforeUpdate == nil {
			continue
		}
		if match, props, err = h.BeforeUpdate(ctx, match, props); err != nil {
			return nil, nil, err
		}
	}
	return match, props, nil
}

// afterUpdate runs the AfterUpdate hooks for every updated instance and
// caches it.
func (m *Model) afterUpdate(ctx context.Context, insts []*Instance) error {
	for _, inst := range insts {
		for _, h := range m.hooks {
			if h.AfterUpdate == nil {
				continue
			}
			if err := h.AfterUpdate(ctx, inst); err != nil {
				return err
			}
		}
		m.cachePut(ctx, inst)
	}
	return nil
}

func (m *Model) afterFind(ctx context.Context, inst *Instance) error {
	for _, h := range m.hooks {
		if h.AfterFind == nil {
			continue
		}
		if err := h.AfterFind(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}

// wrap builds an instance from the node stored under nodeKey, and the
// relationship stored under edgeKey if not empty.
func (m *Model) wrap(row dialect.Row, nodeKey, edgeKey string) (*Instance, bool) {
	props, ok := row.Props(nodeKey)
	if !ok {
		return nil, false
	}
	var rel Props
	if edgeKey != "" {
		if p, ok := row.Props(edgeKey); ok {
			rel = Props(p)
		}
	}
	return newInstance(m, Props(props), rel), true
}

func (m *Model) wrapAll(stmt string, params map[string]any, res *dialect.Result, nodeKey, edgeKey string) ([]*Instance, error) {
	insts := make([]*Instance, 0, len(res.Rows))
	for i, row := range res.Rows {
		inst, ok := m.wrap(row, nodeKey, edgeKey)
		if !ok {
			return nil, NewStatementError(stmt, params, "row %d has no node %q", i, nodeKey)
		}
		insts = append(insts, inst)
	}
	return insts, nil
}

// countOf returns the count column of the single row of res, or -1.
func countOf(res *dialect.Result) int {
	if len(res.Rows) == 0 {
		return -1
	}
	n, ok := res.Rows[0].Int("count")
	if !ok {
		return -1
	}
	return int(n)
}

func (m *Model) cacheKey(guid string) CacheKey {
	return CacheKey{Label: m.label, GUID: guid}
}

// cacheGet returns the cached node, or nil. Cache failures are logged and
// treated as misses.
func (m *Model) cacheGet(ctx context.Context, guid string) *Instance {
	if m.cache == nil {
		return nil
	}
	b, err := m.cache.Get(ctx, m.cacheKey(guid).String())
	if err == nil && b != nil {
		var props Props
		if props, err = DecodeProps(b); err == nil {
			return newInstance(m, props, nil)
		}
	}
	if err != nil {
		m.graph.log.Warn().Err(err).Str("label", m.label).Str("guid", guid).Msg("cache read failed")
	}
	return nil
}

func (m *Model) cachePut(ctx context.Context, inst *Instance) {
	if m.cache == nil || inst.GUID() == "" {
		return
	}
	b, err := EncodeProps(inst.Props)
	if err == nil {
		err = m.cache.Set(ctx, m.cacheKey(inst.GUID()).String(), b, m.ttl)
	}
	if err != nil {
		m.graph.log.Warn().Err(err).Str("label", m.label).Str("guid", inst.GUID()).Msg("cache write failed")
	}
}

// cacheInvalidate drops every cached node of the model.
func (m *Model) cacheInvalidate(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.DeletePrefix(ctx, m.cacheKey("").Prefix()); err != nil {
		m.graph.log.Warn().Err(err).Str("label", m.label).Msg("cache invalidation failed")
	}
}
