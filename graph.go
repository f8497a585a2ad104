package velograph

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/syssam/velograph/dialect"
)

// Graph is the schema registry: it holds the registered models, resolves
// relations between them and runs their statements through a driver.
//
// Registration is expected to happen once at startup, before the graph is
// used. Relations whose far endpoint is not registered yet are queued and
// resolved by later registrations.
type Graph struct {
	driver dialect.Driver
	log    zerolog.Logger
	cache  Cache
	ttl    time.Duration

	mu      sync.RWMutex
	models  map[string]*Model
	order   []*Model
	pending map[string][]*Relation // keyed by missing label, "" for deferred refs
}

// Option configures a Graph.
type Option func(*Graph)

// Log sets the logger of the graph. Registration and resolution are logged
// at debug level.
func Log(logger zerolog.Logger) Option {
	return func(g *Graph) {
		g.log = logger
	}
}

// WithCache sets the default node cache of the models registered in the
// graph.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(g *Graph) {
		g.cache, g.ttl = c, ttl
	}
}

// NewGraph returns an empty graph running statements through drv.
func NewGraph(drv dialect.Driver, opts ...Option) *Graph {
	g := &Graph{
		driver:  drv,
		log:     zerolog.Nop(),
		models:  make(map[string]*Model),
		pending: make(map[string][]*Relation),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With().Str("component", "registry").Logger()
	return g
}

// Driver returns the driver of the graph.
func (g *Graph) Driver() dialect.Driver { return g.driver }

// Close closes the driver.
func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// Define creates a model with the given label and registers it.
func (g *Graph) Define(label string) (*Model, error) {
	m := NewModel(label)
	if err := g.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Register adds m to the graph, then resolves the queued relations that were
// waiting for it.
func (g *Graph) Register(m *Model) error {
	if m == nil || m.label == "" {
		return NewConfigError("model without label")
	}
	g.mu.Lock()
	if _, ok := g.models[m.label]; ok {
		g.mu.Unlock()
		return NewConfigError("model %s is already registered", m.label)
	}
	if m.graph != nil && m.graph != g {
		g.mu.Unlock()
		return NewConfigError("model %s is registered in another graph", m.label)
	}
	m.graph = g
	if m.cache == nil && g.cache != nil {
		m.cache, m.ttl = g.cache, g.ttl
	}
	g.models[m.label] = m
	g.order = append(g.order, m)
	waiting := append(g.pending[m.label], g.pending[""]...)
	delete(g.pending, m.label)
	delete(g.pending, "")
	g.mu.Unlock()

	g.log.Debug().Str("label", m.label).Int("waiting", len(waiting)).Msg("model registered")
	var errs []error
	for _, rel := range waiting {
		errs = append(errs, g.attach(rel))
	}
	return NewAggregateError(errs...)
}

// RegisterRelation declares a relation on the model referenced by
// declaring. The declaring model must already be registered; declaring a
// relation on a model that is not is a configuration error. The relation is
// resolved immediately if its far endpoint is registered, and queued
// otherwise.
func (g *Graph) RegisterRelation(declaring *Ref, name string, spec RelationSpec) (*Relation, error) {
	decl := g.Resolve(declaring)
	if decl == nil {
		return nil, NewConfigError("relation %q declared before model %s is registered", name, declaring)
	}
	rel, err := newRelation(decl, name, spec)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	for _, r := range decl.relations {
		if r.name == rel.name {
			g.mu.Unlock()
			return nil, NewConfigError("relation %s.%s is already declared", decl.label, rel.name)
		}
	}
	decl.relations = append(decl.relations, rel)
	g.mu.Unlock()
	if err := g.attach(rel); err != nil {
		g.mu.Lock()
		decl.relations = decl.relations[:len(decl.relations)-1]
		g.mu.Unlock()
		return nil, err
	}
	return rel, nil
}

// Bind associates a constructor and relations with the model referenced by
// declaring. The model must already be registered.
func (g *Graph) Bind(declaring *Ref, ctor Constructor, rels ...RelationSpec) error {
	m := g.Resolve(declaring)
	if m == nil {
		return NewConfigError("constructor bound before model %s is registered", declaring)
	}
	if ctor != nil {
		m.ctor = ctor
	}
	for _, spec := range rels {
		if _, err := g.RegisterRelation(Direct(m), spec.Name, spec); err != nil {
			return err
		}
	}
	return nil
}

// attach resolves rel, or queues it under the label it is waiting for. It
// fails when both endpoints are known but the relation cannot be formed.
func (g *Graph) attach(rel *Relation) error {
	missing, ok := rel.resolve(g)
	if ok {
		g.log.Debug().
			Str("label", rel.decl.label).
			Str("relation", rel.name).
			Str("to", rel.dst.label).
			Stringer("direction", rel.dir).
			Msg("relation resolved")
		return nil
	}
	if err := rel.err(); err != nil {
		g.log.Warn().Err(err).Msg("invalid relation")
		return err
	}
	g.mu.Lock()
	g.pending[missing] = append(g.pending[missing], rel)
	g.mu.Unlock()
	g.log.Debug().
		Str("label", rel.decl.label).
		Str("relation", rel.name).
		Str("missing", missing).
		Msg("relation queued")
	return nil
}

// Resolve returns the registered model ref refers to, or nil. A non-nil
// result is cached in ref.
func (g *Graph) Resolve(ref *Ref) *Model {
	if ref == nil {
		return nil
	}
	return ref.resolve(g)
}

// Lookup returns the model registered under label.
func (g *Graph) Lookup(label string) (*Model, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.models[label]
	return m, ok
}

// Models returns the registered models in registration order.
func (g *Graph) Models() []*Model {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Model(nil), g.order...)
}

// Pending returns the relations still waiting for an endpoint.
func (g *Graph) Pending() []*Relation {
	g.mu.RLock()
	var all []*Relation
	for _, m := range g.order {
		all = append(all, m.relations...)
	}
	g.mu.RUnlock()

	var rels []*Relation
	for _, r := range all {
		if !r.Resolved() {
			rels = append(rels, r)
		}
	}
	return rels
}

// Validate retries resolution of every pending relation and reports the
// ones that still cannot resolve.
func (g *Graph) Validate() error {
	var errs []error
	for _, rel := range g.Pending() {
		missing, ok := rel.resolve(g)
		if ok {
			g.removePending(rel)
			continue
		}
		if err := rel.err(); err != nil {
			errs = append(errs, err)
			continue
		}
		if missing == "" {
			missing = "<deferred>"
		}
		errs = append(errs, NewConfigError("relation %s.%s: model %s is never registered", rel.decl.label, rel.name, missing))
	}
	return NewAggregateError(errs...)
}

func (g *Graph) removePending(rel *Relation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, rels := range g.pending {
		for i, r := range rels {
			if r == rel {
				g.pending[k] = append(rels[:i:i], rels[i+1:]...)
				if len(g.pending[k]) == 0 {
					delete(g.pending, k)
				}
				return
			}
		}
	}
}

func (g *Graph) lookup(label string) *Model {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.models[label]
}

// exec runs a statement. Driver errors are returned unchanged.
func (g *Graph) exec(ctx context.Context, stmt string, params map[string]any) (*dialect.Result, error) {
	res, err := g.driver.Exec(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &dialect.Result{}
	}
	return res, nil
}

// Ref refers to a model that may not be registered yet.
type Ref struct {
	fn func() *Model

	mu    sync.Mutex
	label string
	model *Model
}

// Direct returns a reference to m.
func Direct(m *Model) *Ref {
	ref := &Ref{model: m}
	if m != nil {
		ref.label = m.label
	}
	return ref
}

// Deferred returns a reference evaluated lazily by calling fn, e.g. to refer
// to a package-level model variable initialized later.
func Deferred(fn func() *Model) *Ref {
	return &Ref{fn: fn}
}

// Named returns a reference to the model registered under label.
func Named(label string) *Ref {
	return &Ref{label: label}
}

// Label returns the label the reference is known to point at, or "" for an
// unevaluated deferred reference.
func (r *Ref) Label() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.label
}

// String implements fmt.Stringer.
func (r *Ref) String() string {
	if label := r.Label(); label != "" {
		return label
	}
	return "<deferred>"
}

// resolve returns the model r refers to when it is registered in g. r.mu is
// released before the deferred function or the graph are consulted.
func (r *Ref) resolve(g *Graph) *Model {
	r.mu.Lock()
	label, m := r.label, r.model
	r.mu.Unlock()
	if m != nil && m.graph == g {
		return m
	}
	switch {
	case r.fn != nil:
		m = r.fn()
	case m != nil:
	case label != "":
		m = g.lookup(label)
	}
	if m == nil {
		return nil
	}
	r.mu.Lock()
	if r.label == "" {
		r.label = m.label
	}
	r.model = m
	r.mu.Unlock()
	if m.graph != g {
		return nil
	}
	return m
}

// missing returns the worklist key of an unresolved reference.
func (r *Ref) missing() string {
	return r.Label()
}
