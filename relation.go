package velograph

import (
	"fmt"
	"sync"

	"github.com/go-openapi/inflect"

	"github.com/syssam/velograph/cypher"
)

// Cardinality is the number of destinations a relation links to.
type Cardinality uint8

// Relation cardinalities.
const (
	Many Cardinality = iota + 1
	One
)

// String returns the cardinality name.
func (c Cardinality) String() string {
	switch c {
	case Many:
		return "many"
	case One:
		return "one"
	}
	return fmt.Sprintf("Cardinality(%d)", uint8(c))
}

// EdgeSpec declares a relationship type between two models.
type EdgeSpec struct {
	Label    string
	From, To *Ref
}

// Edge declares relationships labeled label, going from the from model to
// the to model:
//
//	velograph.Edge("created", velograph.Named("Person"), velograph.Named("Task"))
func Edge(label string, from, to *Ref) EdgeSpec {
	return EdgeSpec{Label: label, From: from, To: to}
}

// RelationSpec declares an accessor on a model for an edge.
type RelationSpec struct {
	// Name is the accessor name. When empty it is derived from the far
	// endpoint label: "tasks" for a Many relation to Task, "supervisor"
	// for a One relation to Supervisor.
	Name        string
	Edge        EdgeSpec
	Cardinality Cardinality
	// Direction overrides the direction derived from the edge: Out when
	// the declaring model is the edge source, In otherwise.
	Direction Direction
}

// Relation is a resolved or pending accessor declaration of a model.
type Relation struct {
	name string
	edge EdgeSpec
	card Cardinality
	decl *Model

	mu       sync.Mutex
	resolved bool
	invalid  error
	dst      *Model
	dir      Direction
}

func newRelation(decl *Model, name string, spec RelationSpec) (*Relation, error) {
	if spec.Edge.Label == "" {
		return nil, NewConfigError("relation %s.%s: missing edge label", decl.label, name)
	}
	if spec.Edge.From == nil || spec.Edge.To == nil {
		return nil, NewConfigError("relation %s.%s: edge %s needs both endpoints", decl.label, name, spec.Edge.Label)
	}
	card := spec.Cardinality
	switch card {
	case 0:
		card = Many
	case Many, One:
	default:
		return nil, NewConfigError("relation %s.%s: invalid cardinality %s", decl.label, name, card)
	}
	switch spec.Direction {
	case 0, Out, In, Both:
	default:
		return nil, NewConfigError("relation %s.%s: invalid direction %d", decl.label, name, spec.Direction)
	}
	if name == "" {
		far := spec.Edge.To
		if far.Label() == decl.label && spec.Edge.From.Label() != decl.label {
			far = spec.Edge.From
		}
		if far.Label() == "" {
			return nil, NewConfigError("relation on %s through %s: a name is required when the endpoint is deferred", decl.label, spec.Edge.Label)
		}
		name = DefaultName(far.Label(), card)
	}
	return &Relation{
		name: name,
		edge: spec.Edge,
		card: card,
		decl: decl,
		dir:  spec.Direction,
	}, nil
}

// DefaultName returns the accessor name derived from a label: the
// lower-camel label, pluralized for Many relations.
func DefaultName(label string, card Cardinality) string {
	name := inflect.CamelizeDownFirst(label)
	if card == Many {
		name = inflect.Pluralize(name)
	}
	return name
}

// resolve resolves both endpoints. On failure it returns the label of the
// missing endpoint ("" when it is an unevaluated deferred reference).
//
// r.mu is never held while the endpoints resolve, since resolving a
// reference takes the graph lock.
func (r *Relation) resolve(g *Graph) (string, bool) {
	r.mu.Lock()
	resolved, invalid := r.resolved, r.invalid
	r.mu.Unlock()
	if resolved {
		return "", true
	}
	if invalid != nil {
		return "", false
	}
	from := r.edge.From.resolve(g)
	if from == nil {
		return r.edge.From.missing(), false
	}
	to := r.edge.To.resolve(g)
	if to == nil {
		return r.edge.To.missing(), false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.resolved:
		return "", true
	case r.invalid != nil:
		return "", false
	}
	dst, dir := to, Out
	switch r.decl {
	case from:
	case to:
		dst, dir = from, In
	default:
		r.invalid = NewConfigError("relation %s.%s: edge %s links %s to %s", r.decl.label, r.name, r.edge.Label, from.label, to.label)
		return "", false
	}
	if r.dir != 0 {
		dir = r.dir
	}
	r.dst, r.dir, r.resolved = dst, dir, true
	return "", true
}

// err returns why the relation can never resolve, or nil.
func (r *Relation) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invalid
}

// ensure resolves the relation for use by an accessor.
func (r *Relation) ensure() error {
	g := r.decl.graph
	if g == nil {
		return NewConfigError("model %s is not registered", r.decl.label)
	}
	missing, ok := r.resolve(g)
	if ok {
		return nil
	}
	if err := r.err(); err != nil {
		return err
	}
	return &UnresolvedError{Relation: r.name, Label: r.decl.label, Missing: missing}
}

// Name returns the accessor name.
func (r *Relation) Name() string { return r.name }

// Label returns the relationship type.
func (r *Relation) Label() string { return r.edge.Label }

// Cardinality returns the cardinality.
func (r *Relation) Cardinality() Cardinality { return r.card }

// Declaring returns the model the relation is declared on.
func (r *Relation) Declaring() *Model { return r.decl }

// Resolved reports whether both endpoints are known.
func (r *Relation) Resolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved
}

// Target returns the far endpoint, or nil while unresolved.
func (r *Relation) Target() *Model {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dst
}

// Direction returns the direction of the relation, or the declared override
// (possibly zero) while unresolved.
func (r *Relation) Direction() Direction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir
}

// String implements fmt.Stringer.
func (r *Relation) String() string {
	return fmt.Sprintf("%s.%s(%s %s)", r.decl.label, r.name, r.card, r.edge.Label)
}

// pattern renders (src:Decl {guid: $_src})-[edge:LABEL]->(dst:Target).
func (r *Relation) pattern(src, edge, dst string) string {
	return cypher.Node(src, r.decl.label, "{guid: "+cypher.Param(paramSource)+"}") +
		cypher.Edge(edge, r.edge.Label, r.dir, "") +
		cypher.Node(dst, r.dst.label, "")
}

// Fixed parameter names. Generated names are lowercase letters only, so
// these never collide with them.
const (
	paramSource = "_src"
	paramDest   = "_dst"
	paramEdge   = "_edge"
	paramProps  = "_props"
	paramGUID   = "_guid"
)
