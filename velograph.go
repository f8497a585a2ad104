package velograph

import (
	"context"
	"maps"
	"strconv"

	"github.com/syssam/velograph/cypher"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/predicate"
)

// GUIDKey is the identity property present on every node.
const GUIDKey = cypher.GUID

// Props is a property map of a node or a relationship.
type Props map[string]any

// Clone returns a shallow copy of p.
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// GUID returns the identity property, or "" when absent.
func (p Props) GUID() string {
	s, _ := p[GUIDKey].(string)
	return s
}

// Direction is the direction of a relation, seen from its declaring model.
type Direction = cypher.Direction

// Relation directions. The zero Direction means the direction is derived
// from the edge declaration.
const (
	Out  = cypher.Out
	In   = cypher.In
	Both = cypher.Both
)

// Stats is an alias of dialect.Stats, the counters returned by mutations.
type Stats = dialect.Stats

// Op represents the operation of a mutation.
type Op uint

// Mutation operations.
const (
	OpCreate Op = 1 << iota // node creation
	OpUpdate                // node property update
	OpDelete                // node deletion
	OpLink                  // relationship creation
	OpUnlink                // relationship deletion
)

// Is reports whether o matches the given operation.
func (o Op) Is(op Op) bool { return o&op != 0 }

var opNames = map[Op]string{
	OpCreate: "OpCreate",
	OpUpdate: "OpUpdate",
	OpDelete: "OpDelete",
	OpLink:   "OpLink",
	OpUnlink: "OpUnlink",
}

// String returns the name of the operation.
func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// Query is the read operation handed to query policies. Policies may narrow
// it with Where.
type Query interface {
	// Label returns the label of the queried model.
	Label() string
	// Filter returns the current filter.
	Filter() predicate.Filter
	// Where adds conditions to the filter.
	Where(predicate.Filter)
}

// Mutation is the write operation handed to mutation policies.
type Mutation interface {
	// Op returns the operation.
	Op() Op
	// Label returns the label of the mutated model.
	Label() string
	// Fields returns the properties being written.
	Fields() Props
	// Field returns the value of a property being written.
	Field(name string) (any, bool)
	// Filter returns the filter selecting the mutated nodes, if any.
	Filter() predicate.Filter
	// Where adds conditions to the filter.
	Where(predicate.Filter)
}

// Policy decides whether queries and mutations are allowed. A nil error
// allows the operation.
//
// Policies built with the privacy package should be combined with
// privacy.NewPolicies, which turns an explicit allow decision into nil.
type Policy interface {
	EvalQuery(context.Context, Query) error
	EvalMutation(context.Context, Mutation) error
}

// Hooks are the lifecycle callbacks of a model. Nil fields are skipped.
type Hooks struct {
	// BeforeCreate may transform the properties of a node about to be
	// created. The identity property is already set.
	BeforeCreate func(context.Context, Props) (Props, error)
	// AfterCreate runs for the created instance.
	AfterCreate func(context.Context, *Instance) error
	// BeforeFind may transform the filter of a find.
	BeforeFind func(context.Context, predicate.Filter) (predicate.Filter, error)
	// AfterFind runs for every found instance.
	AfterFind func(context.Context, *Instance) error
	// BeforeUpdate may transform both the match filter and the new
	// properties of an update.
	BeforeUpdate func(context.Context, predicate.Filter, Props) (predicate.Filter, Props, error)
	// AfterUpdate runs for every updated instance.
	AfterUpdate func(context.Context, *Instance) error
}

// Mixin bundles default properties and hooks that can be shared between
// models.
type Mixin interface {
	Defaults() Props
	Hooks() []Hooks
}

// Constructor builds the application value of an instance, returned by
// Instance.Value.
type Constructor func(*Instance) any

// operation implements Query and Mutation.
type operation struct {
	op     Op
	label  string
	props  Props
	filter predicate.Filter
}

func (o *operation) Op() Op                   { return o.op }
func (o *operation) Label() string            { return o.label }
func (o *operation) Fields() Props            { return o.props }
func (o *operation) Filter() predicate.Filter { return o.filter }

func (o *operation) Field(name string) (any, bool) {
	v, ok := o.props[name]
	return v, ok
}

// Where adds conditions to the filter. A condition on a property that is
// already filtered is combined with the existing one.
func (o *operation) Where(f predicate.Filter) {
	if len(f) == 0 {
		return
	}
	if o.filter == nil {
		o.filter = make(predicate.Filter, len(f))
	} else {
		o.filter = o.filter.Clone()
	}
	for k, v := range f {
		if old, ok := o.filter[k]; ok {
			o.filter[k] = predicate.And(predicate.Of(old), predicate.Of(v))
			continue
		}
		o.filter[k] = v
	}
}

var (
	_ Query    = (*operation)(nil)
	_ Mutation = (*operation)(nil)
)
