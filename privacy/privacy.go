package privacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/predicate"
)

// Decisions returned by rules. Compare with errors.Is: rules may wrap them
// with Allowf, Denyf and Skipf. A nil error abstains like Skip.
var (
	Allow = errors.New("velograph/privacy: allow rule")
	Deny  = errors.New("velograph/privacy: deny rule")
	Skip  = errors.New("velograph/privacy: skip rule")
)

// Allowf returns an Allow decision carrying a message.
func Allowf(format string, a ...any) error { return decisionf(Allow, format, a) }

// Denyf returns a Deny decision carrying a message.
func Denyf(format string, a ...any) error { return decisionf(Deny, format, a) }

// Skipf returns a Skip decision carrying a message.
func Skipf(format string, a ...any) error { return decisionf(Skip, format, a) }

func decisionf(decision error, format string, a []any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), decision)
}

// abstains reports whether a rule returning d left the decision to the next
// rule.
func abstains(d error) bool {
	return d == nil || errors.Is(d, Skip)
}

// first returns the decision of the first rule that does not abstain, or
// nil.
func first[R any](rules []R, eval func(R) error) error {
	for _, r := range rules {
		if d := eval(r); !abstains(d) {
			return d
		}
	}
	return nil
}

type (
	// QueryRule decides on the reads of a model. It may narrow the query
	// with Where.
	QueryRule interface {
		EvalQuery(context.Context, velograph.Query) error
	}

	// MutationRule decides on the writes of a model. It may narrow updates,
	// deletions and unlinks with Where.
	MutationRule interface {
		EvalMutation(context.Context, velograph.Mutation) error
	}

	// QueryMutationRule decides on both reads and writes.
	QueryMutationRule interface {
		QueryRule
		MutationRule
	}
)

// QueryRuleFunc adapts a function to a QueryRule.
type QueryRuleFunc func(context.Context, velograph.Query) error

// EvalQuery calls f.
func (f QueryRuleFunc) EvalQuery(ctx context.Context, q velograph.Query) error { return f(ctx, q) }

// MutationRuleFunc adapts a function to a MutationRule.
type MutationRuleFunc func(context.Context, velograph.Mutation) error

// EvalMutation calls f.
func (f MutationRuleFunc) EvalMutation(ctx context.Context, m velograph.Mutation) error {
	return f(ctx, m)
}

// Rule is a QueryMutationRule made of two functions. A nil function skips.
type Rule struct {
	Query    QueryRuleFunc
	Mutation MutationRuleFunc
}

// EvalQuery implements QueryRule.
func (r Rule) EvalQuery(ctx context.Context, q velograph.Query) error {
	if r.Query == nil {
		return Skip
	}
	return r.Query(ctx, q)
}

// EvalMutation implements MutationRule.
func (r Rule) EvalMutation(ctx context.Context, m velograph.Mutation) error {
	if r.Mutation == nil {
		return Skip
	}
	return r.Mutation(ctx, m)
}

// ContextQueryMutationRule returns a rule deciding from the context alone,
// whatever the operation.
func ContextQueryMutationRule(eval func(context.Context) error) QueryMutationRule {
	return Rule{
		Query:    func(ctx context.Context, _ velograph.Query) error { return eval(ctx) },
		Mutation: func(ctx context.Context, _ velograph.Mutation) error { return eval(ctx) },
	}
}

// AlwaysAllowRule allows every operation.
func AlwaysAllowRule() QueryMutationRule {
	return ContextQueryMutationRule(func(context.Context) error { return Allow })
}

// AlwaysDenyRule denies every operation.
func AlwaysDenyRule() QueryMutationRule {
	return ContextQueryMutationRule(func(context.Context) error { return Deny })
}

// OnMutationOperation restricts rule to the mutations matching op, which may
// combine several operations. Other mutations are skipped.
func OnMutationOperation(rule MutationRule, op velograph.Op) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m velograph.Mutation) error {
		if !m.Op().Is(op) {
			return Skip
		}
		return rule.EvalMutation(ctx, m)
	})
}

// DenyMutationOperationRule denies the mutations matching op.
func DenyMutationOperationRule(op velograph.Op) MutationRule {
	return OnMutationOperation(MutationRuleFunc(func(_ context.Context, m velograph.Mutation) error {
		return Denyf("velograph/privacy: %s on %s is not allowed", m.Op(), m.Label())
	}), op)
}

// OnLabel restricts rule to the operations on the model labeled label, so
// that one policy can be shared by several models.
func OnLabel(label string, rule QueryMutationRule) QueryMutationRule {
	return Rule{
		Query: func(ctx context.Context, q velograph.Query) error {
			if q.Label() != label {
				return Skip
			}
			return rule.EvalQuery(ctx, q)
		},
		Mutation: func(ctx context.Context, m velograph.Mutation) error {
			if m.Label() != label {
				return Skip
			}
			return rule.EvalMutation(ctx, m)
		},
	}
}

// QueryPolicy is an ordered list of query rules. The first rule that does
// not skip decides.
type QueryPolicy []QueryRule

// EvalQuery implements QueryRule.
func (p QueryPolicy) EvalQuery(ctx context.Context, q velograph.Query) error {
	return first(p, func(r QueryRule) error { return r.EvalQuery(ctx, q) })
}

// MutationPolicy is an ordered list of mutation rules. The first rule that
// does not skip decides.
type MutationPolicy []MutationRule

// EvalMutation implements MutationRule.
func (p MutationPolicy) EvalMutation(ctx context.Context, m velograph.Mutation) error {
	return first(p, func(r MutationRule) error { return r.EvalMutation(ctx, m) })
}

// Policy pairs the query and mutation rules of a model.
type Policy struct {
	Query    QueryPolicy
	Mutation MutationPolicy
}

// EvalQuery implements velograph.Policy.
func (p Policy) EvalQuery(ctx context.Context, q velograph.Query) error {
	return p.Query.EvalQuery(ctx, q)
}

// EvalMutation implements velograph.Policy.
func (p Policy) EvalMutation(ctx context.Context, m velograph.Mutation) error {
	return p.Mutation.EvalMutation(ctx, m)
}

// Policies is the policy to install on a model. Its policies run in order
// until one decides; Allow is reported as nil, which models read as allowed,
// and any other decision as a denial. A decision stored in the context with
// DecisionContext overrides the policies.
type Policies []velograph.Policy

// EvalQuery implements velograph.Policy.
func (ps Policies) EvalQuery(ctx context.Context, q velograph.Query) error {
	return ps.eval(ctx, func(p velograph.Policy) error { return p.EvalQuery(ctx, q) })
}

// EvalMutation implements velograph.Policy.
func (ps Policies) EvalMutation(ctx context.Context, m velograph.Mutation) error {
	return ps.eval(ctx, func(p velograph.Policy) error { return p.EvalMutation(ctx, m) })
}

func (ps Policies) eval(ctx context.Context, eval func(velograph.Policy) error) error {
	if d, ok := DecisionFromContext(ctx); ok {
		return d
	}
	if d := first(ps, eval); !errors.Is(d, Allow) {
		return d
	}
	return nil
}

// PolicyProvider is implemented by mixins carrying a policy.
type PolicyProvider interface {
	Policy() velograph.Policy
}

// NewPolicies combines the policies of providers, skipping nil ones:
//
//	task.SetPolicy(privacy.NewPolicies(mixin.TenantID{}, taskPolicy{}))
func NewPolicies(providers ...PolicyProvider) velograph.Policy {
	ps := make(Policies, 0, len(providers))
	for _, p := range providers {
		if policy := p.Policy(); policy != nil {
			ps = append(ps, policy)
		}
	}
	return ps
}

type decisionKey struct{}

// DecisionContext returns a context carrying decision, which then bypasses
// the policies of every model. Skip and nil leave ctx unchanged.
func DecisionContext(parent context.Context, decision error) context.Context {
	if abstains(decision) {
		return parent
	}
	return context.WithValue(parent, decisionKey{}, decision)
}

// DecisionFromContext returns the decision stored in ctx. An Allow decision
// is returned as nil.
func DecisionFromContext(ctx context.Context) (error, bool) {
	d, ok := ctx.Value(decisionKey{}).(error)
	if ok && errors.Is(d, Allow) {
		return nil, true
	}
	return d, ok
}

// Filter narrows the nodes a query or a mutation applies to. Both
// velograph.Query and velograph.Mutation implement it.
type Filter interface {
	Where(predicate.Filter)
}

// FilterFunc is a rule narrowing the matched nodes:
//
//	privacy.FilterFunc(func(ctx context.Context, f privacy.Filter) error {
//	    f.Where(predicate.Filter{"workspace": workspaceID})
//	    return privacy.Skip
//	})
//
// Creations match no nodes and are skipped.
type FilterFunc func(context.Context, Filter) error

// EvalQuery implements QueryRule.
func (f FilterFunc) EvalQuery(ctx context.Context, q velograph.Query) error {
	return f(ctx, q)
}

// EvalMutation implements MutationRule.
func (f FilterFunc) EvalMutation(ctx context.Context, m velograph.Mutation) error {
	if m.Op().Is(velograph.OpCreate) {
		return Skip
	}
	return f(ctx, m)
}

var (
	_ QueryMutationRule = Rule{}
	_ QueryMutationRule = FilterFunc(nil)
	_ velograph.Policy  = Policies(nil)
	_ velograph.Policy  = Policy{}
)
