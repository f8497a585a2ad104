package dataloader

import (
	"context"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/predicate"
)

// FindByGUIDs loads the nodes of m with the given identities in a single
// statement. The results follow the order of guids; missing nodes get
// ErrNotFound.
func FindByGUIDs(ctx context.Context, m *velograph.Model, guids []string) ([]*velograph.Instance, []error) {
	insts, err := m.Find(ctx, predicate.Filter{velograph.GUIDKey: predicate.In(anys(guids)...)})
	if err != nil {
		return nil, []error{err}
	}
	return OrderByKeys(guids, insts, (*velograph.Instance).GUID)
}

// NodeLoader loads the nodes of a model by identity.
type NodeLoader struct {
	*Loader[string, *velograph.Instance]
	model *velograph.Model
}

// NewModelLoader returns a NodeLoader of the nodes of m.
func NewModelLoader(m *velograph.Model) *NodeLoader {
	return &NodeLoader{
		Loader: NewLoader(func(ctx context.Context, guids []string) ([]*velograph.Instance, []error) {
			return FindByGUIDs(ctx, m, guids)
		}),
		model: m,
	}
}

// Find returns the nodes matching filter, and primes the loader with them.
func (l *NodeLoader) Find(ctx context.Context, filter predicate.Filter) ([]*velograph.Instance, error) {
	insts, err := l.model.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	l.PrimeMany(insts, (*velograph.Instance).GUID)
	return insts, nil
}

// Delete deletes the nodes matching match and drops them from the loader.
// The nodes are found first, then deleted by identity, so the find hooks
// and policies of the model select what is deleted.
func (l *NodeLoader) Delete(ctx context.Context, match predicate.Filter, detach bool) (int, error) {
	insts, err := l.Find(ctx, match)
	if err != nil || len(insts) == 0 {
		return 0, err
	}
	guids := make([]string, len(insts))
	for i, inst := range insts {
		guids[i] = inst.GUID()
	}
	defer l.Clear(guids...)
	return l.model.Delete(ctx, predicate.Filter{velograph.GUIDKey: predicate.In(anys(guids)...)}, detach)
}

// NewRelationLoader returns a Loader of the destinations of the Many
// relation name of m, keyed by source identity. A batch runs one include
// statement for all of its sources.
func NewRelationLoader(m *velograph.Model, name string) *Loader[string, []*velograph.Instance] {
	return NewLoader(func(ctx context.Context, guids []string) ([][]*velograph.Instance, []error) {
		roots, err := m.FindAndInclude(predicate.Filter{velograph.GUIDKey: predicate.In(anys(guids)...)}).
			Include(func(p *velograph.Placeholder) *velograph.Fragment {
				return p.Many(name).Get(nil, nil)
			}).
			All(ctx)
		if err != nil {
			return nil, []error{err}
		}
		sources, errs := OrderByKeys(guids, roots, (*velograph.Instance).GUID)
		out := make([][]*velograph.Instance, len(guids))
		for i, src := range sources {
			if errs[i] == nil {
				out[i], errs[i] = src.Loaded(name)
			}
		}
		return out, errs
	})
}

func anys(guids []string) []any {
	out := make([]any, len(guids))
	for i, g := range guids {
		out[i] = g
	}
	return out
}
