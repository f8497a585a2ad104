// Package dataloader batches and deduplicates node loads.
//
// A Loader coalesces concurrent loads of the same key and caches what it
// loaded for its own lifetime, typically one request. NewModelLoader loads
// nodes by identity, NewRelationLoader loads the destinations of a Many
// relation for many sources in one statement:
//
//	tasks := dataloader.NewModelLoader(Task)
//	task, err := tasks.Load(ctx, guid)
//
//	created := dataloader.NewRelationLoader(Person, "tasks")
//	lists, errs := created.LoadMany(ctx, personGUIDs)
//
// Loaders of a request travel in its context:
//
//	ctx = dataloader.NewContext(ctx, &Loaders{Tasks: tasks})
//	loaders, ok := dataloader.FromContext[*Loaders](ctx)
package dataloader

import (
	"context"
	"errors"
)

// ErrNotFound is reported for the keys a batch found nothing for.
var ErrNotFound = errors.New("velograph/dataloader: node not found")

// KeyFunc returns the key of a loaded value.
type KeyFunc[K comparable, V any] func(V) K

// BatchFunc loads the values of keys. It returns either one value and one
// error per key, in the order of keys, or no values and a single error
// failing the whole batch.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, []error)

// OrderByKeys lines values up with keys, as a BatchFunc must return them.
// Keys without a value get ErrNotFound; repeated keys share a value.
func OrderByKeys[K comparable, V any](keys []K, values []V, key KeyFunc[K, V]) ([]V, []error) {
	byKey := make(map[K]V, len(values))
	for _, v := range values {
		byKey[key(v)] = v
	}
	out := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, k := range keys {
		v, ok := byKey[k]
		if !ok {
			errs[i] = ErrNotFound
			continue
		}
		out[i] = v
	}
	return out, errs
}

type loadersKey struct{}

// NewContext returns a context carrying the loaders of a request.
func NewContext[T any](ctx context.Context, loaders T) context.Context {
	return context.WithValue(ctx, loadersKey{}, loaders)
}

// FromContext returns the loaders stored by NewContext.
func FromContext[T any](ctx context.Context) (T, bool) {
	v, ok := ctx.Value(loadersKey{}).(T)
	return v, ok
}
