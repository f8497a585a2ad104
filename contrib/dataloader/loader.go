package dataloader

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader loads values by key through a BatchFunc. Concurrent loads of the
// same key share one call, and loaded values are cached until cleared.
//
// A Loader is safe for concurrent use.
type Loader[K comparable, V any] struct {
	batch BatchFunc[K, V]
	group singleflight.Group

	mu    sync.RWMutex
	cache map[K]V
}

// NewLoader returns a Loader calling batch for the keys it has not cached.
func NewLoader[K comparable, V any](batch BatchFunc[K, V]) *Loader[K, V] {
	return &Loader[K, V]{batch: batch, cache: make(map[K]V)}
}

// Load returns the value of key.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	if v, ok := l.cached(key); ok {
		return v, nil
	}
	v, err, _ := l.group.Do(fmt.Sprint(key), func() (any, error) {
		vs, errs := l.batch(ctx, []K{key})
		v, err := resultAt(vs, errs, 0)
		if err != nil {
			return v, err
		}
		l.Prime(key, v)
		return v, nil
	})
	val, _ := v.(V)
	return val, err
}

// LoadMany returns the values of keys in order, loading the keys not cached
// with a single batch call.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) ([]V, []error) {
	values := make([]V, len(keys))
	errs := make([]error, len(keys))
	var (
		missing []K
		pending = make(map[K][]int)
	)
	for i, k := range keys {
		if v, ok := l.cached(k); ok {
			values[i] = v
			continue
		}
		if _, ok := pending[k]; !ok {
			missing = append(missing, k)
		}
		pending[k] = append(pending[k], i)
	}
	if len(missing) == 0 {
		return values, errs
	}
	vs, berrs := l.batch(ctx, missing)
	for j, k := range missing {
		v, err := resultAt(vs, berrs, j)
		if err == nil {
			l.Prime(k, v)
		}
		for _, i := range pending[k] {
			values[i], errs[i] = v, err
		}
	}
	return values, errs
}

// Prime stores the value of key, replacing a cached one.
func (l *Loader[K, V]) Prime(key K, value V) {
	l.mu.Lock()
	l.cache[key] = value
	l.mu.Unlock()
}

// PrimeMany stores values under their keys.
func (l *Loader[K, V]) PrimeMany(values []V, key KeyFunc[K, V]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, v := range values {
		l.cache[key(v)] = v
	}
}

// Clear removes keys from the cache.
func (l *Loader[K, V]) Clear(keys ...K) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		delete(l.cache, k)
	}
}

func (l *Loader[K, V]) cached(key K) (V, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.cache[key]
	return v, ok
}

// resultAt returns the result of the i-th key of a batch.
func resultAt[V any](vs []V, errs []error, i int) (V, error) {
	var zero V
	switch {
	case i < len(errs) && errs[i] != nil:
		return zero, errs[i]
	case len(vs) == 0 && len(errs) == 1:
		return zero, errs[0]
	case i >= len(vs):
		return zero, ErrNotFound
	}
	return vs[i], nil
}
