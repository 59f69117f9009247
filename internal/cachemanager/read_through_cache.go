package cachemanager

import (
	"context"
	"time"
)

// LoadFunc fetches the value for key from the backing store.
// found=false means the store has nothing under key.
type LoadFunc[K ~string, V any] func(ctx context.Context, key K) (value V, found bool, err error)

// ValidateFunc reports whether a cached value still matches the backing
// store. A false result evicts the entry and reloads it.
type ValidateFunc[K ~string, V any] func(ctx context.Context, key K, cached V) (fresh bool, err error)

// ReadThroughCache serves reads from a CacheManager and falls back to a
// loader on miss. Only values the loader found are cached, so absence and
// load errors are always re-checked against the store.
type ReadThroughCache[K ~string, V any] struct {
	cache    CacheManager[K, V]
	load     LoadFunc[K, V]
	validate ValidateFunc[K, V]
	ttl      time.Duration
	disabled bool
}

// NewReadThroughCache wraps load with cache. With disabled set every Get
// goes straight to the loader and cache may be nil.
func NewReadThroughCache[K ~string, V any](
	cache CacheManager[K, V],
	load LoadFunc[K, V],
	ttl time.Duration,
	disabled bool,
) *ReadThroughCache[K, V] {
	return &ReadThroughCache[K, V]{
		cache:    cache,
		load:     load,
		ttl:      ttl,
		disabled: disabled,
	}
}

// WithValidator checks every cache hit with validate before serving it.
func (r *ReadThroughCache[K, V]) WithValidator(validate ValidateFunc[K, V]) *ReadThroughCache[K, V] {
	r.validate = validate
	return r
}

func (r *ReadThroughCache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	value, found, _, err := r.Fetch(ctx, key)
	return value, found, err
}

// Fetch is Get that also reports whether the value came from the cache.
// A validation error is returned as is and leaves the entry in place.
func (r *ReadThroughCache[K, V]) Fetch(ctx context.Context, key K) (value V, found, hit bool, err error) {
	if r.disabled {
		value, found, err = r.load(ctx, key)
		return value, found, false, err
	}

	if cached, ok := r.cache.Get(ctx, key); ok {
		fresh := true
		if r.validate != nil {
			fresh, err = r.validate(ctx, key, cached)
			if err != nil {
				var zero V
				return zero, false, false, err
			}
		}
		if fresh {
			return cached, true, true, nil
		}
		r.Invalidate(ctx, key)
	}

	value, found, err = r.load(ctx, key)
	if err != nil || !found {
		return value, found, false, err
	}

	r.cache.Set(ctx, key, value, r.ttl)
	return value, true, false, nil
}

// Prime stores a value known to be in the backing store.
func (r *ReadThroughCache[K, V]) Prime(ctx context.Context, key K, value V) {
	if r.disabled {
		return
	}
	r.cache.Set(ctx, key, value, r.ttl)
}

// Invalidate drops key so the next Get reloads it.
func (r *ReadThroughCache[K, V]) Invalidate(ctx context.Context, key K) {
	if r.disabled {
		return
	}
	r.cache.Delete(ctx, key)
}
